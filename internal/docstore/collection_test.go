package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etotom/safarov-shop/internal/docstore"
)

type widget struct {
	docstore.Meta
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Rank     int             `json:"rank"`
	ParentID *string         `json:"parentId"`
	Active   bool            `json:"active"`
}

func newWidgets(t *testing.T) (*docstore.Collection[widget, *widget], string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := docstore.NewFileBackend(dir)
	require.NoError(t, err)
	return docstore.NewCollection[widget](backend, "widgets", "wid"), dir
}

func strPtr(s string) *string { return &s }

func seedWidgets(t *testing.T, c *docstore.Collection[widget, *widget]) {
	t.Helper()
	ctx := context.Background()
	_, err := c.CreateMany(ctx, []widget{
		{Name: "alpha", Price: decimal.NewFromInt(40), Rank: 2, Active: true},
		{Name: "bravo", Price: decimal.NewFromInt(50), Rank: 10, ParentID: strPtr("p1")},
		{Name: "charlie", Price: decimal.RequireFromString("99.99"), Rank: 1, Active: true},
		{Name: "delta", Price: decimal.NewFromInt(150), Rank: 7, ParentID: strPtr("p2")},
		{Name: "echo", Price: decimal.RequireFromString("150.01"), Rank: 3},
	})
	require.NoError(t, err)
}

func names(ws []widget) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Name)
	}
	return out
}

func TestCreateThenFindByID(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	created, err := c.Create(ctx, widget{Name: "alpha", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)

	assert.Regexp(t, `^wid_\d+_[0-9a-z]{9}$`, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))
	assert.Equal(t, 1, created.Version)

	found, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "alpha", found.Name)
	assert.True(t, found.Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, found.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, found.UpdatedAt.Equal(found.CreatedAt))
}

func TestFindUniqueMissIsNil(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	found, err := c.FindByID(ctx, "wid_missing")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = c.FindUnique(ctx)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindManyOnMissingOrEmptyFile(t *testing.T) {
	c, dir := newWidgets(t)
	ctx := context.Background()

	out, err := c.FindMany(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "widgets.json"), nil, 0o644))
	out, err = c.FindMany(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, out)

	n, err := c.Count(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCorruptFileReadsEmptyButRefusesWrites(t *testing.T) {
	c, dir := newWidgets(t)
	ctx := context.Background()
	path := filepath.Join(dir, "widgets.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	out, err := c.FindMany(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = c.Create(ctx, widget{Name: "alpha"})
	require.ErrorIs(t, err, docstore.ErrCorruptCollection)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestCollectionFileIsJSONArray(t *testing.T) {
	c, dir := newWidgets(t)
	ctx := context.Background()

	_, err := c.Create(ctx, widget{Name: "alpha"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "widgets.json"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\[\n  \{`), string(data))

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestUpdateRefreshesUpdatedAtAndKeepsOtherFields(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return clock })

	created, err := c.Create(ctx, widget{Name: "alpha", Price: decimal.NewFromInt(10), Rank: 4, Active: true})
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	updated, err := c.Update(ctx, created.ID, func(w *widget) {
		w.Name = "alpha-2"
		w.ID = "hijacked"
		w.CreatedAt = time.Time{}
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.Equal(clock))
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "alpha-2", updated.Name)
	assert.Equal(t, 4, updated.Rank)
	assert.True(t, updated.Active)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(10)))

	// a clock running backwards never moves updatedAt back
	clock = clock.Add(-time.Hour)
	again, err := c.Update(ctx, created.ID, func(w *widget) { w.Rank = 5 })
	require.NoError(t, err)
	assert.False(t, again.UpdatedAt.Before(updated.UpdatedAt))
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	c, _ := newWidgets(t)

	_, err := c.Update(context.Background(), "wid_missing", func(w *widget) { w.Rank = 1 })
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateVersion(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	created, err := c.Create(ctx, widget{Name: "alpha"})
	require.NoError(t, err)

	_, err = c.UpdateVersion(ctx, created.ID, created.Version, func(w *widget) { w.Rank = 1 })
	require.NoError(t, err)

	_, err = c.UpdateVersion(ctx, created.ID, created.Version, func(w *widget) { w.Rank = 2 })
	require.ErrorIs(t, err, docstore.ErrOptimisticLockFailed)

	found, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.Rank)
}

func TestDeleteIsIdempotent(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	created, err := c.Create(ctx, widget{Name: "alpha"})
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, created.ID))
	require.NoError(t, c.Delete(ctx, created.ID))

	found, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFilters(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	p1 := "p1"
	tests := []struct {
		name  string
		where []docstore.Cond
		want  []string
	}{
		{"equality", []docstore.Cond{docstore.Eq("name", "bravo")}, []string{"bravo"}},
		{"bool equality", []docstore.Cond{docstore.Eq("active", true)}, []string{"alpha", "charlie"}},
		{"inclusive range", []docstore.Cond{docstore.Gte("price", 50), docstore.Lte("price", 150)}, []string{"bravo", "charlie", "delta"}},
		{"range with decimal bounds", []docstore.Cond{docstore.Gt("price", decimal.RequireFromString("99.99"))}, []string{"delta", "echo"}},
		{"negation", []docstore.Cond{docstore.Not("name", "alpha")}, []string{"bravo", "charlie", "delta", "echo"}},
		{"null parent", []docstore.Cond{docstore.Eq("parentId", nil)}, []string{"alpha", "charlie", "echo"}},
		{"is null", []docstore.Cond{docstore.IsNull("parentId")}, []string{"alpha", "charlie", "echo"}},
		{"not null", []docstore.Cond{docstore.NotNull("parentId")}, []string{"bravo", "delta"}},
		{"pointer equality", []docstore.Cond{docstore.Eq("parentId", "p2")}, []string{"delta"}},
		{"nil pointer argument", []docstore.Cond{docstore.Eq("parentId", (*string)(nil))}, []string{"alpha", "charlie", "echo"}},
		{"pointer argument", []docstore.Cond{docstore.Eq("parentId", &p1)}, []string{"bravo"}},
		{"in", []docstore.Cond{docstore.In("rank", 1, 7)}, []string{"charlie", "delta"}},
		{"contains", []docstore.Cond{docstore.Contains("name", "HAR")}, []string{"charlie"}},
		{"any of", []docstore.Cond{docstore.AnyOf(docstore.Eq("name", "alpha"), docstore.Eq("rank", 3))}, []string{"alpha", "echo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.FindMany(ctx, docstore.Where(tt.where...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(out))
		})
	}
}

func TestSortIsTypeAware(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	out, err := c.FindMany(ctx, docstore.Query{OrderBy: docstore.Asc("rank")})
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "alpha", "echo", "delta", "bravo"}, names(out))

	out, err = c.FindMany(ctx, docstore.Query{OrderBy: docstore.Desc("price")})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "delta", "charlie", "bravo", "alpha"}, names(out))
}

func TestSkipTake(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	out, err := c.FindMany(ctx, docstore.Query{OrderBy: docstore.Asc("name"), Skip: 1, Take: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "charlie"}, names(out))

	out, err = c.FindMany(ctx, docstore.Query{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, out)

	n, err := c.Count(ctx, docstore.Query{Take: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUnknownFieldIsInvalidQuery(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	_, err := c.FindMany(ctx, docstore.Where(docstore.Eq("colour", "red")))
	require.ErrorIs(t, err, docstore.ErrInvalidQuery)

	_, err = c.FindMany(ctx, docstore.Query{OrderBy: docstore.Asc("colour")})
	require.ErrorIs(t, err, docstore.ErrInvalidQuery)
}

type tagged struct {
	docstore.Meta
	Tags []string `json:"tags"`
}

func TestSortByUncomparableFieldFails(t *testing.T) {
	backend, err := docstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	c := docstore.NewCollection[tagged](backend, "tagged", "tag")
	ctx := context.Background()

	_, err = c.CreateMany(ctx, []tagged{{Tags: []string{"b"}}, {Tags: []string{"a"}}})
	require.NoError(t, err)

	_, err = c.FindMany(ctx, docstore.Query{OrderBy: docstore.Asc("tags")})
	require.ErrorIs(t, err, docstore.ErrInvalidQuery)

	all, err := c.FindMany(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpsert(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	first, created, err := c.Upsert(ctx,
		[]docstore.Cond{docstore.Eq("name", "alpha")},
		widget{Name: "alpha", Rank: 1},
		func(w *widget) { w.Rank = 2 },
	)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Rank)

	second, created, err := c.Upsert(ctx,
		[]docstore.Cond{docstore.Eq("name", "alpha")},
		widget{Name: "alpha", Rank: 1},
		func(w *widget) { w.Rank = 2 },
	)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Rank)

	n, err := c.Count(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateManyAndDeleteMany(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	n, err := c.UpdateMany(ctx, docstore.Where(docstore.NotNull("parentId")), func(w *widget) { w.Active = true })
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err := c.Count(ctx, docstore.Where(docstore.Eq("active", true)))
	require.NoError(t, err)
	assert.Equal(t, 4, active)

	n, err = c.DeleteMany(ctx, docstore.Where(docstore.Eq("active", true)))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	left, err := c.FindMany(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, names(left))
}

func TestSum(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	sum, err := c.Sum(ctx, "price", docstore.Where(docstore.Not("name", "echo")))
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("339.99")), sum.String())

	_, err = c.Sum(ctx, "name", docstore.Query{})
	require.ErrorIs(t, err, docstore.ErrInvalidQuery)
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()

	created, err := c.Create(ctx, widget{Name: "counter"})
	require.NoError(t, err)

	const writers = 50
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Update(ctx, created.ID, func(w *widget) { w.Rank++ })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := c.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, writers, found.Rank)
	assert.Equal(t, writers+1, found.Version)
}

func TestCancelledContext(t *testing.T) {
	c, _ := newWidgets(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Create(ctx, widget{Name: "alpha"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFindFirst(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	first, err := c.FindFirst(ctx, docstore.Query{
		Where:   []docstore.Cond{docstore.Eq("active", true)},
		OrderBy: docstore.Desc("price"),
	})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "charlie", first.Name)

	none, err := c.FindFirst(ctx, docstore.Where(docstore.Eq("name", "zulu")))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMutateDiscardsChangesOnError(t *testing.T) {
	c, _ := newWidgets(t)
	ctx := context.Background()
	seedWidgets(t, c)

	boom := errors.New("boom")
	err := c.Mutate(ctx, func(ed *docstore.Editor[widget, *widget]) error {
		ed.Insert(widget{Name: "foxtrot"})
		ed.RemoveWhere([]docstore.Cond{docstore.Eq("name", "alpha")})
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := c.FindMany(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta", "echo"}, names(all))

	err = c.Mutate(ctx, func(ed *docstore.Editor[widget, *widget]) error {
		if w, err := ed.First(docstore.Eq("name", "bravo")); err != nil || w == nil {
			return fmt.Errorf("bravo missing: %v", err)
		}
		ed.Insert(widget{Name: "foxtrot"})
		_, err := ed.Patch(all[0].ID, func(w *widget) { w.Rank = 99 })
		return err
	})
	require.NoError(t, err)

	alpha, err := c.FindByID(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 99, alpha.Rank)
	assert.Equal(t, 2, alpha.Version)

	n, err := c.Count(ctx, docstore.Query{})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}
