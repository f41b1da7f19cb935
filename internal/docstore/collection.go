package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Collection is a typed view over one named collection of a Backend.
type Collection[T any, P Document[T]] struct {
	backend Backend
	name    string
	prefix  string
	fields  fieldIndex
	now     func() time.Time
	log     *slog.Logger
}

// NewCollection binds a record type to a collection name. New records get
// identifiers starting with prefix.
func NewCollection[T any, P Document[T]](backend Backend, name, prefix string) *Collection[T, P] {
	return &Collection[T, P]{
		backend: backend,
		name:    name,
		prefix:  prefix,
		fields:  indexFields(reflect.TypeFor[T]()),
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default(),
	}
}

func (c *Collection[T, P]) Name() string {
	return c.name
}

// SetClock replaces the time source used for createdAt/updatedAt.
func (c *Collection[T, P]) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Collection[T, P]) SetLogger(log *slog.Logger) {
	c.log = log
}

// load decodes the collection for reading. A body that is not a JSON array is
// logged and treated as empty.
func (c *Collection[T, P]) load(ctx context.Context) ([]T, error) {
	data, err := c.backend.Read(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.name, err)
	}

	items, err := c.decode(data)
	if err != nil {
		c.log.Warn("unreadable collection treated as empty", "collection", c.name, "error", err)
		return nil, nil
	}
	return items, nil
}

func (c *Collection[T, P]) decode(data []byte) ([]T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCollection, c.name, err)
	}
	return items, nil
}

func (c *Collection[T, P]) encode(items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return data, nil
}

func (c *Collection[T, P]) apply(items []T, q Query) ([]T, error) {
	if err := c.fields.validate(q); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for i := range items {
		ok, err := c.matches(&items[i], q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, items[i])
		}
	}

	if q.OrderBy != nil {
		field, desc := q.OrderBy.Field, q.OrderBy.Desc
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			a := normalize(c.fields.value(reflect.ValueOf(&out[i]).Elem(), field))
			b := normalize(c.fields.value(reflect.ValueOf(&out[j]).Elem(), field))
			cmp, err := compare(a, b)
			if err != nil {
				sortErr = fmt.Errorf("sort by %q: %w", field, err)
				return false
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	if q.Skip > 0 {
		if q.Skip >= len(out) {
			return []T{}, nil
		}
		out = out[q.Skip:]
	}
	if q.Take > 0 && q.Take < len(out) {
		out = out[:q.Take]
	}
	return out, nil
}

func (c *Collection[T, P]) matches(rec *T, conds []Cond) (bool, error) {
	rv := reflect.ValueOf(rec).Elem()
	for _, cond := range conds {
		ok, err := cond.match(c.fields, rv)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// FindMany returns the records selected by q. A collection that has never been
// written yields an empty slice.
func (c *Collection[T, P]) FindMany(ctx context.Context, q Query) ([]T, error) {
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.apply(items, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	return out, nil
}

// FindFirst returns the first record selected by q, or nil.
func (c *Collection[T, P]) FindFirst(ctx context.Context, q Query) (*T, error) {
	q.Take = 1
	out, err := c.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// FindUnique returns the record matching every cond, or nil. With no conds
// there is no key to look up and the result is nil.
func (c *Collection[T, P]) FindUnique(ctx context.Context, conds ...Cond) (*T, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	return c.FindFirst(ctx, Where(conds...))
}

func (c *Collection[T, P]) FindByID(ctx context.Context, id string) (*T, error) {
	return c.FindUnique(ctx, Eq("id", id))
}

func (c *Collection[T, P]) Count(ctx context.Context, q Query) (int, error) {
	q.Skip, q.Take = 0, 0
	out, err := c.FindMany(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(out), nil
}

// Sum adds up a numeric field over the records selected by q. Null values are
// skipped.
func (c *Collection[T, P]) Sum(ctx context.Context, field string, q Query) (decimal.Decimal, error) {
	if _, ok := c.fields[field]; !ok {
		return decimal.Zero, fmt.Errorf("sum %s: %w: unknown field %q", c.name, ErrInvalidQuery, field)
	}

	out, err := c.FindMany(ctx, q)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for i := range out {
		v := normalize(c.fields.value(reflect.ValueOf(&out[i]).Elem(), field))
		switch n := v.(type) {
		case nil:
		case decimal.Decimal:
			sum = sum.Add(n)
		default:
			return decimal.Zero, fmt.Errorf("sum %s: %w: field %q is not numeric", c.name, ErrInvalidQuery, field)
		}
	}
	return sum, nil
}

// Mutate runs fn against the whole collection as one read-modify-write cycle.
// The collection is rewritten only if fn changed something through the Editor.
func (c *Collection[T, P]) Mutate(ctx context.Context, fn func(ed *Editor[T, P]) error) error {
	return c.backend.Update(ctx, c.name, func(current []byte) ([]byte, error) {
		items, err := c.decode(current)
		if err != nil {
			return nil, err
		}

		ed := &Editor[T, P]{c: c, items: items, now: c.now()}
		if err := fn(ed); err != nil {
			return nil, err
		}
		if !ed.changed {
			return nil, nil
		}
		return c.encode(ed.items)
	})
}

func (c *Collection[T, P]) Create(ctx context.Context, rec T) (*T, error) {
	var created T
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		created = ed.Insert(rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c.name, err)
	}
	return &created, nil
}

func (c *Collection[T, P]) CreateMany(ctx context.Context, recs []T) ([]T, error) {
	var created []T
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		created = make([]T, 0, len(recs))
		for _, rec := range recs {
			created = append(created, ed.Insert(rec))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c.name, err)
	}
	return created, nil
}

// Update applies patch to the record with the given id. It fails with
// ErrNotFound if no such record exists.
func (c *Collection[T, P]) Update(ctx context.Context, id string, patch func(*T)) (*T, error) {
	var updated T
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		rec, err := ed.Patch(id, patch)
		updated = rec
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	return &updated, nil
}

// UpdateVersion is Update guarded by the record's version: it fails with
// ErrOptimisticLockFailed when the stored version is not version.
func (c *Collection[T, P]) UpdateVersion(ctx context.Context, id string, version int, patch func(*T)) (*T, error) {
	var updated T
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		rec, err := ed.PatchVersion(id, version, patch)
		updated = rec
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	return &updated, nil
}

// UpdateMany patches every record selected by q.Where and reports how many.
func (c *Collection[T, P]) UpdateMany(ctx context.Context, q Query, patch func(*T)) (int, error) {
	var n int
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		var err error
		n, err = ed.PatchWhere(q.Where, patch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.name, err)
	}
	return n, nil
}

// Upsert patches the first record matching where, or inserts create when
// none matches. The bool result reports whether a record was created.
func (c *Collection[T, P]) Upsert(ctx context.Context, where []Cond, create T, update func(*T)) (*T, bool, error) {
	var (
		out     T
		created bool
	)
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		existing, err := ed.First(where...)
		if err != nil {
			return err
		}
		if existing == nil {
			out, created = ed.Insert(create), true
			return nil
		}
		out, err = ed.Patch(P(existing).Base().ID, update)
		created = false
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert %s: %w", c.name, err)
	}
	return &out, created, nil
}

// Delete removes the record with the given id. Deleting a missing id is a
// no-op.
func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		ed.Remove(id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	return nil
}

func (c *Collection[T, P]) DeleteMany(ctx context.Context, q Query) (int, error) {
	var n int
	err := c.Mutate(ctx, func(ed *Editor[T, P]) error {
		var err error
		n, err = ed.RemoveWhere(q.Where)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.name, err)
	}
	return n, nil
}

// Editor is the in-memory state of a collection during Mutate.
type Editor[T any, P Document[T]] struct {
	c       *Collection[T, P]
	items   []T
	now     time.Time
	changed bool
}

// Records returns a copy of the current records.
func (ed *Editor[T, P]) Records() []T {
	return slices.Clone(ed.items)
}

func (ed *Editor[T, P]) Find(q Query) ([]T, error) {
	return ed.c.apply(ed.items, q)
}

func (ed *Editor[T, P]) First(conds ...Cond) (*T, error) {
	out, err := ed.c.apply(ed.items, Query{Where: conds, Take: 1})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// Insert stamps rec with a fresh id and timestamps and appends it.
func (ed *Editor[T, P]) Insert(rec T) T {
	m := P(&rec).Base()
	m.ID = NewID(ed.c.prefix)
	m.CreatedAt = ed.now
	m.UpdatedAt = ed.now
	m.Version = 1

	ed.items = append(ed.items, rec)
	ed.changed = true
	return rec
}

func (ed *Editor[T, P]) indexOf(id string) int {
	for i := range ed.items {
		if P(&ed.items[i]).Base().ID == id {
			return i
		}
	}
	return -1
}

func (ed *Editor[T, P]) Patch(id string, patch func(*T)) (T, error) {
	return ed.PatchVersion(id, -1, patch)
}

// PatchVersion patches the record with the given id. A non-negative version
// must match the stored one.
func (ed *Editor[T, P]) PatchVersion(id string, version int, patch func(*T)) (T, error) {
	var zero T
	i := ed.indexOf(id)
	if i < 0 {
		return zero, ErrNotFound
	}
	if version >= 0 && P(&ed.items[i]).Base().Version != version {
		return zero, ErrOptimisticLockFailed
	}
	ed.patchAt(i, patch)
	return ed.items[i], nil
}

func (ed *Editor[T, P]) PatchWhere(conds []Cond, patch func(*T)) (int, error) {
	n := 0
	for i := range ed.items {
		ok, err := ed.c.matches(&ed.items[i], conds)
		if err != nil {
			return n, err
		}
		if ok {
			ed.patchAt(i, patch)
			n++
		}
	}
	return n, nil
}

// patchAt applies patch and then restores the fields callers may not change.
func (ed *Editor[T, P]) patchAt(i int, patch func(*T)) {
	prev := *P(&ed.items[i]).Base()
	if patch != nil {
		patch(&ed.items[i])
	}

	m := P(&ed.items[i]).Base()
	m.ID = prev.ID
	m.CreatedAt = prev.CreatedAt
	m.Version = prev.Version + 1
	m.UpdatedAt = ed.now
	if m.UpdatedAt.Before(prev.UpdatedAt) {
		m.UpdatedAt = prev.UpdatedAt
	}
	ed.changed = true
}

// Remove deletes the record with the given id and reports whether it existed.
func (ed *Editor[T, P]) Remove(id string) bool {
	i := ed.indexOf(id)
	if i < 0 {
		return false
	}
	ed.items = slices.Delete(ed.items, i, i+1)
	ed.changed = true
	return true
}

func (ed *Editor[T, P]) RemoveWhere(conds []Cond) (int, error) {
	kept := ed.items[:0:0]
	removed := 0
	for i := range ed.items {
		ok, err := ed.c.matches(&ed.items[i], conds)
		if err != nil {
			return 0, err
		}
		if ok {
			removed++
			continue
		}
		kept = append(kept, ed.items[i])
	}
	if removed > 0 {
		ed.items = kept
		ed.changed = true
	}
	return removed, nil
}
