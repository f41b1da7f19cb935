package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etotom/safarov-shop/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestCreateCategoryDerivesSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCategory(ctx, CategoryInput{Name: "  Winter Coats  "})
	require.NoError(t, err)
	assert.Equal(t, "winter-coats", c.Slug)
	assert.Nil(t, c.ParentID)

	_, err = s.CreateCategory(ctx, CategoryInput{Name: "Other", Slug: "winter-coats"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = s.CreateCategory(ctx, CategoryInput{Name: "Orphan", ParentID: ptr("cat_missing")})
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = s.CreateCategory(ctx, CategoryInput{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateCategoryParentValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	women := mustCategory(t, s, "Women", nil)
	outer := mustCategory(t, s, "Outerwear", &women.ID)
	coats := mustCategory(t, s, "Coats", &outer.ID)

	_, err := s.UpdateCategory(ctx, women.ID, CategoryPatch{ParentID: &women.ID})
	assert.ErrorIs(t, err, ErrSelfParent)

	_, err = s.UpdateCategory(ctx, women.ID, CategoryPatch{ParentID: ptr("cat_missing")})
	assert.ErrorIs(t, err, ErrParentNotFound)

	_, err = s.UpdateCategory(ctx, women.ID, CategoryPatch{ParentID: &coats.ID})
	assert.ErrorIs(t, err, ErrCategoryCycle)

	_, err = s.UpdateCategory(ctx, "cat_missing", CategoryPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	moved, err := s.UpdateCategory(ctx, coats.ID, CategoryPatch{ParentID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, coats.Name, moved.Name)
	assert.Equal(t, coats.Slug, moved.Slug)
	assert.False(t, moved.UpdatedAt.Before(coats.UpdatedAt))

	reparented, err := s.UpdateCategory(ctx, coats.ID, CategoryPatch{ParentID: &women.ID})
	require.NoError(t, err)
	assert.Equal(t, women.ID, models.StringValue(reparented.ParentID))
}

func TestListCategoriesTopLevel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	women := mustCategory(t, s, "Women", nil)
	men := mustCategory(t, s, "Men", nil)
	mustCategory(t, s, "Dresses", &women.ID)
	mustCategory(t, s, "Suits", &men.ID)

	top, err := s.ListCategories(ctx, CategoryFilter{TopLevel: true})
	require.NoError(t, err)
	require.Len(t, top, 2)
	for _, c := range top {
		assert.Nil(t, c.ParentID)
	}
	assert.Equal(t, "Men", top[0].Name)
	assert.Equal(t, "Women", top[1].Name)

	children, err := s.ListCategories(ctx, CategoryFilter{ParentID: women.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Dresses", children[0].Name)

	all, err := s.ListCategories(ctx, CategoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpsertCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, isNew, err := s.UpsertCategory(ctx, CategoryInput{Name: "Kids", Slug: "kids", Description: "first"})
	require.NoError(t, err)
	assert.True(t, isNew)

	updated, isNew, err := s.UpsertCategory(ctx, CategoryInput{Name: "Kids", Slug: "kids", Description: "second"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "second", updated.Description)
	assert.Equal(t, created.Version+1, updated.Version)

	count, err := s.Categories.Count(ctx, docstoreAll)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, _, err = s.UpsertCategory(ctx, CategoryInput{Name: "Toys", ParentID: ptr("cat_missing")})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestUpsertCategoryRejectsBadParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alpha := mustCategory(t, s, "Alpha", nil)
	beta := mustCategory(t, s, "Beta", &alpha.ID)

	_, _, err := s.UpsertCategory(ctx, CategoryInput{Slug: "alpha", ParentID: &beta.ID})
	assert.ErrorIs(t, err, ErrCategoryCycle)

	_, _, err = s.UpsertCategory(ctx, CategoryInput{Slug: "alpha", ParentID: &alpha.ID})
	assert.ErrorIs(t, err, ErrSelfParent)

	got, err := s.GetCategory(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	tree, err := s.CategoryTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "Alpha", tree[0].Name)
	require.Len(t, tree[0].Children, 1)

	// Moving to the top level is still allowed.
	moved, created, err := s.UpsertCategory(ctx, CategoryInput{Slug: "beta", ParentID: ptr("")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, moved.ParentID)
}

func TestCategoryTree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	women := mustCategory(t, s, "Women", nil)
	outer := mustCategory(t, s, "Outerwear", &women.ID)
	mustCategory(t, s, "Coats", &outer.ID)
	mustCategory(t, s, "Men", nil)

	tree, err := s.CategoryTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "Men", tree[0].Name)
	assert.Empty(t, tree[0].Children)
	assert.Equal(t, "Women", tree[1].Name)
	require.Len(t, tree[1].Children, 1)
	require.Len(t, tree[1].Children[0].Children, 1)
	assert.Equal(t, "Coats", tree[1].Children[0].Children[0].Name)
}
