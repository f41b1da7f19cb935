package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
)

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	ParentID    *string
}

// CategoryPatch updates only the non-nil fields. ParentID pointing at an
// empty string moves the category to the top level.
type CategoryPatch struct {
	Name        *string
	Slug        *string
	Description *string
	ParentID    *string
}

type CategoryFilter struct {
	TopLevel bool
	ParentID string
}

type CategoryNode struct {
	models.Category
	Children []CategoryNode `json:"children"`
}

type categoryEditor = docstore.Editor[models.Category, *models.Category]

// slugFor returns the explicit slug normalised, or one derived from name.
func slugFor(explicit, name string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return slug.Make(s)
	}
	return slug.Make(name)
}

func checkSlugFree(ed *categoryEditor, s, selfID string) error {
	existing, err := ed.First(docstore.Eq("slug", s))
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrSlugTaken
	}
	return nil
}

// checkParent validates that parentID may become the parent of selfID. selfID
// is empty for categories that do not exist yet.
func checkParent(ed *categoryEditor, selfID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == selfID {
		return ErrSelfParent
	}

	byID := make(map[string]models.Category)
	for _, c := range ed.Records() {
		byID[c.ID] = c
	}
	if _, ok := byID[parentID]; !ok {
		return ErrParentNotFound
	}
	if selfID == "" {
		return nil
	}

	seen := map[string]bool{}
	for id := parentID; id != ""; {
		if id == selfID {
			return ErrCategoryCycle
		}
		if seen[id] {
			break
		}
		seen[id] = true
		id = models.StringValue(byID[id].ParentID)
	}
	return nil
}

func (s *Store) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	sl := slugFor(in.Slug, name)
	parentID := models.StringValue(in.ParentID)

	var created models.Category
	err := s.Categories.Mutate(ctx, func(ed *categoryEditor) error {
		if err := checkSlugFree(ed, sl, ""); err != nil {
			return err
		}
		if err := checkParent(ed, "", parentID); err != nil {
			return err
		}
		created = ed.Insert(models.Category{
			Name:        name,
			Slug:        sl,
			Description: in.Description,
			ParentID:    models.StringPtr(parentID),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &created, nil
}

// UpdateCategory applies patch after checking that the new parent exists, is
// not the category itself and is not one of its descendants.
func (s *Store) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*models.Category, error) {
	var updated models.Category
	err := s.Categories.Mutate(ctx, func(ed *categoryEditor) error {
		current, err := ed.First(docstore.Eq("id", id))
		if err != nil {
			return err
		}
		if current == nil {
			return ErrCategoryNotFound
		}

		if patch.ParentID != nil {
			if err := checkParent(ed, id, *patch.ParentID); err != nil {
				return err
			}
		}

		var newSlug string
		if patch.Slug != nil || (patch.Name != nil && current.Slug == "") {
			name := current.Name
			if patch.Name != nil {
				name = *patch.Name
			}
			newSlug = slugFor(models.StringValue(patch.Slug), name)
			if err := checkSlugFree(ed, newSlug, id); err != nil {
				return err
			}
		}

		updated, err = ed.Patch(id, func(c *models.Category) {
			if patch.Name != nil {
				c.Name = strings.TrimSpace(*patch.Name)
			}
			if newSlug != "" {
				c.Slug = newSlug
			}
			if patch.Description != nil {
				c.Description = *patch.Description
			}
			if patch.ParentID != nil {
				c.ParentID = models.StringPtr(*patch.ParentID)
			}
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return &updated, nil
}

// UpsertCategory creates the category with in.Slug, or applies in to the
// existing one. The bool reports whether it was created. The parent is checked
// the same way UpdateCategory checks it, in the same write.
func (s *Store) UpsertCategory(ctx context.Context, in CategoryInput) (*models.Category, bool, error) {
	name := strings.TrimSpace(in.Name)
	sl := slugFor(in.Slug, name)
	if sl == "" {
		return nil, false, fmt.Errorf("%w: slug or name is required", ErrInvalidInput)
	}
	parentID := models.StringValue(in.ParentID)

	var (
		cat     models.Category
		created bool
	)
	err := s.Categories.Mutate(ctx, func(ed *categoryEditor) error {
		existing, err := ed.First(docstore.Eq("slug", sl))
		if err != nil {
			return err
		}

		if existing == nil {
			if err := checkParent(ed, "", parentID); err != nil {
				return err
			}
			cat = ed.Insert(models.Category{
				Name:        name,
				Slug:        sl,
				Description: in.Description,
				ParentID:    models.StringPtr(parentID),
			})
			created = true
			return nil
		}

		if in.ParentID != nil {
			if err := checkParent(ed, existing.ID, parentID); err != nil {
				return err
			}
		}
		cat, err = ed.Patch(existing.ID, func(c *models.Category) {
			if name != "" {
				c.Name = name
			}
			if in.Description != "" {
				c.Description = in.Description
			}
			if in.ParentID != nil {
				c.ParentID = models.StringPtr(parentID)
			}
		})
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert category: %w", err)
	}
	return &cat, created, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	cat, err := s.Categories.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if cat == nil {
		return nil, ErrCategoryNotFound
	}
	return cat, nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, sl string) (*models.Category, error) {
	cat, err := s.Categories.FindUnique(ctx, docstore.Eq("slug", sl))
	if err != nil {
		return nil, fmt.Errorf("get category by slug: %w", err)
	}
	if cat == nil {
		return nil, ErrCategoryNotFound
	}
	return cat, nil
}

// ListCategories returns categories ordered by name. TopLevel selects the
// categories without a parent and takes precedence over ParentID.
func (s *Store) ListCategories(ctx context.Context, f CategoryFilter) ([]models.Category, error) {
	q := docstore.Query{OrderBy: docstore.Asc("name")}
	switch {
	case f.TopLevel:
		q.Where = append(q.Where, docstore.IsNull("parentId"))
	case f.ParentID != "":
		q.Where = append(q.Where, docstore.Eq("parentId", f.ParentID))
	}

	cats, err := s.Categories.FindMany(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CategoryTree nests every category under its parent. Categories whose parent
// no longer exists are returned as roots.
func (s *Store) CategoryTree(ctx context.Context) ([]CategoryNode, error) {
	cats, err := s.ListCategories(ctx, CategoryFilter{})
	if err != nil {
		return nil, err
	}

	exists := make(map[string]bool, len(cats))
	children := make(map[string][]models.Category)
	for _, c := range cats {
		exists[c.ID] = true
	}
	var roots []models.Category
	for _, c := range cats {
		parent := models.StringValue(c.ParentID)
		if parent == "" || !exists[parent] {
			roots = append(roots, c)
			continue
		}
		children[parent] = append(children[parent], c)
	}

	var build func(c models.Category, depth int) CategoryNode
	build = func(c models.Category, depth int) CategoryNode {
		node := CategoryNode{Category: c, Children: []CategoryNode{}}
		if depth > len(cats) {
			return node
		}
		for _, child := range children[c.ID] {
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}

	tree := make([]CategoryNode, 0, len(roots))
	for _, r := range roots {
		tree = append(tree, build(r, 0))
	}
	return tree, nil
}
