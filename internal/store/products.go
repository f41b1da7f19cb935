package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
)

const (
	// DefaultStock is the inventory created for each size of a new product.
	DefaultStock = 10

	minSearchLength = 2
	maxSearchResult = 20
)

// Product list orderings accepted by ListProducts.
const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortName      = "name"
)

type VariantInput struct {
	Name  string
	Value string
}

type ProductInput struct {
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	Currency    string
	CategoryID  string
	Material    string
	Featured    bool
	Images      []string
	// Sizes become "Size" variants, each stocked with DefaultStock units.
	Sizes    []string
	Variants []VariantInput
}

type ProductPatch struct {
	Name        *string
	Slug        *string
	Description *string
	Price       *decimal.Decimal
	Currency    *string
	CategoryID  *string
	Material    *string
	Featured    *bool
}

type ProductFilter struct {
	CategoryID string
	Featured   *bool
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	ExcludeID  string
	Sort       string
	Page       int
	PageSize   int
}

// ProductSummary is a product with its first image, as shown in listings.
type ProductSummary struct {
	models.Product
	Image    *models.ProductImage `json:"image"`
	Category *models.Category     `json:"category,omitempty"`
}

type ProductDetail struct {
	models.Product
	Images    []models.ProductImage `json:"images"`
	Variants  []models.Variant      `json:"variants"`
	Inventory []models.Inventory    `json:"inventory"`
	Category  *models.Category      `json:"category"`
}

type productEditor = docstore.Editor[models.Product, *models.Product]

func (s *Store) requireCategory(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	_, err := s.GetCategory(ctx, id)
	return err
}

func checkProductSlugFree(ed *productEditor, sl, selfID string) error {
	existing, err := ed.First(docstore.Eq("slug", sl))
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrSlugTaken
	}
	return nil
}

// CreateProduct writes the product and then its images, variants and
// inventory. If any of the dependent writes fails, everything written for the
// product is removed again.
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*ProductDetail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	sl := slugFor(in.Slug, name)

	var product models.Product
	err := s.Products.Mutate(ctx, func(ed *productEditor) error {
		if err := checkProductSlugFree(ed, sl, ""); err != nil {
			return err
		}
		product = ed.Insert(models.Product{
			Name:        name,
			Slug:        sl,
			Description: in.Description,
			Price:       in.Price,
			Currency:    currency,
			CategoryID:  in.CategoryID,
			Material:    in.Material,
			Featured:    in.Featured,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.createProductChildren(ctx, product, in); err != nil {
		s.log.Error("product children failed, removing product",
			"product_id", product.ID, "error", err)
		if cerr := s.DeleteProduct(ctx, product.ID); cerr != nil {
			s.log.Error("remove partial product", "product_id", product.ID, "error", cerr)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return s.productDetail(ctx, product)
}

func (s *Store) createProductChildren(ctx context.Context, p models.Product, in ProductInput) error {
	var images []models.ProductImage
	for _, url := range in.Images {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		images = append(images, models.ProductImage{
			ProductID: p.ID,
			URL:       url,
			Alt:       fmt.Sprintf("%s - Image %d", p.Name, len(images)+1),
			Position:  len(images),
		})
	}
	if len(images) > 0 {
		if _, err := s.ProductImages.CreateMany(ctx, images); err != nil {
			return err
		}
	}

	for _, size := range in.Sizes {
		size = strings.TrimSpace(size)
		if size == "" {
			continue
		}
		v, err := s.Variants.Create(ctx, models.Variant{ProductID: p.ID, Name: "Size", Value: size})
		if err != nil {
			return err
		}
		if _, err := s.Inventory.Create(ctx, models.Inventory{
			ProductID: p.ID,
			VariantID: models.StringPtr(v.ID),
			Quantity:  DefaultStock,
		}); err != nil {
			return err
		}
	}

	var variants []models.Variant
	for _, v := range in.Variants {
		if strings.TrimSpace(v.Value) == "" {
			continue
		}
		name := v.Name
		if name == "" {
			name = "Color"
		}
		variants = append(variants, models.Variant{ProductID: p.ID, Name: name, Value: v.Value})
	}
	if len(variants) > 0 {
		if _, err := s.Variants.CreateMany(ctx, variants); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if patch.CategoryID != nil {
		if err := s.requireCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
	}

	var updated models.Product
	err := s.Products.Mutate(ctx, func(ed *productEditor) error {
		var newSlug string
		if patch.Slug != nil {
			newSlug = slugFor(*patch.Slug, "")
			if newSlug == "" {
				return fmt.Errorf("%w: slug must not be empty", ErrInvalidInput)
			}
			if err := checkProductSlugFree(ed, newSlug, id); err != nil {
				return err
			}
		}

		var err error
		updated, err = ed.Patch(id, func(p *models.Product) {
			if patch.Name != nil {
				p.Name = strings.TrimSpace(*patch.Name)
			}
			if newSlug != "" {
				p.Slug = newSlug
			}
			if patch.Description != nil {
				p.Description = *patch.Description
			}
			if patch.Price != nil {
				p.Price = *patch.Price
			}
			if patch.Currency != nil {
				p.Currency = strings.ToUpper(*patch.Currency)
			}
			if patch.CategoryID != nil {
				p.CategoryID = *patch.CategoryID
			}
			if patch.Material != nil {
				p.Material = *patch.Material
			}
			if patch.Featured != nil {
				p.Featured = *patch.Featured
			}
		})
		if isNotFound(err) {
			return ErrProductNotFound
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &updated, nil
}

// DeleteProduct removes the product with its images, variants, inventory and
// any cart lines pointing at it. Order items keep their snapshot. Every step
// is attempted even if an earlier one fails, so a retry only has the failed
// collections left to clean.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	byProduct := docstore.Where(docstore.Eq("productId", id))

	var errs []error
	for _, del := range []func() (int, error){
		func() (int, error) { return s.ProductImages.DeleteMany(ctx, byProduct) },
		func() (int, error) { return s.Inventory.DeleteMany(ctx, byProduct) },
		func() (int, error) { return s.Variants.DeleteMany(ctx, byProduct) },
		func() (int, error) { return s.CartItems.DeleteMany(ctx, byProduct) },
	} {
		if _, err := del(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Products.Delete(ctx, id); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.Products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *Store) GetProductBySlug(ctx context.Context, sl string) (*ProductDetail, error) {
	p, err := s.Products.FindUnique(ctx, docstore.Eq("slug", sl))
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return s.productDetail(ctx, *p)
}

func (s *Store) productDetail(ctx context.Context, p models.Product) (*ProductDetail, error) {
	byProduct := []docstore.Cond{docstore.Eq("productId", p.ID)}

	images, err := s.ProductImages.FindMany(ctx, docstore.Query{Where: byProduct, OrderBy: docstore.Asc("position")})
	if err != nil {
		return nil, err
	}
	variants, err := s.Variants.FindMany(ctx, docstore.Query{Where: byProduct})
	if err != nil {
		return nil, err
	}
	inventory, err := s.Inventory.FindMany(ctx, docstore.Query{Where: byProduct})
	if err != nil {
		return nil, err
	}
	category, err := s.Categories.FindByID(ctx, p.CategoryID)
	if err != nil {
		return nil, err
	}

	return &ProductDetail{
		Product:   p,
		Images:    nonNil(images),
		Variants:  nonNil(variants),
		Inventory: nonNil(inventory),
		Category:  category,
	}, nil
}

func (s *Store) firstImage(ctx context.Context, productID string) (*models.ProductImage, error) {
	return s.ProductImages.FindFirst(ctx, docstore.Query{
		Where:   []docstore.Cond{docstore.Eq("productId", productID)},
		OrderBy: docstore.Asc("position"),
	})
}

func productOrder(sort string) *docstore.Sort {
	switch sort {
	case SortPriceLow:
		return docstore.Asc("price")
	case SortPriceHigh:
		return docstore.Desc("price")
	case SortName:
		return docstore.Asc("name")
	default:
		return docstore.Desc("createdAt")
	}
}

// ListProducts filters, sorts and pages the catalog. Price bounds are
// inclusive.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) (*OffsetPage[ProductSummary], error) {
	var where []docstore.Cond
	if f.CategoryID != "" {
		where = append(where, docstore.Eq("categoryId", f.CategoryID))
	}
	if f.Featured != nil {
		where = append(where, docstore.Eq("featured", *f.Featured))
	}
	if f.MinPrice != nil {
		where = append(where, docstore.Gte("price", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = append(where, docstore.Lte("price", *f.MaxPrice))
	}
	if f.ExcludeID != "" {
		where = append(where, docstore.Not("id", f.ExcludeID))
	}

	page, size, skip := normalizePage(f.Page, f.PageSize)

	total, err := s.Products.Count(ctx, docstore.Query{Where: where})
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	products, err := s.Products.FindMany(ctx, docstore.Query{
		Where:   where,
		OrderBy: productOrder(f.Sort),
		Skip:    skip,
		Take:    size,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	summaries, err := s.summarize(ctx, products)
	if err != nil {
		return nil, err
	}
	return newOffsetPage(summaries, total, page, size), nil
}

func (s *Store) summarize(ctx context.Context, products []models.Product) ([]ProductSummary, error) {
	categories := make(map[string]*models.Category)
	out := make([]ProductSummary, 0, len(products))
	for _, p := range products {
		img, err := s.firstImage(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		cat, ok := categories[p.CategoryID]
		if !ok {
			cat, err = s.Categories.FindByID(ctx, p.CategoryID)
			if err != nil {
				return nil, err
			}
			categories[p.CategoryID] = cat
		}
		out = append(out, ProductSummary{Product: p, Image: img, Category: cat})
	}
	return out, nil
}

// SearchProducts matches q case-insensitively against name, description and
// material. Queries shorter than two characters return nothing.
func (s *Store) SearchProducts(ctx context.Context, q string) ([]ProductSummary, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSearchLength {
		return []ProductSummary{}, nil
	}

	products, err := s.Products.FindMany(ctx, docstore.Query{
		Where: []docstore.Cond{docstore.AnyOf(
			docstore.Contains("name", q),
			docstore.Contains("description", q),
			docstore.Contains("material", q),
		)},
		Take: maxSearchResult,
	})
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return s.summarize(ctx, products)
}

// RelatedProducts returns up to n other products from the same category,
// newest first.
func (s *Store) RelatedProducts(ctx context.Context, id string, n int) ([]ProductSummary, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 4
	}
	page, err := s.ListProducts(ctx, ProductFilter{
		CategoryID: p.CategoryID,
		ExcludeID:  p.ID,
		Sort:       SortNewest,
		PageSize:   n,
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// SetInventory sets the stock for a product, or one of its variants, creating
// the inventory record if needed.
func (s *Store) SetInventory(ctx context.Context, productID string, variantID *string, quantity int) (*models.Inventory, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if variantID != nil {
		v, err := s.Variants.FindByID(ctx, *variantID)
		if err != nil {
			return nil, err
		}
		if v == nil || v.ProductID != productID {
			return nil, ErrVariantNotFound
		}
	}

	inv, _, err := s.Inventory.Upsert(ctx,
		[]docstore.Cond{docstore.Eq("productId", productID), docstore.Eq("variantId", variantID)},
		models.Inventory{ProductID: productID, VariantID: variantID, Quantity: quantity},
		func(i *models.Inventory) { i.Quantity = quantity },
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
