// Package seed loads the demo catalog and accounts. Running it again leaves
// existing records alone.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/models"
	"github.com/etotom/safarov-shop/internal/store"
)

type account struct {
	email, name, password string
	role                  models.Role
}

var accounts = []account{
	{"admin@safarovshop.com", "Admin User", "admin123", models.RoleAdmin},
	{"user@safarovshop.com", "Test User", "user123", models.RoleUser},
}

type category struct {
	name, slug, description string
	children                []category
}

var categories = []category{
	{"Women", "women", "Luxury women's collection", []category{
		{name: "Outerwear", slug: "women-outerwear", description: "Women's outerwear"},
		{name: "Coats & Jackets", slug: "women-coats-jackets", description: "Women's coats and jackets"},
		{name: "Blazers", slug: "women-blazers", description: "Women's blazers"},
		{name: "Bags", slug: "women-bags", description: "Women's bags"},
		{name: "Handbags", slug: "women-handbags", description: "Women's handbags"},
		{name: "Scarves", slug: "women-scarves", description: "Women's scarves"},
		{name: "Gloves", slug: "women-gloves", description: "Women's gloves"},
	}},
	{"Men", "men", "Luxury men's collection", []category{
		{name: "Outerwear", slug: "men-outerwear", description: "Men's outerwear"},
		{name: "Coats & Jackets", slug: "men-coats-jackets", description: "Men's coats and jackets"},
		{name: "Suits", slug: "men-suits", description: "Men's suits"},
		{name: "Scarves", slug: "men-scarves", description: "Men's scarves"},
		{name: "Shoes", slug: "men-shoes", description: "Men's shoes"},
	}},
	{"Kids", "kids", "Luxury kids' collection", []category{
		{name: "Coats", slug: "kids-coats", description: "Kids' coats"},
		{name: "Accessories", slug: "kids-accessories", description: "Kids' accessories"},
	}},
}

type product struct {
	name, slug, category, material string
	price                          string
	featured                       bool
	image                          string
	colors                         []string
	sizes                          []string
	description                    string
}

var (
	apparelSizes = []string{"XS", "S", "M", "L", "XL"}
	oneSize      = []string{"One Size"}
)

var products = []product{
	{
		name: "Elegant White Coat", slug: "elegant-white-coat-women", category: "women-coats-jackets",
		material: "Premium Wool Blend", price: "2899.99", featured: true,
		image: "/images/woman_coat_white1.png", colors: []string{"White", "Ivory"}, sizes: apparelSizes,
		description: "A timeless white coat with a sophisticated silhouette and impeccable tailoring.",
	},
	{
		name: "Classic Trench Coat", slug: "classic-trench-coat-women", category: "women-coats-jackets",
		material: "Waterproof Cotton Gabardine", price: "2499.99", featured: true,
		image: "/images/woman_palto_tal1.png", colors: []string{"Camel", "Black", "Navy"}, sizes: apparelSizes,
		description: "An iconic trench coat that moves from day to evening.",
	},
	{
		name: "Luxury Cashmere Scarf", slug: "luxury-cashmere-scarf-women", category: "women-scarves",
		material: "100% Cashmere", price: "599.99",
		image: "/images/woman_coat_white1.png", colors: []string{"Ivory", "Gray", "Navy"}, sizes: oneSize,
		description: "An exquisite scarf made from the finest cashmere fibers.",
	},
	{
		name: "Premium Leather Gloves", slug: "premium-leather-gloves-women", category: "women-gloves",
		material: "Italian Leather, Cashmere Lining", price: "399.99",
		image: "/images/woman_coat_white1.png", colors: []string{"Brown", "Black"}, sizes: []string{"S", "M", "L"},
		description: "Handcrafted leather gloves with a soft cashmere lining.",
	},
	{
		name: "Luxury Handbag", slug: "luxury-handbag-women", category: "women-handbags",
		material: "Premium Italian Leather", price: "2499.99", featured: true,
		image: "/images/woman_coat_white1.png", colors: []string{"Black", "Brown"}, sizes: oneSize,
		description: "A premium leather handbag for any occasion.",
	},
	{
		name: "Tailored Wool Overcoat", slug: "tailored-wool-overcoat-men", category: "men-coats-jackets",
		material: "Italian Wool", price: "3199.99", featured: true,
		image: "/images/man_coat1.png", colors: []string{"Charcoal", "Navy"}, sizes: apparelSizes,
		description: "A tailored overcoat cut from fine Italian wool.",
	},
	{
		name: "Two-Piece Suit", slug: "two-piece-suit-men", category: "men-suits",
		material: "Super 120s Wool", price: "3499.99",
		image: "/images/man_coat1.png", colors: []string{"Navy", "Gray"}, sizes: apparelSizes,
		description: "A classic two-piece suit with a modern fit.",
	},
	{
		name: "Leather Oxford Shoes", slug: "leather-oxford-shoes-men", category: "men-shoes",
		material: "Calf Leather", price: "899.99",
		image: "/images/man_coat1.png", colors: []string{"Black", "Brown"}, sizes: []string{"40", "41", "42", "43", "44"},
		description: "Hand-finished oxfords in polished calf leather.",
	},
	{
		name: "Kids Puffer Coat", slug: "kids-puffer-coat", category: "kids-coats",
		material: "Recycled Down", price: "459.99",
		image: "/images/kids_coat1.png", colors: []string{"Red", "Navy"}, sizes: []string{"4Y", "6Y", "8Y", "10Y"},
		description: "A warm, lightweight puffer coat for cold days.",
	},
}

// Summary counts what a run created.
type Summary struct {
	Users      int
	Categories int
	Products   int
}

func Run(ctx context.Context, st *store.Store, log *slog.Logger) (*Summary, error) {
	if log == nil {
		log = slog.Default()
	}
	var sum Summary

	for _, a := range accounts {
		_, err := st.CreateUser(ctx, store.UserInput{Email: a.email, Name: a.name, Password: a.password, Role: a.role})
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			log.Debug("user exists", "email", a.email)
		case err != nil:
			return nil, fmt.Errorf("seed user %s: %w", a.email, err)
		default:
			sum.Users++
		}
	}

	catIDs := make(map[string]string)
	var upsert func(c category, parentID *string) error
	upsert = func(c category, parentID *string) error {
		cat, created, err := st.UpsertCategory(ctx, store.CategoryInput{
			Name:        c.name,
			Slug:        c.slug,
			Description: c.description,
			ParentID:    parentID,
		})
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.slug, err)
		}
		if created {
			sum.Categories++
		}
		catIDs[c.slug] = cat.ID
		for _, child := range c.children {
			if err := upsert(child, &cat.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range categories {
		if err := upsert(c, nil); err != nil {
			return nil, err
		}
	}

	for _, p := range products {
		_, err := st.GetProductBySlug(ctx, p.slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrProductNotFound) {
			return nil, fmt.Errorf("seed product %s: %w", p.slug, err)
		}

		variants := make([]store.VariantInput, 0, len(p.colors))
		for _, c := range p.colors {
			variants = append(variants, store.VariantInput{Name: "Color", Value: c})
		}
		_, err = st.CreateProduct(ctx, store.ProductInput{
			Name:        p.name,
			Slug:        p.slug,
			Description: p.description,
			Price:       decimal.RequireFromString(p.price),
			Currency:    "USD",
			CategoryID:  catIDs[p.category],
			Material:    p.material,
			Featured:    p.featured,
			Images:      []string{p.image},
			Sizes:       p.sizes,
			Variants:    variants,
		})
		if err != nil {
			return nil, fmt.Errorf("seed product %s: %w", p.slug, err)
		}
		sum.Products++
	}

	log.Info("seed complete", "users", sum.Users, "categories", sum.Categories, "products", sum.Products)
	return &sum, nil
}
