package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
)

type CartInput struct {
	ProductID string
	VariantID *string
	Quantity  int
}

// CartLine is a cart item joined with what the cart page shows for it.
// Product is nil when the product has since been deleted.
type CartLine struct {
	models.CartItem
	Product  *models.Product      `json:"product"`
	Image    *models.ProductImage `json:"image"`
	Variant  *models.Variant      `json:"variant"`
	Subtotal decimal.Decimal      `json:"subtotal"`
}

type Cart struct {
	Items    []CartLine      `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

type cartEditor = docstore.Editor[models.CartItem, *models.CartItem]

func cartKey(userID, productID string, variantID *string) []docstore.Cond {
	return []docstore.Cond{
		docstore.Eq("userId", userID),
		docstore.Eq("productId", productID),
		docstore.Eq("variantId", variantID),
	}
}

// AddToCart adds quantity units of a product to the user's cart. A line for
// the same (user, product, variant) is incremented instead of duplicated.
// Quantity defaults to 1.
func (s *Store) AddToCart(ctx context.Context, userID string, in CartInput) (*models.CartItem, error) {
	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.GetProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}
	variantID := in.VariantID
	if variantID != nil && *variantID == "" {
		variantID = nil
	}
	if variantID != nil {
		v, err := s.Variants.FindByID(ctx, *variantID)
		if err != nil {
			return nil, err
		}
		if v == nil || v.ProductID != in.ProductID {
			return nil, ErrVariantNotFound
		}
	}

	var item models.CartItem
	err := s.CartItems.Mutate(ctx, func(ed *cartEditor) error {
		existing, err := ed.First(cartKey(userID, in.ProductID, variantID)...)
		if err != nil {
			return err
		}
		if existing != nil {
			item, err = ed.Patch(existing.ID, func(c *models.CartItem) {
				c.Quantity += quantity
			})
			return err
		}
		item = ed.Insert(models.CartItem{
			UserID:    userID,
			ProductID: in.ProductID,
			VariantID: variantID,
			Quantity:  quantity,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	return &item, nil
}

func (s *Store) cartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	return s.CartItems.FindMany(ctx, docstore.Query{
		Where:   []docstore.Cond{docstore.Eq("userId", userID)},
		OrderBy: docstore.Asc("createdAt"),
	})
}

func (s *Store) GetCart(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.cartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart := &Cart{Items: make([]CartLine, 0, len(items)), Total: decimal.Zero, Currency: s.currency}
	for _, item := range items {
		line := CartLine{CartItem: item, Subtotal: decimal.Zero}

		line.Product, err = s.Products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if line.Product != nil {
			line.Image, err = s.firstImage(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			line.Subtotal = line.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		if item.VariantID != nil {
			line.Variant, err = s.Variants.FindByID(ctx, *item.VariantID)
			if err != nil {
				return nil, err
			}
		}

		cart.Total = cart.Total.Add(line.Subtotal)
		cart.Items = append(cart.Items, line)
	}
	return cart, nil
}

// ownedCartItem fails with ErrCartItemNotFound unless id names an item in
// userID's cart.
func ownedCartItem(ed *cartEditor, userID, id string) error {
	item, err := ed.First(docstore.Eq("id", id))
	if err != nil {
		return err
	}
	if item == nil || item.UserID != userID {
		return ErrCartItemNotFound
	}
	return nil
}

// UpdateCartItem sets the quantity of a line. A quantity of zero or less
// removes the line and returns nil.
func (s *Store) UpdateCartItem(ctx context.Context, userID, id string, quantity int) (*models.CartItem, error) {
	var (
		item    models.CartItem
		removed bool
	)
	err := s.CartItems.Mutate(ctx, func(ed *cartEditor) error {
		if err := ownedCartItem(ed, userID, id); err != nil {
			return err
		}
		if quantity <= 0 {
			removed = ed.Remove(id)
			return nil
		}
		var err error
		item, err = ed.Patch(id, func(c *models.CartItem) { c.Quantity = quantity })
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	if removed {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) RemoveCartItem(ctx context.Context, userID, id string) error {
	err := s.CartItems.Mutate(ctx, func(ed *cartEditor) error {
		if err := ownedCartItem(ed, userID, id); err != nil {
			return err
		}
		ed.Remove(id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) (int, error) {
	return s.CartItems.DeleteMany(ctx, docstore.Where(docstore.Eq("userId", userID)))
}
