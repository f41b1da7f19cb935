package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etotom/safarov-shop/internal/docstore"
)

func TestAddToCartThenFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Rings", nil)
	u := mustUser(t, s, "buyer@example.com")
	p := mustProduct(t, s, cat.ID, "Band", "100.00")

	_, err := s.AddToCart(ctx, u.ID, CartInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	cart, err := s.GetCart(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	line := cart.Items[0]
	assert.Equal(t, 2, line.Quantity)
	require.NotNil(t, line.Product)
	assert.True(t, line.Product.Price.Equal(dec("100.00")))
	assert.True(t, line.Subtotal.Equal(dec("200")))
	assert.True(t, cart.Total.Equal(dec("200")))
}

func TestAddToCartIncrementsCompositeKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Rings", nil)
	u := mustUser(t, s, "buyer@example.com")
	other := mustUser(t, s, "other@example.com")

	d, err := s.CreateProduct(ctx, ProductInput{Name: "Band", Price: dec("10"), CategoryID: cat.ID, Sizes: []string{"6", "7"}})
	require.NoError(t, err)
	size6, size7 := d.Variants[0].ID, d.Variants[1].ID

	first, err := s.AddToCart(ctx, u.ID, CartInput{ProductID: d.ID})
	require.NoError(t, err)
	second, err := s.AddToCart(ctx, u.ID, CartInput{ProductID: d.ID, VariantID: ptr(""), Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Quantity)

	_, err = s.AddToCart(ctx, u.ID, CartInput{ProductID: d.ID, VariantID: &size6})
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, u.ID, CartInput{ProductID: d.ID, VariantID: &size6})
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, u.ID, CartInput{ProductID: d.ID, VariantID: &size7})
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, other.ID, CartInput{ProductID: d.ID, VariantID: &size6})
	require.NoError(t, err)

	items, err := s.CartItems.FindMany(ctx, docstore.Where(docstore.Eq("userId", u.ID)))
	require.NoError(t, err)
	require.Len(t, items, 3)
	quantities := map[string]int{}
	for _, it := range items {
		key := "none"
		if it.VariantID != nil {
			key = *it.VariantID
		}
		quantities[key] = it.Quantity
	}
	assert.Equal(t, map[string]int{"none": 3, size6: 2, size7: 1}, quantities)

	cart, err := s.GetCart(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 3)
	require.NotNil(t, cart.Items[1].Variant)
	assert.Equal(t, "6", cart.Items[1].Variant.Value)
}

func TestAddToCartConcurrentSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Rings", nil)
	u := mustUser(t, s, "buyer@example.com")
	p := mustProduct(t, s, cat.ID, "Band", "10")

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.AddToCart(ctx, u.ID, CartInput{ProductID: p.ID, Quantity: 1})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	items, err := s.CartItems.FindMany(ctx, docstore.Where(docstore.Eq("userId", u.ID)))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, n, items[0].Quantity)
}

func TestAddToCartValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Rings", nil)
	u := mustUser(t, s, "buyer@example.com")
	p := mustProduct(t, s, cat.ID, "Band", "10")
	q := mustProduct(t, s, cat.ID, "Chain", "10")
	d, err := s.CreateProduct(ctx, ProductInput{Name: "Cuff", Price: dec("10"), CategoryID: cat.ID, Sizes: []string{"S"}})
	require.NoError(t, err)

	_, err = s.AddToCart(ctx, u.ID, CartInput{ProductID: "prod_missing"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = s.AddToCart(ctx, u.ID, CartInput{ProductID: p.ID, Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = s.AddToCart(ctx, u.ID, CartInput{ProductID: q.ID, VariantID: &d.Variants[0].ID})
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestUpdateAndRemoveCartItemOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Rings", nil)
	u := mustUser(t, s, "buyer@example.com")
	intruder := mustUser(t, s, "intruder@example.com")
	p := mustProduct(t, s, cat.ID, "Band", "10")

	item, err := s.AddToCart(ctx, u.ID, CartInput{ProductID: p.ID})
	require.NoError(t, err)

	_, err = s.UpdateCartItem(ctx, intruder.ID, item.ID, 5)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
	assert.ErrorIs(t, s.RemoveCartItem(ctx, intruder.ID, item.ID), ErrCartItemNotFound)

	updated, err := s.UpdateCartItem(ctx, u.ID, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	removed, err := s.UpdateCartItem(ctx, u.ID, item.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, removed)

	_, err = s.UpdateCartItem(ctx, u.ID, item.ID, 1)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	again, err := s.AddToCart(ctx, u.ID, CartInput{ProductID: p.ID})
	require.NoError(t, err)
	require.NoError(t, s.RemoveCartItem(ctx, u.ID, again.ID))

	cart, err := s.GetCart(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestGetCartWithDeletedProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := mustCategory(t, s, "Rings", nil)
	u := mustUser(t, s, "buyer@example.com")
	p := mustProduct(t, s, cat.ID, "Band", "10")

	_, err := s.CartItems.Create(ctx, cartItemFor(u.ID, p.ID))
	require.NoError(t, err)
	require.NoError(t, s.Products.Delete(ctx, p.ID))

	cart, err := s.GetCart(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Nil(t, cart.Items[0].Product)
	assert.True(t, cart.Total.IsZero())
}
