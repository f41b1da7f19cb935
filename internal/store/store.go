// Package store implements the storefront operations on top of the typed
// entity collections.
package store

import (
	"log/slog"
	"strings"
	"time"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
	"github.com/etotom/safarov-shop/internal/payment"
)

type Options struct {
	// Processor creates checkout sessions. Checkout fails with
	// ErrPaymentUnavailable when it is nil.
	Processor payment.Processor
	// Currency orders are charged in. Defaults to USD.
	Currency string
	Logger   *slog.Logger
}

// Store holds one collection per entity.
type Store struct {
	Users         *docstore.Collection[models.User, *models.User]
	Categories    *docstore.Collection[models.Category, *models.Category]
	Products      *docstore.Collection[models.Product, *models.Product]
	ProductImages *docstore.Collection[models.ProductImage, *models.ProductImage]
	Variants      *docstore.Collection[models.Variant, *models.Variant]
	Inventory     *docstore.Collection[models.Inventory, *models.Inventory]
	Orders        *docstore.Collection[models.Order, *models.Order]
	OrderItems    *docstore.Collection[models.OrderItem, *models.OrderItem]
	Addresses     *docstore.Collection[models.Address, *models.Address]
	CartItems     *docstore.Collection[models.CartItem, *models.CartItem]

	backend   docstore.Backend
	processor payment.Processor
	currency  string
	log       *slog.Logger
}

func New(backend docstore.Backend, opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	currency := strings.ToUpper(opts.Currency)
	if currency == "" {
		currency = "USD"
	}

	s := &Store{
		Users:         docstore.NewCollection[models.User](backend, "users", "user"),
		Categories:    docstore.NewCollection[models.Category](backend, "categories", "cat"),
		Products:      docstore.NewCollection[models.Product](backend, "products", "prod"),
		ProductImages: docstore.NewCollection[models.ProductImage](backend, "productImages", "img"),
		Variants:      docstore.NewCollection[models.Variant](backend, "variants", "var"),
		Inventory:     docstore.NewCollection[models.Inventory](backend, "inventory", "inv"),
		Orders:        docstore.NewCollection[models.Order](backend, "orders", "order"),
		OrderItems:    docstore.NewCollection[models.OrderItem](backend, "orderItems", "oi"),
		Addresses:     docstore.NewCollection[models.Address](backend, "addresses", "addr"),
		CartItems:     docstore.NewCollection[models.CartItem](backend, "cartItems", "cart"),
		backend:       backend,
		processor:     opts.Processor,
		currency:      currency,
		log:           log,
	}
	s.eachCollection(func(c interface{ SetLogger(*slog.Logger) }) { c.SetLogger(log) })
	return s
}

func (s *Store) eachCollection(fn func(interface{ SetLogger(*slog.Logger) })) {
	fn(s.Users)
	fn(s.Categories)
	fn(s.Products)
	fn(s.ProductImages)
	fn(s.Variants)
	fn(s.Inventory)
	fn(s.Orders)
	fn(s.OrderItems)
	fn(s.Addresses)
	fn(s.CartItems)
}

// SetClock overrides the time source of every collection.
func (s *Store) SetClock(now func() time.Time) {
	s.Users.SetClock(now)
	s.Categories.SetClock(now)
	s.Products.SetClock(now)
	s.ProductImages.SetClock(now)
	s.Variants.SetClock(now)
	s.Inventory.SetClock(now)
	s.Orders.SetClock(now)
	s.OrderItems.SetClock(now)
	s.Addresses.SetClock(now)
	s.CartItems.SetClock(now)
}

func (s *Store) Currency() string {
	return s.currency
}

func (s *Store) Close() error {
	return s.backend.Close()
}
