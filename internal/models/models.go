package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/docstore"
)

func init() {
	// Collections store prices as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	docstore.Meta
	Email         string     `json:"email"`
	Name          string     `json:"name,omitempty"`
	Password      string     `json:"password,omitempty"`
	Role          Role       `json:"role"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Image         string     `json:"image,omitempty"`
}

// Public returns a copy safe to send to clients.
func (u User) Public() User {
	u.Password = ""
	return u
}

type Category struct {
	docstore.Meta
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parentId"`
}

type Product struct {
	docstore.Meta
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	CategoryID  string          `json:"categoryId"`
	Material    string          `json:"material,omitempty"`
	Featured    bool            `json:"featured"`
}

type ProductImage struct {
	docstore.Meta
	ProductID string `json:"productId"`
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	Position  int    `json:"position"`
}

type Variant struct {
	docstore.Meta
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Value     string `json:"value"`
}

type Inventory struct {
	docstore.Meta
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	docstore.Meta
	UserID            string          `json:"userId"`
	Status            OrderStatus     `json:"status"`
	Total             decimal.Decimal `json:"total"`
	Currency          string          `json:"currency"`
	StripePaymentID   *string         `json:"stripePaymentId"`
	ShippingAddressID *string         `json:"shippingAddressId"`
}

// OrderItem.Price is the product price at the moment the order was placed.
type OrderItem struct {
	docstore.Meta
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	VariantID *string         `json:"variantId"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	docstore.Meta
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

// CartItem is unique per (UserID, ProductID, VariantID).
type CartItem struct {
	docstore.Meta
	UserID    string  `json:"userId"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	VariantID *string `json:"variantId"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
