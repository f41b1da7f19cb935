package store

import (
	"errors"

	"github.com/etotom/safarov-shop/internal/docstore"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCannotDeleteSelf   = errors.New("cannot delete your own account")

	ErrCategoryNotFound = errors.New("category not found")
	ErrParentNotFound   = errors.New("parent category not found")
	ErrSelfParent       = errors.New("category cannot be its own parent")
	ErrCategoryCycle    = errors.New("category parent would create a cycle")

	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
	ErrSlugTaken       = errors.New("slug already in use")

	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")

	ErrAddressNotFound = errors.New("address not found")
	ErrForbidden       = errors.New("forbidden")

	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrPaymentUnavailable = errors.New("payment processor not configured")

	ErrInvalidInput = errors.New("invalid input")
)

func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}
