package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/currency"
	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
	"github.com/etotom/safarov-shop/internal/payment"
)

type CheckoutRequest struct {
	UserID string
	Email  string
	// ShippingAddressID selects one of the user's saved addresses.
	ShippingAddressID string
	// ShippingAddress is saved as a new address when no ID is given.
	ShippingAddress *AddressInput
}

type CheckoutResult struct {
	Order   models.Order       `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Session *payment.Session   `json:"session"`
}

type OrderItemView struct {
	models.OrderItem
	ProductName string `json:"productName"`
	ProductSlug string `json:"productSlug,omitempty"`
}

type OrderView struct {
	models.Order
	Items []OrderItemView `json:"items"`
}

type OrderFilter struct {
	Status   models.OrderStatus
	UserID   string
	Page     int
	PageSize int
}

type DashboardStats struct {
	Products      int             `json:"products"`
	Categories    int             `json:"categories"`
	Users         int             `json:"users"`
	Orders        int             `json:"orders"`
	PendingOrders int             `json:"pendingOrders"`
	Revenue       decimal.Decimal `json:"revenue"`
	Currency      string          `json:"currency"`
	RecentOrders  []models.Order  `json:"recentOrders"`
}

// compensation undoes one completed checkout step.
type compensation struct {
	name string
	undo func(context.Context) error
}

type saga struct {
	log   interface{ Error(string, ...any) }
	steps []compensation
}

func (sg *saga) onFailure(name string, undo func(context.Context) error) {
	sg.steps = append(sg.steps, compensation{name: name, undo: undo})
}

// rollback runs the compensations newest first. It uses a context detached
// from cancellation so a cancelled request still cleans up.
func (sg *saga) rollback(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(sg.steps) - 1; i >= 0; i-- {
		step := sg.steps[i]
		if err := step.undo(ctx); err != nil {
			sg.log.Error("checkout compensation failed", "step", step.name, "cause", cause, "error", err)
		}
	}
}

// Checkout turns the user's cart into a PENDING order priced at the current
// product prices and opens a payment session for it. The cart is left intact;
// ConfirmPayment clears it once the processor reports the payment.
//
// Each write is undone if a later step fails, so a failed checkout leaves no
// order, order items or newly saved address behind.
func (s *Store) Checkout(ctx context.Context, req CheckoutRequest) (result *CheckoutResult, err error) {
	if s.processor == nil {
		return nil, ErrPaymentUnavailable
	}

	cart, err := s.GetCart(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	sg := &saga{log: s.log}
	defer func() {
		if err != nil {
			sg.rollback(ctx, err)
		}
	}()

	var addressID *string
	switch {
	case req.ShippingAddressID != "":
		addr, err := s.GetAddress(ctx, req.UserID, req.ShippingAddressID)
		if err != nil {
			return nil, err
		}
		addressID = models.StringPtr(addr.ID)
	case req.ShippingAddress != nil:
		addr, err := s.CreateAddress(ctx, req.UserID, *req.ShippingAddress)
		if err != nil {
			return nil, err
		}
		addressID = models.StringPtr(addr.ID)
		sg.onFailure("delete address", func(ctx context.Context) error {
			return s.Addresses.Delete(ctx, addr.ID)
		})
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(cart.Items))
	lineItems := make([]payment.LineItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		if line.Product == nil {
			return nil, fmt.Errorf("checkout: cart item %s: %w", line.ID, ErrProductNotFound)
		}
		price := currency.Convert(line.Product.Price, line.Product.Currency, s.currency).Round(2)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))

		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     price,
			VariantID: line.VariantID,
		})

		li := payment.LineItem{Name: line.Product.Name, UnitPrice: price, Quantity: line.Quantity}
		if line.Image != nil {
			li.Image = line.Image.URL
		}
		lineItems = append(lineItems, li)
	}

	session, err := s.processor.CreateCheckoutSession(ctx, payment.SessionParams{
		Currency:      s.currency,
		CustomerEmail: req.Email,
		LineItems:     lineItems,
		Metadata: map[string]string{
			"userId":    req.UserID,
			"addressId": models.StringValue(addressID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	order, err := s.Orders.Create(ctx, models.Order{
		UserID:            req.UserID,
		Status:            models.OrderStatusPending,
		Total:             total,
		Currency:          s.currency,
		StripePaymentID:   models.StringPtr(session.ID),
		ShippingAddressID: addressID,
	})
	if err != nil {
		return nil, err
	}
	sg.onFailure("delete order", func(ctx context.Context) error {
		return s.Orders.Delete(ctx, order.ID)
	})

	for i := range items {
		items[i].OrderID = order.ID
	}
	created, err := s.OrderItems.CreateMany(ctx, items)
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		"order_id", order.ID,
		"user_id", req.UserID,
		"total", total.StringFixed(2),
		"items", len(created),
		"payment_id", session.ID,
	)

	return &CheckoutResult{Order: *order, Items: created, Session: session}, nil
}

func (s *Store) orderView(ctx context.Context, order models.Order) (*OrderView, error) {
	items, err := s.OrderItems.FindMany(ctx, docstore.Query{
		Where:   []docstore.Cond{docstore.Eq("orderId", order.ID)},
		OrderBy: docstore.Asc("createdAt"),
	})
	if err != nil {
		return nil, err
	}

	view := &OrderView{Order: order, Items: make([]OrderItemView, 0, len(items))}
	for _, item := range items {
		iv := OrderItemView{OrderItem: item, ProductName: "Unknown"}
		p, err := s.Products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			iv.ProductName = p.Name
			iv.ProductSlug = p.Slug
		}
		view.Items = append(view.Items, iv)
	}
	return view, nil
}

// ListOrders returns the user's orders newest first, each with its items.
func (s *Store) ListOrders(ctx context.Context, userID string) ([]OrderView, error) {
	orders, err := s.Orders.FindMany(ctx, docstore.Query{
		Where:   []docstore.Cond{docstore.Eq("userId", userID)},
		OrderBy: docstore.Desc("createdAt"),
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		v, err := s.orderView(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	order, err := s.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.orderView(ctx, *order)
}

func (s *Store) ListAllOrders(ctx context.Context, f OrderFilter) (*OffsetPage[models.Order], error) {
	var where []docstore.Cond
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		where = append(where, docstore.Eq("status", f.Status))
	}
	if f.UserID != "" {
		where = append(where, docstore.Eq("userId", f.UserID))
	}

	page, size, skip := normalizePage(f.Page, f.PageSize)

	total, err := s.Orders.Count(ctx, docstore.Query{Where: where})
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	orders, err := s.Orders.FindMany(ctx, docstore.Query{
		Where:   where,
		OrderBy: docstore.Desc("createdAt"),
		Skip:    skip,
		Take:    size,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return newOffsetPage(orders, total, page, size), nil
}

// SetOrderStatus overwrites the status of an order. Any valid status may
// follow any other; models.OrderStatus.CanTransitionTo describes the usual
// lifecycle; changes outside it are applied and logged.
func (s *Store) SetOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var prev models.OrderStatus
	order, err := s.Orders.Update(ctx, id, func(o *models.Order) {
		prev = o.Status
		o.Status = status
	})
	if isNotFound(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if prev != status && !prev.CanTransitionTo(status) {
		s.log.Warn("order status changed outside lifecycle", "order_id", id, "from", prev, "to", status)
	}
	return order, nil
}

// ConfirmPayment moves the PENDING orders paid through paymentID to
// PROCESSING and empties the buyer's cart. userID comes from the session
// metadata; when it is empty the buyers of the matched orders are used.
// Redelivered events are harmless because only PENDING orders are touched.
func (s *Store) ConfirmPayment(ctx context.Context, paymentID, userID string) (int, error) {
	if paymentID == "" {
		return 0, fmt.Errorf("%w: payment id is required", ErrInvalidInput)
	}

	byPayment := []docstore.Cond{
		docstore.Eq("stripePaymentId", paymentID),
		docstore.Eq("status", models.OrderStatusPending),
	}

	buyers := map[string]bool{}
	if userID != "" {
		buyers[userID] = true
	} else {
		orders, err := s.Orders.FindMany(ctx, docstore.Where(byPayment...))
		if err != nil {
			return 0, err
		}
		for _, o := range orders {
			buyers[o.UserID] = true
		}
	}

	n, err := s.Orders.UpdateMany(ctx, docstore.Where(byPayment...), func(o *models.Order) {
		o.Status = models.OrderStatusProcessing
	})
	if err != nil {
		return 0, fmt.Errorf("confirm payment: %w", err)
	}

	for buyer := range buyers {
		cleared, err := s.ClearCart(ctx, buyer)
		if err != nil {
			return n, fmt.Errorf("confirm payment: clear cart: %w", err)
		}
		s.log.Info("payment confirmed", "payment_id", paymentID, "user_id", buyer, "orders", n, "cart_items_cleared", cleared)
	}
	return n, nil
}

// Revenue sums the totals of every order that was not cancelled.
func (s *Store) Revenue(ctx context.Context) (decimal.Decimal, error) {
	return s.Orders.Sum(ctx, "total", docstore.Where(docstore.Not("status", models.OrderStatusCancelled)))
}

func (s *Store) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var (
		stats = &DashboardStats{Currency: s.currency}
		err   error
	)

	if stats.Products, err = s.Products.Count(ctx, docstore.Query{}); err != nil {
		return nil, err
	}
	if stats.Categories, err = s.Categories.Count(ctx, docstore.Query{}); err != nil {
		return nil, err
	}
	if stats.Users, err = s.Users.Count(ctx, docstore.Query{}); err != nil {
		return nil, err
	}
	if stats.Orders, err = s.Orders.Count(ctx, docstore.Query{}); err != nil {
		return nil, err
	}
	if stats.PendingOrders, err = s.Orders.Count(ctx, docstore.Where(docstore.Eq("status", models.OrderStatusPending))); err != nil {
		return nil, err
	}
	if stats.Revenue, err = s.Revenue(ctx); err != nil {
		return nil, err
	}
	if stats.RecentOrders, err = s.Orders.FindMany(ctx, docstore.Query{OrderBy: docstore.Desc("createdAt"), Take: 5}); err != nil {
		return nil, err
	}
	return stats, nil
}
