// Package payment creates checkout sessions with the payment processor and
// verifies the webhook events it sends back.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNoLineItems = errors.New("checkout session needs at least one line item")

type LineItem struct {
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
}

type SessionParams struct {
	Currency      string
	CustomerEmail string
	LineItems     []LineItem
	Metadata      map[string]string
}

// Session is a hosted checkout the customer is redirected to.
type Session struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Currency    string            `json:"currency"`
	AmountTotal decimal.Decimal   `json:"amountTotal"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Processor is the slice of the payment processor API the checkout needs.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
}

// LocalProcessor issues checkout sessions without calling out to a processor.
// Sessions are completed by posting a signed checkout.session.completed event
// to the webhook endpoint.
type LocalProcessor struct {
	appURL string
}

func NewLocalProcessor(appURL string) *LocalProcessor {
	return &LocalProcessor{appURL: strings.TrimRight(appURL, "/")}
}

func (p *LocalProcessor) CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	total := decimal.Zero
	for _, item := range params.LineItems {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("line item %q: quantity must be positive", item.Name)
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	id := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	currency := strings.ToUpper(params.Currency)
	if currency == "" {
		currency = "USD"
	}

	return &Session{
		ID:          id,
		URL:         p.appURL + "/checkout/success?session_id=" + url.QueryEscape(id),
		Currency:    currency,
		AmountTotal: total,
		Metadata:    params.Metadata,
	}, nil
}
