// Package payment abstracts the wallet authorization step. The domain only
// consumes the outcome; no settlement details cross this boundary.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
)

type Outcome string

const (
	Authorized Outcome = "authorized"
	Declined   Outcome = "declined"
	Cancelled  Outcome = "cancelled"
)

type LineItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type Request struct {
	MerchantID  string     `json:"merchant_id"`
	Currency    string     `json:"currency"`
	CountryCode string     `json:"country_code"`
	Items       []LineItem `json:"items"`
}

// Total returns the amount of the trailing "Total" line, or the sum of all
// lines when the request carries none.
func (r Request) Total() decimal.Decimal {
	if n := len(r.Items); n > 0 && r.Items[n-1].Label == TotalLabel {
		return r.Items[n-1].Amount
	}
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Amount)
	}
	return sum
}

const TotalLabel = "Total"

var (
	ErrDeclined  = apperr.New(apperr.KindPayment, "payment declined")
	ErrCancelled = apperr.New(apperr.KindPayment, "payment cancelled")
)

// Check turns a non-authorized outcome into ErrDeclined or ErrCancelled.
func Check(o Outcome) error {
	switch o {
	case Authorized:
		return nil
	case Cancelled:
		return ErrCancelled
	default:
		return ErrDeclined
	}
}

// Gateway authorizes a payment. Authorize blocks until the payer finishes;
// a context that ends first yields Cancelled.
type Gateway interface {
	Authorize(ctx context.Context, req Request) (Outcome, error)
}

// Func adapts a function to Gateway.
type Func func(ctx context.Context, req Request) (Outcome, error)

func (f Func) Authorize(ctx context.Context, req Request) (Outcome, error) { return f(ctx, req) }

// Merchant holds the fixed request fields used for every payment.
type Merchant struct {
	ID          string
	Currency    string
	CountryCode string
}

// NewRequest builds a request with one line per item and a trailing total.
func (m Merchant) NewRequest(items []LineItem) Request {
	total := decimal.Zero
	lines := make([]LineItem, 0, len(items)+1)
	for _, it := range items {
		total = total.Add(it.Amount)
		lines = append(lines, it)
	}
	lines = append(lines, LineItem{Label: TotalLabel, Amount: total})
	return Request{MerchantID: m.ID, Currency: m.Currency, CountryCode: m.CountryCode, Items: lines}
}

// Simulated answers every request with a fixed outcome after an optional delay.
type Simulated struct {
	Outcome Outcome
	Delay   time.Duration
	// Calls records requests in arrival order.
	Calls []Request
	mu    sync.Mutex
}

var ErrEmptyRequest = errors.New("payment request has no items")

func (s *Simulated) Authorize(ctx context.Context, req Request) (Outcome, error) {
	if len(req.Items) == 0 {
		return Declined, ErrEmptyRequest
	}
	s.mu.Lock()
	s.Calls = append(s.Calls, req)
	s.mu.Unlock()
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Cancelled, nil
		case <-t.C:
		}
	} else if ctx.Err() != nil {
		return Cancelled, nil
	}
	if s.Outcome == "" {
		return Authorized, nil
	}
	return s.Outcome, nil
}

// Requests returns a copy of the recorded requests.
func (s *Simulated) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.Calls...)
}

// ParseMode maps the PAYMENT_MODE setting to a simulated outcome.
func ParseMode(mode string) (Outcome, error) {
	switch strings.ToLower(mode) {
	case "", "approve", "authorized":
		return Authorized, nil
	case "decline", "declined":
		return Declined, nil
	case "cancel", "cancelled":
		return Cancelled, nil
	default:
		return "", fmt.Errorf("unknown payment mode %q", mode)
	}
}
