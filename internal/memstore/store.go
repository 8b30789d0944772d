// Package memstore keeps every repository in process memory. It backs the
// tests and STORE_DRIVER=memory; one mutex makes each call atomic.
package memstore

import (
	"sync"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/demands"
	"github.com/ariefcatur/go-agro-market/internal/orders"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

var (
	_ accounts.Repository      = (*Store)(nil)
	_ subscriptions.Repository = (*Store)(nil)
	_ catalog.Repository       = (*Store)(nil)
	_ cart.Repository          = (*Store)(nil)
	_ orders.Repository        = (*Store)(nil)
	_ demands.Repository       = (*Store)(nil)
)

type Store struct {
	mu sync.Mutex

	users    map[string]accounts.User
	subs     []subscriptions.Subscription
	products map[string]catalog.Product
	cart     []cart.Item
	orders   []orders.Order
	demands  []demands.Demand

	// FailWrites, when set, is consulted before every write; a non-nil error
	// aborts the write with nothing changed.
	FailWrites func(op string) error
}

func New() *Store {
	return &Store{
		users:    map[string]accounts.User{},
		products: map[string]catalog.Product{},
	}
}

func (s *Store) fail(op string) error {
	if s.FailWrites == nil {
		return nil
	}
	return s.FailWrites(op)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
