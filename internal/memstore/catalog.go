package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
)

func cloneProduct(p catalog.Product) catalog.Product {
	p.ImageURLs = cloneStrings(p.ImageURLs)
	p.Tags = cloneStrings(p.Tags)
	p.DeliveryOptions = append([]catalog.DeliveryOption(nil), p.DeliveryOptions...)
	return p
}

func (s *Store) CreateProduct(_ context.Context, p catalog.Product, gate catalog.ListingGate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateProduct"); err != nil {
		return err
	}
	if gate != nil {
		if err := gate(s.activeListingsLocked(p.FarmerID)); err != nil {
			return err
		}
	}
	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, apperr.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *Store) ListProducts(_ context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	// same base order as the postgres store: created_at, then id
	slices.SortFunc(out, func(a, b catalog.Product) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) activeListingsLocked(farmerID string) int {
	n := 0
	for _, p := range s.products {
		if p.FarmerID == farmerID && p.IsAvailable {
			n++
		}
	}
	return n
}

func (s *Store) updateProduct(id string, fn func(*catalog.Product)) error {
	p, ok := s.products[id]
	if !ok {
		return apperr.ErrNotFound
	}
	fn(&p)
	s.products[id] = p
	return nil
}

func (s *Store) SetProductAvailability(_ context.Context, id string, available bool, at time.Time, gate catalog.ListingGate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetProductAvailability"); err != nil {
		return err
	}
	cur, ok := s.products[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if gate != nil && available && !cur.IsAvailable {
		if err := gate(s.activeListingsLocked(cur.FarmerID)); err != nil {
			return err
		}
	}
	return s.updateProduct(id, func(p *catalog.Product) {
		p.IsAvailable = available
		p.UpdatedAt = at
	})
}

func (s *Store) IncrementProductViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateProduct(id, func(p *catalog.Product) { p.Views++ })
}

func (s *Store) IncrementProductLikes(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateProduct(id, func(p *catalog.Product) { p.Likes++ })
}

func (s *Store) DecrementStock(_ context.Context, id string, qty decimal.Decimal, at time.Time) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DecrementStock"); err != nil {
		return catalog.Product{}, err
	}
	err := s.updateProduct(id, func(p *catalog.Product) {
		left := p.AvailableQuantity.Sub(qty)
		if !left.IsPositive() {
			left = decimal.Zero
			p.IsAvailable = false
		}
		p.AvailableQuantity = left
		p.UpdatedAt = at
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return cloneProduct(s.products[id]), nil
}

func (s *Store) ListCart(_ context.Context, userID string) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cart.Item, 0)
	for _, it := range s.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) GetCartItem(_ context.Context, id string) (cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.cart {
		if it.ID == id {
			return it, nil
		}
	}
	return cart.Item{}, apperr.ErrNotFound
}

func (s *Store) SaveCartItem(_ context.Context, it cart.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SaveCartItem"); err != nil {
		return err
	}
	for i := range s.cart {
		if s.cart[i].ID == it.ID {
			s.cart[i] = it
			return nil
		}
	}
	s.cart = append(s.cart, it)
	return nil
}

func (s *Store) DeleteCartItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteCartItem"); err != nil {
		return err
	}
	for i := range s.cart {
		if s.cart[i].ID == id {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (s *Store) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ClearCart"); err != nil {
		return err
	}
	s.clearCartLocked(userID)
	return nil
}

func (s *Store) clearCartLocked(userID string) {
	kept := s.cart[:0]
	for _, it := range s.cart {
		if it.UserID != userID {
			kept = append(kept, it)
		}
	}
	s.cart = kept
}
