package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/orders"
)

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.Item(nil), o.Items...)
	if o.CustomerRating != nil {
		r := *o.CustomerRating
		o.CustomerRating = &r
	}
	return o
}

func (s *Store) PlaceOrders(_ context.Context, placed []orders.Order, clearCartOf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("PlaceOrders"); err != nil {
		return err
	}
	for _, o := range placed {
		s.orders = append(s.orders, cloneOrder(o))
	}
	if clearCartOf != "" {
		s.clearCartLocked(clearCartOf)
	}
	return nil
}

func (s *Store) orderIndex(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.orderIndex(id)
	if i < 0 {
		return orders.Order{}, apperr.ErrNotFound
	}
	return cloneOrder(s.orders[i]), nil
}

func (s *Store) listOrders(match func(orders.Order) bool) []orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (s *Store) ListOrdersByCustomer(_ context.Context, customerID string) ([]orders.Order, error) {
	return s.listOrders(func(o orders.Order) bool { return o.CustomerID == customerID }), nil
}

func (s *Store) ListOrdersByFarmer(_ context.Context, farmerID string) ([]orders.Order, error) {
	return s.listOrders(func(o orders.Order) bool { return o.FarmerID == farmerID }), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, from, to orders.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	i := s.orderIndex(id)
	if i < 0 {
		return apperr.ErrNotFound
	}
	if s.orders[i].Status != from {
		return orders.ErrStaleStatus
	}
	s.orders[i].Status = to
	s.orders[i].UpdatedAt = at
	return nil
}

func (s *Store) RateOrder(_ context.Context, id string, rating float64, review string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RateOrder"); err != nil {
		return err
	}
	i := s.orderIndex(id)
	if i < 0 {
		return apperr.ErrNotFound
	}
	o := &s.orders[i]
	if o.CustomerRating != nil {
		return orders.ErrAlreadyRated
	}
	farmer, ok := s.users[o.FarmerID]
	if !ok {
		return apperr.ErrNotFound
	}
	r := rating
	o.CustomerRating = &r
	o.CustomerReview = review
	o.UpdatedAt = at
	farmer.Rating, farmer.TotalReviews = accounts.FoldRating(farmer.Rating, farmer.TotalReviews, rating)
	farmer.UpdatedAt = at
	s.users[farmer.ID] = farmer
	return nil
}
