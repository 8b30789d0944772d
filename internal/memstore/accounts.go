package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

func cloneUser(u accounts.User) accounts.User {
	u.Certifications = cloneStrings(u.Certifications)
	return u
}

func (s *Store) CreateUser(_ context.Context, u accounts.User, sub subscriptions.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateUser"); err != nil {
		return err
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return accounts.ErrEmailTaken
		}
	}
	s.users[u.ID] = cloneUser(u)
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return accounts.User{}, apperr.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) UserExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *Store) UpdateUser(_ context.Context, u accounts.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateUser"); err != nil {
		return err
	}
	if _, ok := s.users[u.ID]; !ok {
		return apperr.ErrNotFound
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *Store) ListFarmers(_ context.Context) ([]accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.User, 0)
	for _, u := range s.users {
		if u.IsFarmer() {
			out = append(out, cloneUser(u))
		}
	}
	slices.SortFunc(out, func(a, b accounts.User) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) ActiveSubscription(_ context.Context, userID string) (subscriptions.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.subs) - 1; i >= 0; i-- {
		if s.subs[i].UserID == userID && s.subs[i].IsActive {
			return s.subs[i], nil
		}
	}
	return subscriptions.Subscription{}, apperr.ErrNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, userID string) ([]subscriptions.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]subscriptions.Subscription, 0)
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) ReplaceSubscription(_ context.Context, next subscriptions.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ReplaceSubscription"); err != nil {
		return err
	}
	u, ok := s.users[next.UserID]
	if !ok {
		return apperr.ErrNotFound
	}
	for i := range s.subs {
		if s.subs[i].UserID == next.UserID {
			s.subs[i].IsActive = false
		}
	}
	s.subs = append(s.subs, next)
	end := next.EndDate
	u.IsProSubscriber = next.Plan != subscriptions.PlanFree
	u.SubscriptionExpiresAt = &end
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return nil
}
