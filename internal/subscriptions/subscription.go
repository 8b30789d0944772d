package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/metrics"
	"github.com/ariefcatur/go-agro-market/internal/payment"
)

type Subscription struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Plan          Plan      `json:"plan"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsActive      bool      `json:"is_active"`
	AutoRenew     bool      `json:"auto_renew"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Features
}

// New returns an active subscription for plan starting at now.
func New(userID string, plan Plan, now time.Time) Subscription {
	return Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Plan:      plan,
		StartDate: now,
		EndDate:   plan.EndDate(now),
		IsActive:  true,
		CreatedAt: now,
		Features:  plan.Features(),
	}
}

// CanAddProduct is the listing gate: no active subscription means no listing,
// free plans stop at FreeListingLimit active listings, paid plans never stop.
func CanAddProduct(sub *Subscription, activeListings int) bool {
	if sub == nil || !sub.IsActive {
		return false
	}
	if limit, limited := sub.Plan.MaxListings(); limited {
		return activeListings < limit
	}
	return true
}

var (
	ErrInvalidPlan = apperr.New(apperr.KindInvalid, "unknown subscription plan")
	ErrSamePlan    = apperr.New(apperr.KindConflict, "already subscribed to this plan")
	ErrUnknownUser = apperr.New(apperr.KindNotFound, "user not found")
)

type Repository interface {
	// ActiveSubscription returns apperr.ErrNotFound when the user has none.
	ActiveSubscription(ctx context.Context, userID string) (Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error)
	// ReplaceSubscription atomically deactivates every active subscription of
	// next.UserID, stores next and updates the user's pro flag and expiry.
	ReplaceSubscription(ctx context.Context, next Subscription) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	Repo     Repository
	Payments payment.Gateway
	Merchant payment.Merchant
	Events   events.Publisher
	Producer string
	Log      *slog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) Plans() []PlanInfo {
	out := make([]PlanInfo, 0, len(AllPlans))
	for _, p := range AllPlans {
		out = append(out, p.Info())
	}
	return out
}

func (s *Service) Active(ctx context.Context, userID string) (Subscription, error) {
	sub, err := s.Repo.ActiveSubscription(ctx, userID)
	if err != nil {
		return Subscription{}, fmt.Errorf("active subscription of %s: %w", userID, err)
	}
	return sub, nil
}

func (s *Service) History(ctx context.Context, userID string) ([]Subscription, error) {
	return s.Repo.ListSubscriptions(ctx, userID)
}

type ChangeInput struct {
	Plan          Plan   `json:"plan" validate:"required"`
	PaymentMethod string `json:"payment_method"`
	AutoRenew     bool   `json:"auto_renew"`
}

// Change moves userID onto in.Plan. Paid plans are authorized first; any
// outcome other than authorized leaves every record untouched.
func (s *Service) Change(ctx context.Context, userID string, in ChangeInput) (Subscription, error) {
	log := logx.OrDiscard(s.Log)
	if !in.Plan.Valid() {
		return Subscription{}, ErrInvalidPlan
	}
	// the user must exist before any money moves
	exists, err := s.Repo.UserExists(ctx, userID)
	if err != nil {
		return Subscription{}, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if !exists {
		return Subscription{}, ErrUnknownUser
	}
	current, err := s.Repo.ActiveSubscription(ctx, userID)
	switch {
	case err == nil && current.Plan == in.Plan:
		return Subscription{}, ErrSamePlan
	case err != nil && !apperr.IsNotFound(err):
		return Subscription{}, err
	}

	if price := in.Plan.Price(); price.IsPositive() {
		req := s.Merchant.NewRequest([]payment.LineItem{{
			Label:  in.Plan.DisplayName() + " subscription",
			Amount: price,
		}})
		outcome, err := s.Payments.Authorize(ctx, req)
		if err != nil {
			return Subscription{}, fmt.Errorf("authorize subscription: %w", err)
		}
		metrics.PaymentOutcomes.WithLabelValues("subscription", string(outcome)).Inc()
		if err := payment.Check(outcome); err != nil {
			log.Info("subscription payment not authorized", "user_id", userID, "plan", in.Plan, "outcome", outcome)
			return Subscription{}, err
		}
	}

	next := New(userID, in.Plan, s.now())
	next.PaymentMethod = in.PaymentMethod
	next.AutoRenew = in.AutoRenew
	if err := s.Repo.ReplaceSubscription(ctx, next); err != nil {
		return Subscription{}, fmt.Errorf("replace subscription: %w", err)
	}
	metrics.SubscriptionChanges.WithLabelValues(string(in.Plan)).Inc()
	log.Info("subscription changed", "user_id", userID, "from", current.Plan, "to", in.Plan)

	s.publish(ctx, next, current.Plan)
	return next, nil
}

type ChangedPayload struct {
	UserID         string    `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
	PreviousPlan   Plan      `json:"previous_plan,omitempty"`
	Plan           Plan      `json:"plan"`
	EndDate        time.Time `json:"end_date"`
}

func (s *Service) publish(ctx context.Context, sub Subscription, prev Plan) {
	if s.Events == nil {
		return
	}
	env, err := events.New(ctx, events.TypeSubscriptionChanged, s.Producer, sub.UserID, ChangedPayload{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		PreviousPlan:   prev,
		Plan:           sub.Plan,
		EndDate:        sub.EndDate,
	})
	if err == nil {
		err = s.Events.Publish(ctx, events.TopicSubscriptionChanged, sub.UserID, env)
	}
	if err != nil {
		logx.OrDiscard(s.Log).Warn("publish subscription event", "user_id", sub.UserID, "err", err)
	}
}
