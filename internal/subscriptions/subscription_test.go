package subscriptions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/memstore"
	"github.com/ariefcatur/go-agro-market/internal/payment"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

var clock = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	gw     *payment.Simulated
	events *events.Recorder
	svc    *subscriptions.Service
	userID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	now := func() time.Time { return clock }
	users := &accounts.Service{Repo: store, Now: now}
	u, _, err := users.Register(context.Background(), accounts.RegisterInput{
		Name: "Maria", Email: "maria@example.md", Phone: "+373", Role: accounts.RoleFarmer,
		Location: "Orhei", FarmName: "Green Valley",
	})
	require.NoError(t, err)

	gw := &payment.Simulated{Outcome: payment.Authorized}
	rec := &events.Recorder{}
	return &fixture{
		store:  store,
		gw:     gw,
		events: rec,
		userID: u.ID,
		svc: &subscriptions.Service{
			Repo:     store,
			Payments: gw,
			Merchant: payment.Merchant{ID: "merchant.test", Currency: "USD", CountryCode: "US"},
			Events:   rec,
			Producer: "test",
			Now:      now,
		},
	}
}

func TestChange_UpgradeReplacesActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.svc.Change(ctx, f.userID, subscriptions.ChangeInput{Plan: subscriptions.PlanBasic, PaymentMethod: "wallet"})
	require.NoError(t, err)
	assert.Equal(t, subscriptions.PlanBasic, sub.Plan)
	assert.Equal(t, clock.AddDate(0, 1, 0), sub.EndDate)

	history, err := f.svc.History(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	active := 0
	for _, h := range history {
		if h.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active, "exactly one active subscription")

	u, err := f.store.GetUser(ctx, f.userID)
	require.NoError(t, err)
	assert.True(t, u.IsProSubscriber)
	require.NotNil(t, u.SubscriptionExpiresAt)
	assert.Equal(t, sub.EndDate, *u.SubscriptionExpiresAt)

	require.Len(t, f.gw.Requests(), 1)
	assert.Equal(t, "9.99", f.gw.Requests()[0].Total().String())
	assert.Len(t, f.events.OfType(events.TypeSubscriptionChanged), 1)
}

func TestChange_SamePlan(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Change(context.Background(), f.userID, subscriptions.ChangeInput{Plan: subscriptions.PlanFree})
	assert.ErrorIs(t, err, subscriptions.ErrSamePlan)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestChange_InvalidPlan(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Change(context.Background(), f.userID, subscriptions.ChangeInput{Plan: "gold"})
	assert.ErrorIs(t, err, subscriptions.ErrInvalidPlan)
}

func TestChange_UnknownUserIsNotCharged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Change(ctx, "no-such-user", subscriptions.ChangeInput{Plan: subscriptions.PlanPremium})
	require.Error(t, err)
	assert.ErrorIs(t, err, subscriptions.ErrUnknownUser)
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, f.gw.Requests(), "gateway must not be called")
	assert.Empty(t, f.events.All())

	history, err := f.svc.History(ctx, "no-such-user")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChange_PaymentNotAuthorizedLeavesState(t *testing.T) {
	for _, tc := range []struct {
		outcome payment.Outcome
		want    error
	}{
		{payment.Declined, payment.ErrDeclined},
		{payment.Cancelled, payment.ErrCancelled},
	} {
		t.Run(string(tc.outcome), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.gw.Outcome = tc.outcome

			_, err := f.svc.Change(ctx, f.userID, subscriptions.ChangeInput{Plan: subscriptions.PlanPremium})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))

			active, err := f.svc.Active(ctx, f.userID)
			require.NoError(t, err)
			assert.Equal(t, subscriptions.PlanFree, active.Plan)
			history, err := f.svc.History(ctx, f.userID)
			require.NoError(t, err)
			assert.Len(t, history, 1)
			u, err := f.store.GetUser(ctx, f.userID)
			require.NoError(t, err)
			assert.False(t, u.IsProSubscriber)
			assert.Empty(t, f.events.All())
		})
	}
}

func TestChange_DowngradeToFreeSkipsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Change(ctx, f.userID, subscriptions.ChangeInput{Plan: subscriptions.PlanBasic})
	require.NoError(t, err)

	sub, err := f.svc.Change(ctx, f.userID, subscriptions.ChangeInput{Plan: subscriptions.PlanFree})
	require.NoError(t, err)
	assert.Equal(t, subscriptions.PlanFree, sub.Plan)
	assert.Len(t, f.gw.Requests(), 1)

	u, err := f.store.GetUser(ctx, f.userID)
	require.NoError(t, err)
	assert.False(t, u.IsProSubscriber)
}

func TestPlans(t *testing.T) {
	plans := (&subscriptions.Service{}).Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, subscriptions.PlanFree, plans[0].Plan)
	assert.Equal(t, "Premium Pro", plans[2].DisplayName)
}
