package subscriptions

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAddProduct(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	free := New("u1", PlanFree, now)
	basic := New("u1", PlanBasic, now)
	inactive := New("u1", PlanPremium, now)
	inactive.IsActive = false

	tests := []struct {
		name   string
		sub    *Subscription
		active int
		want   bool
	}{
		{"no subscription", nil, 0, false},
		{"inactive paid", &inactive, 0, false},
		{"free under limit", &free, 4, true},
		{"free at limit", &free, 5, false},
		{"free over limit", &free, 9, false},
		{"basic unlimited", &basic, 500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAddProduct(tt.sub, tt.active))
		})
	}
}

func TestPlanInfo(t *testing.T) {
	info := PlanFree.Info()
	require.NotNil(t, info.MaxListings)
	assert.Equal(t, FreeListingLimit, *info.MaxListings)
	assert.True(t, info.Price.IsZero())

	premium := PlanPremium.Info()
	assert.Nil(t, premium.MaxListings)
	assert.Equal(t, "19.99", premium.Price.String())
	assert.True(t, premium.Features.PrioritySupport)
	assert.Equal(t, 5, premium.Features.FeaturedListings)
	assert.NotEmpty(t, premium.Highlights)
}

func TestPlanEndDate(t *testing.T) {
	start := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, start.AddDate(0, 1, 0), PlanBasic.EndDate(start))
	assert.True(t, PlanFree.EndDate(start).After(start.AddDate(50, 0, 0)))
}

func TestCommission(t *testing.T) {
	amount := decimal.RequireFromString("250.00")
	assert.Equal(t, "12.5", Commission(PlanFree, amount).String())
	assert.Equal(t, "7.5", Commission(PlanBasic, amount).String())
	assert.Equal(t, "5", Commission(PlanPremium, amount).String())
}

func TestPlanValid(t *testing.T) {
	for _, p := range AllPlans {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Plan("gold").Valid())
}
