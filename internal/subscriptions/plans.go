package subscriptions

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// FreeListingLimit caps active listings on the free plan.
const FreeListingLimit = 5

var AllPlans = []Plan{PlanFree, PlanBasic, PlanPremium}

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPremium:
		return true
	}
	return false
}

// Features is the bundle a plan grants. It is copied onto every subscription
// record so history keeps the terms that applied at the time.
type Features struct {
	AnalyticsAccess   bool            `json:"analytics_access"`
	PrioritySupport   bool            `json:"priority_support"`
	UnlimitedListings bool            `json:"unlimited_listings"`
	FeaturedListings  int             `json:"featured_listings"`
	CommissionRate    decimal.Decimal `json:"commission_rate"` // percent
}

type PlanInfo struct {
	Plan        Plan            `json:"plan"`
	DisplayName string          `json:"display_name"`
	Price       decimal.Decimal `json:"price"`
	MaxListings *int            `json:"max_listings"` // nil = unlimited
	Features    Features        `json:"features"`
	Highlights  []string        `json:"highlights"`
}

func (p Plan) Features() Features {
	switch p {
	case PlanBasic:
		return Features{
			AnalyticsAccess:   true,
			UnlimitedListings: true,
			FeaturedListings:  1,
			CommissionRate:    decimal.NewFromInt(3),
		}
	case PlanPremium:
		return Features{
			AnalyticsAccess:   true,
			PrioritySupport:   true,
			UnlimitedListings: true,
			FeaturedListings:  5,
			CommissionRate:    decimal.NewFromInt(2),
		}
	default:
		return Features{CommissionRate: decimal.NewFromInt(5)}
	}
}

func (p Plan) Price() decimal.Decimal {
	switch p {
	case PlanBasic:
		return decimal.RequireFromString("9.99")
	case PlanPremium:
		return decimal.RequireFromString("19.99")
	default:
		return decimal.Zero
	}
}

func (p Plan) DisplayName() string {
	switch p {
	case PlanBasic:
		return "Basic Pro"
	case PlanPremium:
		return "Premium Pro"
	default:
		return "Free"
	}
}

// MaxListings reports the active listing cap; ok is false when unlimited.
func (p Plan) MaxListings() (n int, ok bool) {
	if p == PlanFree {
		return FreeListingLimit, true
	}
	return 0, false
}

// EndDate is start plus the plan term: a month for paid plans, effectively
// permanent for free.
func (p Plan) EndDate(start time.Time) time.Time {
	if p == PlanFree {
		return start.AddDate(100, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

func (p Plan) Info() PlanInfo {
	info := PlanInfo{
		Plan:        p,
		DisplayName: p.DisplayName(),
		Price:       p.Price(),
		Features:    p.Features(),
		Highlights:  highlights[p],
	}
	if n, ok := p.MaxListings(); ok {
		info.MaxListings = &n
	}
	return info
}

var highlights = map[Plan][]string{
	PlanFree: {
		"Up to 5 product listings",
		"Basic marketplace access",
		"Standard support",
		"5% commission on sales",
	},
	PlanBasic: {
		"Unlimited product listings",
		"Basic analytics dashboard",
		"Priority in search results",
		"1 featured listing per month",
		"3% commission on sales",
	},
	PlanPremium: {
		"Everything in Basic",
		"Advanced analytics & insights",
		"Priority customer support",
		"5 featured listings per month",
		"Early access to new features",
		"2% commission on sales",
	},
}

// Commission is the platform fee on a sale of amount under plan p, rounded to cents.
func Commission(p Plan, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.Features().CommissionRate).Div(decimal.NewFromInt(100)).Round(2)
}
