package demands

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/catalog"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "inProgress"
	StatusFulfilled  Status = "fulfilled"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// validNext lists the moves a requester may make. Expired is reached only
// through the expiry sweep.
var validNext = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusFulfilled, StatusCancelled},
	StatusFulfilled:  {},
	StatusExpired:    {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Expirable reports whether the sweep may move a demand in s to expired.
func (s Status) Expirable() bool {
	return s == StatusOpen || s == StatusInProgress
}

type Demand struct {
	ID                  string                 `json:"id"`
	RequesterID         string                 `json:"requester_id"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	Category            catalog.Category       `json:"category"`
	Quantity            decimal.Decimal        `json:"quantity"`
	Unit                string                 `json:"unit"`
	MaxPrice            decimal.Decimal        `json:"max_price"`
	Location            string                 `json:"location"`
	Latitude            *float64               `json:"latitude,omitempty"`
	Longitude           *float64               `json:"longitude,omitempty"`
	RequiredBy          time.Time              `json:"required_by"`
	IsUrgent            bool                   `json:"is_urgent"`
	IsOrganic           bool                   `json:"is_organic"`
	QualityRequirements []string               `json:"quality_requirements"`
	DeliveryPreference  catalog.DeliveryOption `json:"delivery_preference"`
	Status              Status                 `json:"status"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	Responses           []Response             `json:"responses"`
	Tags                []string               `json:"tags"`
}

// Response is a farmer's offer on a demand. IsAccepted stays nil until the
// requester decides.
type Response struct {
	ID                string          `json:"id"`
	RequestID         string          `json:"request_id"`
	FarmerID          string          `json:"farmer_id"`
	FarmerName        string          `json:"farmer_name"`
	OfferedPrice      decimal.Decimal `json:"offered_price"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	Message           string          `json:"message"`
	CreatedAt         time.Time       `json:"created_at"`
	IsAccepted        *bool           `json:"is_accepted,omitempty"`
	ProductSamples    []string        `json:"product_samples"`
}

func (d Demand) ResponseBy(farmerID string) (Response, bool) {
	for _, r := range d.Responses {
		if r.FarmerID == farmerID {
			return r, true
		}
	}
	return Response{}, false
}
