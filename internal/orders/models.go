package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/catalog"
)

type Order struct {
	ID              string                 `json:"id"`
	CustomerID      string                 `json:"customer_id"`
	FarmerID        string                 `json:"farmer_id"`
	Items           []Item                 `json:"items"`
	TotalAmount     decimal.Decimal        `json:"total_amount"` // snapshot at creation
	Status          Status                 `json:"status"`
	PaymentStatus   PaymentStatus          `json:"payment_status"`
	DeliveryOption  catalog.DeliveryOption `json:"delivery_option"`
	DeliveryAddress string                 `json:"delivery_address,omitempty"`
	DeliveryDate    *time.Time             `json:"delivery_date,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	CustomerRating  *float64               `json:"customer_rating,omitempty"`
	CustomerReview  string                 `json:"customer_review,omitempty"`
}

type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}
