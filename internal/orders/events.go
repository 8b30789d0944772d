package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreatedPayload struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	FarmerID    string          `json:"farmer_id"`
	Items       []ItemPrice     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type StatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorID   string    `json:"actor_id"`
	ChangedAt time.Time `json:"changed_at"`
}

func createdPayload(o Order) CreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return CreatedPayload{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		FarmerID:    o.FarmerID,
		Items:       items,
		TotalAmount: o.TotalAmount,
	}
}
