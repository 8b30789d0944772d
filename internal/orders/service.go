package orders

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/metrics"
	"github.com/ariefcatur/go-agro-market/internal/payment"
	"github.com/ariefcatur/go-agro-market/internal/validate"
)

// DeliveryLeadTime is added to the order date to plan delivery.
const DeliveryLeadTime = 3 * 24 * time.Hour

var (
	ErrEmptyCart         = apperr.New(apperr.KindInvalid, "cart is empty")
	ErrUnknownStatus     = apperr.New(apperr.KindInvalid, "unknown order status")
	ErrInvalidTransition = apperr.New(apperr.KindConflict, "order status transition not allowed")
	ErrNotAuthorized     = apperr.New(apperr.KindForbidden, "not allowed to set this order status")
	ErrNotParticipant    = apperr.New(apperr.KindNotFound, "order not found")
	ErrStaleStatus       = apperr.New(apperr.KindConflict, "order status changed concurrently")
	ErrNotRateable       = apperr.New(apperr.KindConflict, "order can be rated once it is delivered")
	ErrAlreadyRated      = apperr.New(apperr.KindConflict, "order already rated")
)

type Repository interface {
	// PlaceOrders inserts orders with their items and, when clearCartOf is not
	// empty, deletes that user's cart lines. All or nothing.
	PlaceOrders(ctx context.Context, orders []Order, clearCartOf string) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ListOrdersByFarmer(ctx context.Context, farmerID string) ([]Order, error)
	// UpdateOrderStatus moves the order to `to` only while it is still in
	// `from`; otherwise it returns ErrStaleStatus.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, at time.Time) error
	// RateOrder stores the customer rating once and folds it into the
	// farmer's rating in the same step. Returns ErrAlreadyRated on repeat.
	RateOrder(ctx context.Context, id string, rating float64, review string, at time.Time) error
}

type CartReader interface {
	ListCart(ctx context.Context, userID string) ([]cart.Item, error)
}

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (accounts.User, error)
}

type Service struct {
	Repo     Repository
	Carts    CartReader
	Products ProductReader
	Users    UserReader
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

type CheckoutInput struct {
	DeliveryOption  catalog.DeliveryOption `json:"delivery_option" validate:"required,oneof=pickup delivery shipping"`
	DeliveryAddress string                 `json:"delivery_address" validate:"required_unless=DeliveryOption pickup"`
	Notes           string                 `json:"notes" validate:"max=1000"`
}

// Checkout pays for the customer's whole cart and creates one order per
// farmer. Nothing is written unless the payment is authorized.
//
// in.DeliveryOption applies to every placed order and must be offered by
// every product in the cart; the option stored on a cart line only decides
// which lines merge while shopping.
func (s *Service) Checkout(ctx context.Context, customerID string, in CheckoutInput) ([]Order, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.Users.GetUser(ctx, customerID); err != nil {
		return nil, fmt.Errorf("customer %s: %w", customerID, err)
	}
	lines, err := s.Carts.ListCart(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	// lines of one product under different delivery options draw on the same
	// stock, so the check runs on the summed quantity
	var productIDs []string
	wanted := map[string]decimal.Decimal{}
	for _, l := range lines {
		q, seen := wanted[l.ProductID]
		if !seen {
			productIDs = append(productIDs, l.ProductID)
			q = decimal.Zero
		}
		wanted[l.ProductID] = q.Add(l.Quantity)
	}
	for _, id := range productIDs {
		p, err := s.Products.GetProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cart product %s: %w", id, err)
		}
		if err := catalog.CheckPurchase(p, customerID, wanted[id], in.DeliveryOption); err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
	}

	labels := make([]payment.LineItem, 0, len(lines))
	for _, l := range lines {
		labels = append(labels, payment.LineItem{Label: lineLabel(l.ProductName, l.Quantity, l.Unit), Amount: l.LineTotal()})
	}
	if err := s.authorize(ctx, "cart", customerID, s.Merchant.NewRequest(labels)); err != nil {
		return nil, err
	}

	now := s.now()
	groups := cart.GroupByFarmer(lines)
	placed := make([]Order, 0, len(groups))
	for _, g := range groups {
		o := s.newOrder(customerID, g.FarmerID, in, now)
		for _, l := range g.Items {
			o.Items = append(o.Items, newItem(o.ID, l.ProductID, l.ProductName, l.Quantity, l.UnitPrice))
		}
		o.TotalAmount = sumItems(o.Items)
		placed = append(placed, o)
	}
	if err := s.Repo.PlaceOrders(ctx, placed, customerID); err != nil {
		return nil, fmt.Errorf("place orders: %w", err)
	}
	s.afterPlaced(ctx, "cart", placed)
	return placed, nil
}

type BuyNowInput struct {
	ProductID       string                 `json:"product_id" validate:"required"`
	Quantity        decimal.Decimal        `json:"quantity" validate:"gt=0"`
	DeliveryOption  catalog.DeliveryOption `json:"delivery_option" validate:"required,oneof=pickup delivery shipping"`
	DeliveryAddress string                 `json:"delivery_address" validate:"required_unless=DeliveryOption pickup"`
	Notes           string                 `json:"notes" validate:"max=1000"`
}

// BuyNow pays for a single product without touching the cart.
func (s *Service) BuyNow(ctx context.Context, customerID string, in BuyNowInput) (Order, error) {
	if err := validate.Struct(in); err != nil {
		return Order{}, err
	}
	if _, err := s.Users.GetUser(ctx, customerID); err != nil {
		return Order{}, fmt.Errorf("customer %s: %w", customerID, err)
	}
	p, err := s.Products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return Order{}, fmt.Errorf("product %s: %w", in.ProductID, err)
	}
	if err := catalog.CheckPurchase(p, customerID, in.Quantity, in.DeliveryOption); err != nil {
		return Order{}, err
	}
	total := in.Quantity.Mul(p.Price)
	req := s.Merchant.NewRequest([]payment.LineItem{{Label: p.Name, Amount: total}})
	if err := s.authorize(ctx, "buy_now", customerID, req); err != nil {
		return Order{}, err
	}

	o := s.newOrder(customerID, p.FarmerID, CheckoutInput{
		DeliveryOption:  in.DeliveryOption,
		DeliveryAddress: in.DeliveryAddress,
		Notes:           in.Notes,
	}, s.now())
	o.Items = []Item{newItem(o.ID, p.ID, p.Name, in.Quantity, p.Price)}
	o.TotalAmount = sumItems(o.Items)
	if err := s.Repo.PlaceOrders(ctx, []Order{o}, ""); err != nil {
		return Order{}, fmt.Errorf("place order: %w", err)
	}
	s.afterPlaced(ctx, "buy_now", []Order{o})
	return o, nil
}

func (s *Service) authorize(ctx context.Context, flow, customerID string, req payment.Request) error {
	outcome, err := s.Payments.Authorize(ctx, req)
	if err != nil {
		return fmt.Errorf("authorize payment: %w", err)
	}
	metrics.PaymentOutcomes.WithLabelValues(flow, string(outcome)).Inc()
	if err := payment.Check(outcome); err != nil {
		logx.OrDiscard(s.Log).Info("checkout payment not authorized",
			"flow", flow, "customer_id", customerID, "outcome", outcome, "amount", req.Total().String())
		return err
	}
	return nil
}

func (s *Service) newOrder(customerID, farmerID string, in CheckoutInput, now time.Time) Order {
	due := now.Add(DeliveryLeadTime)
	return Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		FarmerID:        farmerID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPaid,
		DeliveryOption:  in.DeliveryOption,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryDate:    &due,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newItem(orderID, productID, name string, qty, unitPrice decimal.Decimal) Item {
	return Item{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		ProductID:   productID,
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		TotalPrice:  qty.Mul(unitPrice),
	}
}

func sumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

func lineLabel(name string, qty decimal.Decimal, unit string) string {
	return fmt.Sprintf("%s (%s %s)", name, qty.String(), unit)
}

func (s *Service) afterPlaced(ctx context.Context, flow string, placed []Order) {
	log := logx.OrDiscard(s.Log)
	for _, o := range placed {
		metrics.OrdersCreated.WithLabelValues(flow).Inc()
		log.Info("order placed", "order_id", o.ID, "customer_id", o.CustomerID, "farmer_id", o.FarmerID,
			"total", o.TotalAmount.String())
		s.publish(ctx, events.TopicOrderCreated, events.TypeOrderCreated, o.ID, createdPayload(o))
	}
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	env, err := events.New(ctx, eventType, s.Producer, orderID, payload)
	if err == nil {
		err = s.Events.Publish(ctx, topic, orderID, env)
	}
	if err != nil {
		logx.OrDiscard(s.Log).Warn("publish order event", "order_id", orderID, "type", eventType, "err", err)
	}
}

// Get returns the order if viewerID is its customer or farmer.
func (s *Service) Get(ctx context.Context, orderID, viewerID string) (Order, error) {
	o, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	if _, ok := PartyOf(o, viewerID); !ok {
		return Order{}, ErrNotParticipant
	}
	return o, nil
}

// UpdateStatus applies a transition requested by actorID.
func (s *Service) UpdateStatus(ctx context.Context, orderID, actorID string, to Status) (Order, error) {
	if !to.Valid() {
		return Order{}, ErrUnknownStatus
	}
	o, err := s.Get(ctx, orderID, actorID)
	if err != nil {
		return Order{}, err
	}
	party, _ := PartyOf(o, actorID)
	from := o.Status
	if !IsEdge(from, to) {
		metrics.OrderTransitions.WithLabelValues(string(to), "invalid").Inc()
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to, party) {
		metrics.OrderTransitions.WithLabelValues(string(to), "forbidden").Inc()
		return Order{}, fmt.Errorf("%w: %s cannot move %s -> %s", ErrNotAuthorized, party, from, to)
	}
	now := s.now()
	if err := s.Repo.UpdateOrderStatus(ctx, orderID, from, to, now); err != nil {
		return Order{}, fmt.Errorf("update status: %w", err)
	}
	metrics.OrderTransitions.WithLabelValues(string(to), "ok").Inc()
	logx.OrDiscard(s.Log).Info("order status changed", "order_id", orderID, "from", from, "to", to, "by", party)

	o.Status = to
	o.UpdatedAt = now
	s.publish(ctx, events.TopicOrderStatusChanged, events.TypeOrderStatusChanged, orderID, StatusChangedPayload{
		OrderID:   orderID,
		From:      from,
		To:        to,
		ActorID:   actorID,
		ChangedAt: now,
	})
	return o, nil
}

// List returns the viewer's orders in tab, newest first. Farmers see orders
// placed with them, everyone else the orders they placed.
func (s *Service) List(ctx context.Context, viewerID string, tab Tab) ([]Order, error) {
	viewer, err := s.Users.GetUser(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("viewer %s: %w", viewerID, err)
	}
	var all []Order
	if viewer.IsFarmer() {
		all, err = s.Repo.ListOrdersByFarmer(ctx, viewerID)
	} else {
		all, err = s.Repo.ListOrdersByCustomer(ctx, viewerID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(all))
	for _, o := range all {
		if tab.Includes(o.Status) {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

type RateInput struct {
	Rating float64 `json:"rating" validate:"gte=0,lte=5"`
	Review string  `json:"review" validate:"max=2000"`
}

// Rate records the customer's rating of a delivered or completed order.
func (s *Service) Rate(ctx context.Context, orderID, customerID string, in RateInput) (Order, error) {
	if err := validate.Struct(in); err != nil {
		return Order{}, err
	}
	o, err := s.Get(ctx, orderID, customerID)
	if err != nil {
		return Order{}, err
	}
	if party, _ := PartyOf(o, customerID); party != PartyCustomer {
		return Order{}, ErrNotAuthorized
	}
	if o.Status != StatusDelivered && o.Status != StatusCompleted {
		return Order{}, ErrNotRateable
	}
	if o.CustomerRating != nil {
		return Order{}, ErrAlreadyRated
	}
	now := s.now()
	if err := s.Repo.RateOrder(ctx, orderID, in.Rating, in.Review, now); err != nil {
		return Order{}, fmt.Errorf("rate order: %w", err)
	}
	o.CustomerRating = &in.Rating
	o.CustomerReview = in.Review
	o.UpdatedAt = now
	return o, nil
}
