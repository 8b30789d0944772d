package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/metrics"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
	"github.com/ariefcatur/go-agro-market/internal/validate"
)

var (
	ErrListingLimit     = apperr.New(apperr.KindForbidden, "listing limit reached for current plan, upgrade required")
	ErrNotOwner         = apperr.New(apperr.KindForbidden, "product belongs to another farmer")
	ErrUnavailable      = apperr.New(apperr.KindConflict, "product is not available")
	ErrBelowMinimum     = apperr.New(apperr.KindInvalid, "quantity below minimum order")
	ErrExceedsAvailable = apperr.New(apperr.KindConflict, "quantity exceeds available stock")
	ErrDeliveryOption   = apperr.New(apperr.KindInvalid, "delivery option not offered for product")
	ErrOwnProduct       = apperr.New(apperr.KindForbidden, "farmers cannot buy their own products")
)

// ListingGate decides whether a farmer holding activeListings available
// products may add one more.
type ListingGate func(activeListings int) error

type Repository interface {
	// CreateProduct stores p. A non-nil gate sees the farmer's active listing
	// count inside the same transaction as the insert; its error aborts it.
	CreateProduct(ctx context.Context, p Product, gate ListingGate) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// SetProductAvailability runs gate atomically with the update, and only
	// when an unavailable product becomes available.
	SetProductAvailability(ctx context.Context, id string, available bool, at time.Time, gate ListingGate) error
	IncrementProductViews(ctx context.Context, id string) error
	IncrementProductLikes(ctx context.Context, id string) error
	// DecrementStock lowers AvailableQuantity by qty, never below zero, and
	// marks the product unavailable when it reaches zero.
	DecrementStock(ctx context.Context, id string, qty decimal.Decimal, at time.Time) (Product, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (accounts.User, error)
}

type SubscriptionReader interface {
	ActiveSubscription(ctx context.Context, userID string) (subscriptions.Subscription, error)
}

type Service struct {
	Repo          Repository
	Users         UserReader
	Subscriptions SubscriptionReader
	Log           *slog.Logger
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type ListingInput struct {
	Name              string           `json:"name" validate:"required"`
	Description       string           `json:"description" validate:"required"`
	Category          Category         `json:"category" validate:"required,oneof=vegetables fruits grains dairy meat herbs wine honey eggs nuts other"`
	Price             decimal.Decimal  `json:"price" validate:"gte=0"`
	Unit              string           `json:"unit" validate:"required"`
	MinimumOrder      decimal.Decimal  `json:"minimum_order" validate:"gte=0"`
	AvailableQuantity decimal.Decimal  `json:"available_quantity" validate:"gte=0"`
	IsOrganic         bool             `json:"is_organic"`
	HarvestDate       *time.Time       `json:"harvest_date"`
	ExpiryDate        *time.Time       `json:"expiry_date"`
	FarmingMethod     FarmingMethod    `json:"farming_method" validate:"omitempty,oneof=organic conventional biodynamic permaculture hydroponic greenhouse"`
	DeliveryOptions   []DeliveryOption `json:"delivery_options" validate:"dive,oneof=pickup delivery shipping"`
	ImageURLs         []string         `json:"image_urls" validate:"dive,url"`
	Tags              []string         `json:"tags"`
}

// CreateListing adds a product for farmerID after the plan listing gate.
// Nothing is written when the gate refuses.
func (s *Service) CreateListing(ctx context.Context, farmerID string, in ListingInput) (Product, error) {
	if err := validate.Struct(in); err != nil {
		return Product{}, err
	}
	farmer, err := s.Users.GetUser(ctx, farmerID)
	if err != nil {
		return Product{}, fmt.Errorf("farmer %s: %w", farmerID, err)
	}
	if !farmer.IsFarmer() {
		return Product{}, accounts.ErrNotFarmer
	}
	gate, err := s.listingGate(ctx, farmerID)
	if err != nil {
		return Product{}, err
	}

	now := s.now()
	minOrder := in.MinimumOrder
	if minOrder.IsZero() {
		minOrder = decimal.NewFromInt(1)
	}
	p := Product{
		ID:                uuid.NewString(),
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Category:          in.Category,
		Price:             in.Price,
		Unit:              in.Unit,
		MinimumOrder:      minOrder,
		AvailableQuantity: in.AvailableQuantity,
		ImageURLs:         nonNil(in.ImageURLs),
		FarmerID:          farmer.ID,
		FarmerName:        displayFarmer(farmer),
		IsOrganic:         in.IsOrganic,
		HarvestDate:       in.HarvestDate,
		ExpiryDate:        in.ExpiryDate,
		Location:          farmer.Location,
		Latitude:          farmer.Latitude,
		Longitude:         farmer.Longitude,
		IsAvailable:       true,
		FarmingMethod:     in.FarmingMethod,
		DeliveryOptions:   in.DeliveryOptions,
		CreatedAt:         now,
		UpdatedAt:         now,
		Tags:              nonNil(in.Tags),
	}
	if len(p.DeliveryOptions) == 0 {
		p.DeliveryOptions = []DeliveryOption{DeliveryPickup}
	}
	if err := s.Repo.CreateProduct(ctx, p, gate); err != nil {
		if errors.Is(err, ErrListingLimit) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	logx.OrDiscard(s.Log).Info("listing created", "product_id", p.ID, "farmer_id", farmerID)
	return p, nil
}

// listingGate resolves the farmer's plan and returns the check the store runs
// against the live listing count.
func (s *Service) listingGate(ctx context.Context, farmerID string) (ListingGate, error) {
	var active *subscriptions.Subscription
	sub, err := s.Subscriptions.ActiveSubscription(ctx, farmerID)
	switch {
	case err == nil:
		active = &sub
	case !apperr.IsNotFound(err):
		return nil, fmt.Errorf("subscription of %s: %w", farmerID, err)
	}
	log := logx.OrDiscard(s.Log)
	return func(n int) error {
		if !subscriptions.CanAddProduct(active, n) {
			metrics.ListingsRejected.Inc()
			log.Debug("listing refused by plan gate", "farmer_id", farmerID, "active_listings", n)
			return ErrListingLimit
		}
		return nil
	}, nil
}

func displayFarmer(u accounts.User) string {
	if u.FarmName != "" {
		return u.FarmName
	}
	return u.Name
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

// View returns the product and counts one view. Farmers viewing their own
// listing are not counted.
func (s *Service) View(ctx context.Context, id, viewerID string) (Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if viewerID == p.FarmerID {
		return p, nil
	}
	if err := s.Repo.IncrementProductViews(ctx, id); err != nil {
		return Product{}, fmt.Errorf("count view: %w", err)
	}
	p.Views++
	return p, nil
}

func (s *Service) Like(ctx context.Context, id, userID string) (Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if userID == p.FarmerID {
		return Product{}, ErrOwnProduct
	}
	if err := s.Repo.IncrementProductLikes(ctx, id); err != nil {
		return Product{}, fmt.Errorf("like: %w", err)
	}
	p.Likes++
	return p, nil
}

// SetAvailability toggles a listing. Re-listing goes through the plan gate
// again since it adds an active listing.
func (s *Service) SetAvailability(ctx context.Context, id, farmerID string, available bool) (Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.FarmerID != farmerID {
		return Product{}, ErrNotOwner
	}
	if p.IsAvailable == available {
		return p, nil
	}
	var gate ListingGate
	if available {
		if gate, err = s.listingGate(ctx, farmerID); err != nil {
			return Product{}, err
		}
	}
	now := s.now()
	if err := s.Repo.SetProductAvailability(ctx, id, available, now, gate); err != nil {
		if errors.Is(err, ErrListingLimit) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("set availability: %w", err)
	}
	p.IsAvailable = available
	p.UpdatedAt = now
	return p, nil
}

func (s *Service) Search(ctx context.Context, q Query) ([]Product, error) {
	all, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return Search(all, q), nil
}

// ByFarmer lists every listing of a farmer, available or not, newest first.
func (s *Service) ByFarmer(ctx context.Context, farmerID string) ([]Product, error) {
	all, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0)
	for _, p := range all {
		if p.FarmerID == farmerID {
			out = append(out, p)
		}
	}
	SortProducts(out, SortNewest)
	return out, nil
}

// ConsumeStock applies a sold quantity to a listing.
func (s *Service) ConsumeStock(ctx context.Context, id string, qty decimal.Decimal) (Product, error) {
	if !qty.IsPositive() {
		return Product{}, apperr.Invalidf("invalid input: quantity must be positive")
	}
	p, err := s.Repo.DecrementStock(ctx, id, qty, s.now())
	if err != nil {
		return Product{}, fmt.Errorf("decrement stock of %s: %w", id, err)
	}
	return p, nil
}

// CheckPurchase validates a buyer's request for qty of p with option d: the
// listing must be available and not the buyer's own, qty within
// [MinimumOrder, AvailableQuantity], and d offered.
func CheckPurchase(p Product, buyerID string, qty decimal.Decimal, d DeliveryOption) error {
	if p.FarmerID == buyerID {
		return ErrOwnProduct
	}
	if !p.IsAvailable {
		return ErrUnavailable
	}
	if !qty.IsPositive() {
		return apperr.Invalidf("invalid input: quantity must be positive")
	}
	if qty.LessThan(p.MinimumOrder) {
		return fmt.Errorf("%w: minimum is %s %s", ErrBelowMinimum, p.MinimumOrder, p.Unit)
	}
	if qty.GreaterThan(p.AvailableQuantity) {
		return fmt.Errorf("%w: %s %s available", ErrExceedsAvailable, p.AvailableQuantity, p.Unit)
	}
	if !d.Valid() || !p.Offers(d) {
		return ErrDeliveryOption
	}
	return nil
}
