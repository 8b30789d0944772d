package cart

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/validate"
)

// Item is one cart line. Name, farmer and unit price are snapshotted from the
// product when the line is created.
type Item struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	ProductID      string                 `json:"product_id"`
	ProductName    string                 `json:"product_name"`
	FarmerID       string                 `json:"farmer_id"`
	UnitPrice      decimal.Decimal        `json:"unit_price"`
	Quantity       decimal.Decimal        `json:"quantity"`
	Unit           string                 `json:"unit"`
	DeliveryOption catalog.DeliveryOption `json:"delivery_option"`
	CreatedAt      time.Time              `json:"created_at"`
}

func (it Item) LineTotal() decimal.Decimal {
	return it.Quantity.Mul(it.UnitPrice)
}

// GrandTotal sums every line total. Decimal addition is exact, so the result
// does not depend on item order.
func GrandTotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

type FarmerGroup struct {
	FarmerID string          `json:"farmer_id"`
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// GroupByFarmer splits items per owning farmer. Groups are ordered by farmer
// id; items keep their cart order inside a group.
func GroupByFarmer(items []Item) []FarmerGroup {
	idx := map[string]int{}
	var groups []FarmerGroup
	for _, it := range items {
		i, ok := idx[it.FarmerID]
		if !ok {
			i = len(groups)
			idx[it.FarmerID] = i
			groups = append(groups, FarmerGroup{FarmerID: it.FarmerID, Subtotal: decimal.Zero})
		}
		groups[i].Items = append(groups[i].Items, it)
		groups[i].Subtotal = groups[i].Subtotal.Add(it.LineTotal())
	}
	slices.SortFunc(groups, func(a, b FarmerGroup) int { return strings.Compare(a.FarmerID, b.FarmerID) })
	return groups
}

type Summary struct {
	Items      []Item          `json:"items"`
	Groups     []FarmerGroup   `json:"groups"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

func Summarize(items []Item) Summary {
	if items == nil {
		items = []Item{}
	}
	return Summary{Items: items, Groups: GroupByFarmer(items), GrandTotal: GrandTotal(items)}
}

var ErrNotYours = apperr.New(apperr.KindNotFound, "cart item not found")

type Repository interface {
	// ListCart returns the user's lines oldest first.
	ListCart(ctx context.Context, userID string) ([]Item, error)
	GetCartItem(ctx context.Context, id string) (Item, error)
	// SaveCartItem inserts or replaces a line by id.
	SaveCartItem(ctx context.Context, it Item) error
	DeleteCartItem(ctx context.Context, id string) error
	ClearCart(ctx context.Context, userID string) error
}

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

type Service struct {
	Repo     Repository
	Products ProductReader
	Log      *slog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type AddInput struct {
	ProductID      string                 `json:"product_id" validate:"required"`
	Quantity       decimal.Decimal        `json:"quantity" validate:"gt=0"`
	DeliveryOption catalog.DeliveryOption `json:"delivery_option" validate:"required,oneof=pickup delivery shipping"`
}

// Add puts a product in the user's cart. A line for the same product and
// delivery option is merged, and the merged quantity is checked again.
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (Item, error) {
	if err := validate.Struct(in); err != nil {
		return Item{}, err
	}
	p, err := s.Products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return Item{}, fmt.Errorf("product %s: %w", in.ProductID, err)
	}
	lines, err := s.Repo.ListCart(ctx, userID)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProductID:      p.ID,
		ProductName:    p.Name,
		FarmerID:       p.FarmerID,
		UnitPrice:      p.Price,
		Quantity:       in.Quantity,
		Unit:           p.Unit,
		DeliveryOption: in.DeliveryOption,
		CreatedAt:      s.now(),
	}
	for _, l := range lines {
		if l.ProductID == p.ID && l.DeliveryOption == in.DeliveryOption {
			item = l
			item.Quantity = l.Quantity.Add(in.Quantity)
			break
		}
	}
	if err := catalog.CheckPurchase(p, userID, item.Quantity, item.DeliveryOption); err != nil {
		return Item{}, err
	}
	if err := s.Repo.SaveCartItem(ctx, item); err != nil {
		return Item{}, fmt.Errorf("save cart item: %w", err)
	}
	logx.OrDiscard(s.Log).Debug("cart line saved", "user_id", userID, "product_id", p.ID, "qty", item.Quantity.String())
	return item, nil
}

func (s *Service) owned(ctx context.Context, userID, itemID string) (Item, error) {
	it, err := s.Repo.GetCartItem(ctx, itemID)
	if err != nil {
		return Item{}, fmt.Errorf("cart item %s: %w", itemID, err)
	}
	if it.UserID != userID {
		return Item{}, ErrNotYours
	}
	return it, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, qty decimal.Decimal) (Item, error) {
	it, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return Item{}, err
	}
	p, err := s.Products.GetProduct(ctx, it.ProductID)
	if err != nil {
		return Item{}, fmt.Errorf("product %s: %w", it.ProductID, err)
	}
	if err := catalog.CheckPurchase(p, userID, qty, it.DeliveryOption); err != nil {
		return Item{}, err
	}
	it.Quantity = qty
	if err := s.Repo.SaveCartItem(ctx, it); err != nil {
		return Item{}, fmt.Errorf("save cart item: %w", err)
	}
	return it, nil
}

func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	if _, err := s.owned(ctx, userID, itemID); err != nil {
		return err
	}
	return s.Repo.DeleteCartItem(ctx, itemID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Repo.ClearCart(ctx, userID)
}

func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	return s.Repo.ListCart(ctx, userID)
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	items, err := s.Repo.ListCart(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(items), nil
}
