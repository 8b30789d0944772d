package demands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/metrics"
	"github.com/ariefcatur/go-agro-market/internal/validate"
)

var (
	ErrFarmerRequester   = apperr.New(apperr.KindForbidden, "farmers cannot post demand requests")
	ErrNotRequester      = apperr.New(apperr.KindForbidden, "only the requester can manage this demand")
	ErrNotOpen           = apperr.New(apperr.KindConflict, "demand is not open")
	ErrAlreadyResponded  = apperr.New(apperr.KindConflict, "farmer already responded to this demand")
	ErrOwnDemand         = apperr.New(apperr.KindForbidden, "cannot respond to own demand")
	ErrResponseNotFound  = apperr.New(apperr.KindNotFound, "response not found")
	ErrInvalidTransition = apperr.New(apperr.KindConflict, "demand status transition not allowed")
	ErrStaleStatus       = apperr.New(apperr.KindConflict, "demand status changed concurrently")
	ErrPastDeadline      = apperr.New(apperr.KindInvalid, "required_by must be in the future")
)

type Repository interface {
	CreateDemand(ctx context.Context, d Demand) error
	// GetDemand returns the demand with its responses, oldest first.
	GetDemand(ctx context.Context, id string) (Demand, error)
	ListDemands(ctx context.Context) ([]Demand, error)
	// UpdateDemandStatus moves the demand to `to` only while it is still in
	// `from`; otherwise it returns ErrStaleStatus.
	UpdateDemandStatus(ctx context.Context, id string, from, to Status, at time.Time) error
	// AddResponse stores r if the demand is still open. Returns
	// ErrAlreadyResponded when the farmer already has a response on it.
	AddResponse(ctx context.Context, r Response) error
	// AcceptResponse marks responseID accepted, every other response of the
	// demand rejected and moves the demand from open to inProgress, all in
	// one step.
	AcceptResponse(ctx context.Context, demandID, responseID string, at time.Time) error
	// ExpireDemands moves every open or inProgress demand whose RequiredBy is
	// before now to expired and returns their ids.
	ExpireDemands(ctx context.Context, now time.Time) ([]string, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (accounts.User, error)
}

type Service struct {
	Repo     Repository
	Users    UserReader
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

type PostInput struct {
	Title               string                 `json:"title" validate:"required"`
	Description         string                 `json:"description" validate:"required"`
	Category            catalog.Category       `json:"category" validate:"required,oneof=vegetables fruits grains dairy meat herbs wine honey eggs nuts other"`
	Quantity            decimal.Decimal        `json:"quantity" validate:"gt=0"`
	Unit                string                 `json:"unit" validate:"required"`
	MaxPrice            decimal.Decimal        `json:"max_price" validate:"gte=0"`
	Location            string                 `json:"location" validate:"required"`
	Latitude            *float64               `json:"latitude" validate:"omitempty,latitude"`
	Longitude           *float64               `json:"longitude" validate:"omitempty,longitude"`
	RequiredBy          time.Time              `json:"required_by" validate:"required"`
	IsUrgent            bool                   `json:"is_urgent"`
	IsOrganic           bool                   `json:"is_organic"`
	QualityRequirements []string               `json:"quality_requirements"`
	DeliveryPreference  catalog.DeliveryOption `json:"delivery_preference" validate:"omitempty,oneof=pickup delivery shipping"`
	Tags                []string               `json:"tags"`
}

// Post publishes a new open demand for a buyer.
func (s *Service) Post(ctx context.Context, requesterID string, in PostInput) (Demand, error) {
	if err := validate.Struct(in); err != nil {
		return Demand{}, err
	}
	requester, err := s.Users.GetUser(ctx, requesterID)
	if err != nil {
		return Demand{}, fmt.Errorf("requester %s: %w", requesterID, err)
	}
	if requester.IsFarmer() {
		return Demand{}, ErrFarmerRequester
	}
	now := s.now()
	if !in.RequiredBy.After(now) {
		return Demand{}, ErrPastDeadline
	}
	pref := in.DeliveryPreference
	if pref == "" {
		pref = catalog.DeliveryLocal
	}
	d := Demand{
		ID:                  uuid.NewString(),
		RequesterID:         requesterID,
		Title:               strings.TrimSpace(in.Title),
		Description:         in.Description,
		Category:            in.Category,
		Quantity:            in.Quantity,
		Unit:                in.Unit,
		MaxPrice:            in.MaxPrice,
		Location:            in.Location,
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		RequiredBy:          in.RequiredBy.UTC(),
		IsUrgent:            in.IsUrgent,
		IsOrganic:           in.IsOrganic,
		QualityRequirements: orEmpty(in.QualityRequirements),
		DeliveryPreference:  pref,
		Status:              StatusOpen,
		CreatedAt:           now,
		UpdatedAt:           now,
		Responses:           []Response{},
		Tags:                orEmpty(in.Tags),
	}
	if err := s.Repo.CreateDemand(ctx, d); err != nil {
		return Demand{}, fmt.Errorf("create demand: %w", err)
	}
	logx.OrDiscard(s.Log).Info("demand posted", "demand_id", d.ID, "requester_id", requesterID)
	return d, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) Get(ctx context.Context, id string) (Demand, error) {
	d, err := s.Repo.GetDemand(ctx, id)
	if err != nil {
		return Demand{}, fmt.Errorf("demand %s: %w", id, err)
	}
	return d, nil
}

// List applies the demand board filter for viewerID.
func (s *Service) List(ctx context.Context, viewerID, text string, kind FilterKind) ([]Demand, error) {
	if kind == "" {
		kind = FilterAll
	}
	if !kind.Valid() {
		return nil, apperr.Invalidf("invalid input: unknown filter %q", kind)
	}
	viewer := Viewer{ID: viewerID}
	if viewerID != "" {
		u, err := s.Users.GetUser(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("viewer %s: %w", viewerID, err)
		}
		viewer.Role = u.Role
	}
	all, err := s.Repo.ListDemands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list demands: %w", err)
	}
	return Filter(all, text, kind, viewer), nil
}

type RespondInput struct {
	OfferedPrice      decimal.Decimal `json:"offered_price" validate:"gte=0"`
	AvailableQuantity decimal.Decimal `json:"available_quantity" validate:"gt=0"`
	Message           string          `json:"message" validate:"max=2000"`
	ProductSamples    []string        `json:"product_samples" validate:"dive,url"`
}

// Respond records a farmer's offer on an open demand.
func (s *Service) Respond(ctx context.Context, demandID, farmerID string, in RespondInput) (Response, error) {
	if err := validate.Struct(in); err != nil {
		return Response{}, err
	}
	farmer, err := s.Users.GetUser(ctx, farmerID)
	if err != nil {
		return Response{}, fmt.Errorf("farmer %s: %w", farmerID, err)
	}
	if !farmer.IsFarmer() {
		return Response{}, accounts.ErrNotFarmer
	}
	d, err := s.Get(ctx, demandID)
	if err != nil {
		return Response{}, err
	}
	if d.RequesterID == farmerID {
		return Response{}, ErrOwnDemand
	}
	if d.Status != StatusOpen {
		return Response{}, ErrNotOpen
	}
	if _, ok := d.ResponseBy(farmerID); ok {
		return Response{}, ErrAlreadyResponded
	}
	name := farmer.FarmName
	if name == "" {
		name = farmer.Name
	}
	r := Response{
		ID:                uuid.NewString(),
		RequestID:         demandID,
		FarmerID:          farmerID,
		FarmerName:        name,
		OfferedPrice:      in.OfferedPrice,
		AvailableQuantity: in.AvailableQuantity,
		Message:           in.Message,
		CreatedAt:         s.now(),
		ProductSamples:    orEmpty(in.ProductSamples),
	}
	if err := s.Repo.AddResponse(ctx, r); err != nil {
		return Response{}, fmt.Errorf("add response: %w", err)
	}
	logx.OrDiscard(s.Log).Info("demand response added", "demand_id", demandID, "farmer_id", farmerID)
	s.publish(ctx, d, r)
	return r, nil
}

type RespondedPayload struct {
	DemandID     string          `json:"demand_id"`
	ResponseID   string          `json:"response_id"`
	RequesterID  string          `json:"requester_id"`
	FarmerID     string          `json:"farmer_id"`
	OfferedPrice decimal.Decimal `json:"offered_price"`
}

func (s *Service) publish(ctx context.Context, d Demand, r Response) {
	if s.Events == nil {
		return
	}
	env, err := events.New(ctx, events.TypeDemandResponded, s.Producer, d.ID, RespondedPayload{
		DemandID:     d.ID,
		ResponseID:   r.ID,
		RequesterID:  d.RequesterID,
		FarmerID:     r.FarmerID,
		OfferedPrice: r.OfferedPrice,
	})
	if err == nil {
		err = s.Events.Publish(ctx, events.TopicDemandResponded, d.ID, env)
	}
	if err != nil {
		logx.OrDiscard(s.Log).Warn("publish demand event", "demand_id", d.ID, "err", err)
	}
}

func (s *Service) owned(ctx context.Context, demandID, requesterID string) (Demand, error) {
	d, err := s.Get(ctx, demandID)
	if err != nil {
		return Demand{}, err
	}
	if d.RequesterID != requesterID {
		return Demand{}, ErrNotRequester
	}
	return d, nil
}

// Accept takes one response: it becomes accepted, the others rejected, and
// the demand moves to inProgress.
func (s *Service) Accept(ctx context.Context, demandID, responseID, requesterID string) (Demand, error) {
	d, err := s.owned(ctx, demandID, requesterID)
	if err != nil {
		return Demand{}, err
	}
	if d.Status != StatusOpen {
		return Demand{}, ErrNotOpen
	}
	found := false
	for _, r := range d.Responses {
		if r.ID == responseID {
			found = true
			break
		}
	}
	if !found {
		return Demand{}, ErrResponseNotFound
	}
	now := s.now()
	if err := s.Repo.AcceptResponse(ctx, demandID, responseID, now); err != nil {
		return Demand{}, fmt.Errorf("accept response: %w", err)
	}
	for i := range d.Responses {
		accepted := d.Responses[i].ID == responseID
		d.Responses[i].IsAccepted = &accepted
	}
	d.Status = StatusInProgress
	d.UpdatedAt = now
	logx.OrDiscard(s.Log).Info("demand response accepted", "demand_id", demandID, "response_id", responseID)
	return d, nil
}

// SetStatus applies a requester-driven status change.
func (s *Service) SetStatus(ctx context.Context, demandID, requesterID string, to Status) (Demand, error) {
	if !to.Valid() {
		return Demand{}, apperr.Invalidf("invalid input: unknown demand status %q", to)
	}
	d, err := s.owned(ctx, demandID, requesterID)
	if err != nil {
		return Demand{}, err
	}
	if !CanTransition(d.Status, to) {
		return Demand{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	now := s.now()
	if err := s.Repo.UpdateDemandStatus(ctx, demandID, d.Status, to, now); err != nil {
		return Demand{}, fmt.Errorf("update demand status: %w", err)
	}
	d.Status = to
	d.UpdatedAt = now
	return d, nil
}

// ExpireOverdue moves demands past their RequiredBy to expired.
func (s *Service) ExpireOverdue(ctx context.Context) ([]string, error) {
	ids, err := s.Repo.ExpireDemands(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("expire demands: %w", err)
	}
	if len(ids) > 0 {
		metrics.DemandsExpired.Add(float64(len(ids)))
		logx.OrDiscard(s.Log).Info("demands expired", "count", len(ids))
	}
	return ids, nil
}

// RunSweeper calls ExpireOverdue every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.ExpireOverdue(ctx); err != nil {
				logx.OrDiscard(s.Log).Error("demand sweep", "err", err)
			}
		}
	}
}
