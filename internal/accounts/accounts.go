package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
	"github.com/ariefcatur/go-agro-market/internal/validate"
)

type Role string

const (
	RoleFarmer     Role = "farmer"
	RoleConsumer   Role = "consumer"
	RoleRetailer   Role = "retailer"
	RoleRestaurant Role = "restaurant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleConsumer, RoleRetailer, RoleRestaurant:
		return true
	}
	return false
}

// MaxRating bounds User.Rating and every order rating.
const MaxRating = 5.0

type User struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone"`
	Role                  Role       `json:"role"`
	Location              string     `json:"location"`
	Latitude              *float64   `json:"latitude,omitempty"`
	Longitude             *float64   `json:"longitude,omitempty"`
	ProfileImageURL       string     `json:"profile_image_url,omitempty"`
	IsProSubscriber       bool       `json:"is_pro_subscriber"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	IsVerified            bool       `json:"is_verified"`
	Rating                float64    `json:"rating"`
	TotalReviews          int        `json:"total_reviews"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`

	// farm fields, only meaningful for RoleFarmer
	FarmName        string   `json:"farm_name,omitempty"`
	FarmDescription string   `json:"farm_description,omitempty"`
	Certifications  []string `json:"certifications,omitempty"`
	EstablishedYear *int     `json:"established_year,omitempty"`
}

func (u User) IsFarmer() bool { return u.Role == RoleFarmer }

// HasLocation reports whether the user can be placed on the map.
func (u User) HasLocation() bool { return u.Latitude != nil && u.Longitude != nil }

// FoldRating adds one review to a running mean and returns the new mean and count.
func FoldRating(mean float64, count int, r float64) (float64, int) {
	next := (mean*float64(count) + r) / float64(count+1)
	if next > MaxRating {
		next = MaxRating
	}
	if next < 0 {
		next = 0
	}
	return next, count + 1
}

var (
	ErrEmailTaken = apperr.New(apperr.KindConflict, "email already registered")
	ErrNotFarmer  = apperr.New(apperr.KindForbidden, "user is not a farmer")
)

type Repository interface {
	// CreateUser stores u and its initial subscription in one step.
	// Returns ErrEmailTaken on a duplicate email.
	CreateUser(ctx context.Context, u User, sub subscriptions.Subscription) error
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, u User) error
	ListFarmers(ctx context.Context) ([]User, error)
}

type Service struct {
	Repo Repository
	Log  *slog.Logger
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type RegisterInput struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	Phone           string   `json:"phone" validate:"required"`
	Role            Role     `json:"role" validate:"required,oneof=farmer consumer retailer restaurant"`
	Location        string   `json:"location" validate:"required"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,longitude"`
	FarmName        string   `json:"farm_name" validate:"required_if=Role farmer"`
	FarmDescription string   `json:"farm_description"`
}

// Register creates the user together with a free subscription.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, subscriptions.Subscription, error) {
	if err := validate.Struct(in); err != nil {
		return User{}, subscriptions.Subscription{}, err
	}
	now := s.now()
	u := User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     in.Phone,
		Role:      in.Role,
		Location:  in.Location,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u.IsFarmer() {
		u.FarmName = in.FarmName
		u.FarmDescription = in.FarmDescription
	}
	sub := subscriptions.New(u.ID, subscriptions.PlanFree, now)
	u.SubscriptionExpiresAt = &sub.EndDate

	if err := s.Repo.CreateUser(ctx, u, sub); err != nil {
		return User{}, subscriptions.Subscription{}, fmt.Errorf("register %s: %w", u.Email, err)
	}
	logx.OrDiscard(s.Log).Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name            *string  `json:"name" validate:"omitempty,min=1"`
	Phone           *string  `json:"phone" validate:"omitempty,min=1"`
	Location        *string  `json:"location" validate:"omitempty,min=1"`
	Latitude        *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude" validate:"omitempty,longitude"`
	ProfileImageURL *string  `json:"profile_image_url" validate:"omitempty,url"`
	FarmName        *string  `json:"farm_name"`
	FarmDescription *string  `json:"farm_description"`
	Certifications  []string `json:"certifications"`
	EstablishedYear *int     `json:"established_year" validate:"omitempty,gte=1800"`
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	if err := validate.Struct(in); err != nil {
		return User{}, err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Location != nil {
		u.Location = *in.Location
	}
	if in.Latitude != nil {
		u.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		u.Longitude = in.Longitude
	}
	if in.ProfileImageURL != nil {
		u.ProfileImageURL = *in.ProfileImageURL
	}
	farmEdit := in.FarmName != nil || in.FarmDescription != nil || in.Certifications != nil || in.EstablishedYear != nil
	if farmEdit && !u.IsFarmer() {
		return User{}, ErrNotFarmer
	}
	if in.FarmName != nil {
		if strings.TrimSpace(*in.FarmName) == "" {
			return User{}, apperr.Invalidf("invalid input: farm_name is required")
		}
		u.FarmName = *in.FarmName
	}
	if in.FarmDescription != nil {
		u.FarmDescription = *in.FarmDescription
	}
	if in.Certifications != nil {
		u.Certifications = in.Certifications
	}
	if in.EstablishedYear != nil {
		u.EstablishedYear = in.EstablishedYear
	}
	u.UpdatedAt = s.now()

	if err := s.Repo.UpdateUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("update user %s: %w", id, err)
	}
	return u, nil
}

// Farmers returns farmers that can be shown on the map.
func (s *Service) Farmers(ctx context.Context) ([]User, error) {
	all, err := s.Repo.ListFarmers(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, u := range all {
		if u.HasLocation() {
			out = append(out, u)
		}
	}
	return out, nil
}
