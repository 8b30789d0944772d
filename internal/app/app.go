// Package app assembles the domain services over one store.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/config"
	"github.com/ariefcatur/go-agro-market/internal/demands"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/memstore"
	"github.com/ariefcatur/go-agro-market/internal/orders"
	"github.com/ariefcatur/go-agro-market/internal/payment"
	"github.com/ariefcatur/go-agro-market/internal/postgres"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

// Store is every repository the services need. postgres.Repo and
// memstore.Store both satisfy it.
type Store interface {
	accounts.Repository
	subscriptions.Repository
	catalog.Repository
	cart.Repository
	orders.Repository
	demands.Repository
}

// OpenStore picks the backend named by cfg.StoreDriver. The returned close
// func is never nil.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return memstore.New(), func() {}, nil
	case "postgres", "":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		return &postgres.Repo{DB: db}, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

type Deps struct {
	Store    Store
	Payments payment.Gateway
	Merchant payment.Merchant
	Events   events.Publisher
	Producer string
	Log      *slog.Logger
	Now      func() time.Time
}

type Services struct {
	Accounts      *accounts.Service
	Subscriptions *subscriptions.Service
	Catalog       *catalog.Service
	Cart          *cart.Service
	Orders        *orders.Service
	Demands       *demands.Service
}

func New(d Deps) *Services {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	s := d.Store
	catalogSvc := &catalog.Service{Repo: s, Users: s, Subscriptions: s, Log: d.Log, Now: d.Now}
	return &Services{
		Accounts: &accounts.Service{Repo: s, Log: d.Log, Now: d.Now},
		Subscriptions: &subscriptions.Service{
			Repo:     s,
			Payments: d.Payments,
			Merchant: d.Merchant,
			Events:   d.Events,
			Producer: d.Producer,
			Log:      d.Log,
			Now:      d.Now,
		},
		Catalog: catalogSvc,
		Cart:    &cart.Service{Repo: s, Products: s, Log: d.Log, Now: d.Now},
		Orders: &orders.Service{
			Repo:     s,
			Carts:    s,
			Products: s,
			Users:    s,
			Payments: d.Payments,
			Merchant: d.Merchant,
			Events:   d.Events,
			Producer: d.Producer,
			Log:      d.Log,
			Now:      d.Now,
		},
		Demands: &demands.Service{Repo: s, Users: s, Events: d.Events, Producer: d.Producer, Log: d.Log, Now: d.Now},
	}
}

// Gateway builds the simulated payment gateway configured by PAYMENT_MODE.
func Gateway(cfg config.Config) (payment.Gateway, error) {
	outcome, err := payment.ParseMode(cfg.PaymentMode)
	if err != nil {
		return nil, err
	}
	return &payment.Simulated{Outcome: outcome}, nil
}

func MerchantOf(cfg config.Config) payment.Merchant {
	return payment.Merchant{ID: cfg.MerchantID, Currency: cfg.Currency, CountryCode: cfg.CountryCode}
}
