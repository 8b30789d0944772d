package httpx

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
	"github.com/ariefcatur/go-agro-market/internal/cart"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/demands"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/orders"
	"github.com/ariefcatur/go-agro-market/internal/subscriptions"
)

// Cache backs idempotency keys and the order status cache. Nil disables both.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

type API struct {
	Accounts      *accounts.Service
	Subscriptions *subscriptions.Service
	Catalog       *catalog.Service
	Cart          *cart.Service
	Orders        *orders.Service
	Demands       *demands.Service
	Cache         Cache
	Log           *slog.Logger

	RequestTimeout time.Duration
	// PaymentTimeout bounds routes that wait on the payment gateway.
	PaymentTimeout time.Duration
}

func (a *API) log() *slog.Logger { return logx.OrDiscard(a.Log) }

func (a *API) Register(r chi.Router) {
	reqTimeout, payTimeout := a.RequestTimeout, a.PaymentTimeout
	if reqTimeout <= 0 {
		reqTimeout = 5 * time.Second
	}
	if payTimeout <= 0 {
		payTimeout = 30 * time.Second
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(reqTimeout))

		r.Post("/users", a.register)
		r.Get("/users/{id}", a.getUser)
		r.Patch("/users/{id}", a.updateUser)
		r.Get("/users/{id}/products", a.farmerProducts)
		r.Get("/farmers", a.farmers)
		r.Get("/plans", a.plans)
		r.Get("/users/{id}/subscription", a.activeSubscription)
		r.Get("/users/{id}/subscriptions", a.subscriptionHistory)

		r.Get("/products", a.searchProducts)
		r.Post("/products", a.createProduct)
		r.Get("/products/{id}", a.getProduct)
		r.Post("/products/{id}/like", a.likeProduct)
		r.Patch("/products/{id}/availability", a.setAvailability)

		r.Get("/cart", a.getCart)
		r.Post("/cart/items", a.addCartItem)
		r.Patch("/cart/items/{id}", a.updateCartItem)
		r.Delete("/cart/items/{id}", a.removeCartItem)
		r.Delete("/cart", a.clearCart)

		r.Get("/orders", a.listOrders)
		r.Get("/orders/{id}", a.getOrder)
		r.Get("/orders/{id}/status", a.getOrderStatus)
		r.Post("/orders/{id}/status", a.updateOrderStatus)
		r.Post("/orders/{id}/rating", a.rateOrder)

		r.Get("/demands", a.listDemands)
		r.Post("/demands", a.postDemand)
		r.Get("/demands/{id}", a.getDemand)
		r.Post("/demands/{id}/responses", a.respondDemand)
		r.Post("/demands/{id}/responses/{rid}/accept", a.acceptResponse)
		r.Post("/demands/{id}/status", a.setDemandStatus)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(payTimeout))

		r.Post("/users/{id}/subscription", a.changeSubscription)
		r.Post("/checkout", a.checkout)
		r.Post("/orders/buy-now", a.buyNow)
	})
}
