package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts orders persisted by checkout, per flow (cart|buy_now).
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_orders_created_total",
		Help: "Orders created by checkout flow",
	}, []string{"flow"})

	// OrderTransitions counts status change attempts by target status and result.
	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_order_transitions_total",
		Help: "Order status transitions by target status and result",
	}, []string{"to", "result"})

	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_payment_outcomes_total",
		Help: "Payment authorization outcomes by flow",
	}, []string{"flow", "outcome"})

	ListingsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agro_listings_rejected_total",
		Help: "Listing creations rejected by the plan listing limit",
	})

	SubscriptionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_subscription_changes_total",
		Help: "Subscription plan changes by target plan",
	}, []string{"plan"})

	DemandsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agro_demands_expired_total",
		Help: "Demand requests moved to expired by the sweeper",
	})

	StockDecrements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_inventory_decrements_total",
		Help: "Inventory decrements applied from order events by result",
	}, []string{"result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_events_published_total",
		Help: "Event records written to the broker by topic and result",
	}, []string{"topic", "result"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agro_events_consumed_total",
		Help: "Event records handled by consumers by topic and result",
	}, []string{"topic", "result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agro_http_request_duration_seconds",
		Help:    "HTTP request duration by route pattern and status class",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"method", "route", "code"})
)
