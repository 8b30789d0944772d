// Package inventory applies sold quantities to listings when orders are
// created.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/events"
	kafkax "github.com/ariefcatur/go-agro-market/internal/kafka"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/metrics"
	"github.com/ariefcatur/go-agro-market/internal/orders"
)

type StockConsumer interface {
	ConsumeStock(ctx context.Context, productID string, qty decimal.Decimal) (catalog.Product, error)
}

type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type Service struct {
	Stock StockConsumer
	Dedup Deduper
	Log   *slog.Logger
}

// HandleOrderCreated is the consumer handler for the order.created topic.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m, kafkax.HeaderEventType); t != "" && t != events.TypeOrderCreated {
		return nil
	}
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		return err
	}
	return s.Apply(ctx, env)
}

// Apply decrements stock for every item of an OrderCreated envelope. Each
// item is claimed separately so a retried event never decrements twice.
func (s *Service) Apply(ctx context.Context, env events.Envelope) error {
	if env.EventType != events.TypeOrderCreated {
		return nil
	}
	p, err := events.Decode[orders.CreatedPayload](env)
	if err != nil {
		return err
	}
	log := logx.OrDiscard(s.Log).With("event_id", env.EventID, "order_id", p.OrderID, "trace_id", env.TraceID)

	for _, it := range p.Items {
		claim := env.EventID + ":" + it.ProductID
		first, err := s.Dedup.Claim(ctx, claim)
		if err != nil {
			return fmt.Errorf("dedup claim: %w", err)
		}
		if !first {
			metrics.StockDecrements.WithLabelValues("duplicate").Inc()
			continue
		}
		prod, err := s.Stock.ConsumeStock(ctx, it.ProductID, it.Qty)
		switch {
		case apperr.IsNotFound(err):
			metrics.StockDecrements.WithLabelValues("missing").Inc()
			log.Warn("stock decrement for unknown product", "product_id", it.ProductID)
			continue
		case err != nil:
			if rerr := s.Dedup.Release(ctx, claim); rerr != nil {
				log.Error("dedup release", "product_id", it.ProductID, "err", rerr)
			}
			metrics.StockDecrements.WithLabelValues("error").Inc()
			return err
		}
		metrics.StockDecrements.WithLabelValues("ok").Inc()
		log.Info("stock decremented", "product_id", it.ProductID, "qty", it.Qty.String(),
			"left", prod.AvailableQuantity.String(), "available", prod.IsAvailable)
	}
	return nil
}
