package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated        = "OrderCreated"
	TypeOrderStatusChanged  = "OrderStatusChanged"
	TypeSubscriptionChanged = "SubscriptionChanged"
	TypeDemandResponded     = "DemandResponded"
)

const (
	TopicOrderCreated        = "order.created"
	TopicOrderStatusChanged  = "order.status.changed"
	TopicSubscriptionChanged = "subscription.changed"
	TopicDemandResponded     = "demand.responded"
)

// Topics lists every topic the API publishes to.
var Topics = []string{
	TopicOrderCreated,
	TopicOrderStatusChanged,
	TopicSubscriptionChanged,
	TopicDemandResponded,
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // aggregate id
	Payload       json.RawMessage `json:"payload"`
}

// New wraps payload in a v1 envelope. The trace id is taken from ctx.
func New(ctx context.Context, eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       TraceID(ctx),
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Decode unmarshals the envelope payload into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// Publisher delivers envelopes to a topic. Partition key = aggregate id so all
// events of one aggregate keep their order.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, env Envelope) error
}

type Nop struct{}

func (Nop) Publish(context.Context, string, string, Envelope) error { return nil }

// Published is one envelope captured by Recorder.
type Published struct {
	Topic string
	Key   string
	Env   Envelope
}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu  sync.Mutex
	out []Published
}

func (r *Recorder) Publish(_ context.Context, topic, key string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, Published{Topic: topic, Key: key, Env: env})
	return nil
}

func (r *Recorder) All() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.out...)
}

// OfType filters recorded envelopes by event type.
func (r *Recorder) OfType(eventType string) []Published {
	var out []Published
	for _, p := range r.All() {
		if p.Env.EventType == eventType {
			out = append(out, p)
		}
	}
	return out
}

type traceKey struct{}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
