package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-agro-market/internal/events"
)

// Bus publishes envelopes through one Producer per topic.
type Bus struct {
	producers map[string]*Producer
}

var _ events.Publisher = (*Bus)(nil)

func NewBus(brokers []string, topics []string, buf int, log *slog.Logger) *Bus {
	b := &Bus{producers: make(map[string]*Producer, len(topics))}
	for _, t := range topics {
		p := NewProducer(brokers, t, buf, log)
		p.Start()
		b.producers[t] = p
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, topic, key string, env events.Envelope) error {
	p, ok := b.producers[topic]
	if !ok {
		return fmt.Errorf("no producer for topic %q", topic)
	}
	value, headers, err := Encode(env)
	if err != nil {
		return err
	}
	return p.Publish(ctx, []byte(key), value, headers...)
}

// Close flushes every producer and waits for the writers to finish.
func (b *Bus) Close() {
	for _, p := range b.producers {
		p.Close()
	}
	for _, p := range b.producers {
		p.WaitClosed()
	}
}
