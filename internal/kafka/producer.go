package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/metrics"
)

const maxBatch = 64

var ErrProducerClosed = errors.New("kafka producer closed")

// Producer queues records in memory. Publish only enqueues; one flusher
// goroutine writes whatever has accumulated as a single batch.
type Producer struct {
	writer  *kafka.Writer
	topic   string
	queue   chan kafka.Message
	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
	log     *slog.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if buf < 1 {
		buf = 1
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		queue: make(chan kafka.Message, buf),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   logx.OrDiscard(log).With("topic", topic),
	}
}

// Start launches the flusher. After Close it writes what is still queued and
// closes the writer before WaitClosed returns.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for {
			select {
			case m := <-p.queue:
				p.flush(p.collect(m))
			case <-p.stop:
				for len(p.queue) > 0 {
					p.flush(p.collect(<-p.queue))
				}
				if err := p.writer.Close(); err != nil {
					p.log.Warn("close writer", "err", err)
				}
				return
			}
		}
	}()
}

// collect adds whatever is already queued to first, up to maxBatch records.
func (p *Producer) collect(first kafka.Message) []kafka.Message {
	batch := []kafka.Message{first}
	for len(batch) < maxBatch {
		select {
		case m := <-p.queue:
			batch = append(batch, m)
		default:
			return batch
		}
	}
	return batch
}

func (p *Producer) flush(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		metrics.EventsPublished.WithLabelValues(p.topic, "failed").Add(float64(len(batch)))
		p.log.Error("write batch", "size", len(batch), "err", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(p.topic, "ok").Add(float64(len(batch)))
}

// Publish enqueues one record. It waits for queue space until ctx ends and
// returns ErrProducerClosed once Close has been called.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	select {
	case <-p.stop:
		return ErrProducerClosed
	default:
	}
	m := kafka.Message{Key: key, Value: value, Headers: headers, Time: time.Now().UTC()}
	select {
	case p.queue <- m:
		return nil
	case <-p.stop:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake. It is safe to call more than once.
func (p *Producer) Close() {
	p.stopped.Do(func() { close(p.stop) })
}

func (p *Producer) WaitClosed() { <-p.done }
