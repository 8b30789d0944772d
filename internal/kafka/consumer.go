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

// Handler processes one record. A nil return lets the offset be committed.
// An error makes the lane retry the same record; nothing after it in the
// partition is committed until it succeeds.
type Handler func(ctx context.Context, m kafka.Message) error

// groupReader is the part of *kafka.Reader the consumer drives.
type groupReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const maxBackoff = 10 * time.Second

// Consumer reads a topic as part of a consumer group and runs a Handler on a
// fixed set of lanes. Records of one partition always land on the same lane,
// so per-partition order is kept while different partitions run in parallel.
type Consumer struct {
	reader  groupReader
	topic   string
	lanes   int
	backoff time.Duration
	log     *slog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return newConsumer(reader, topic, workers, 200*time.Millisecond,
		logx.OrDiscard(log).With("topic", topic, "group", group))
}

func newConsumer(r groupReader, topic string, workers int, backoff time.Duration, log *slog.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{reader: r, topic: topic, lanes: workers, backoff: backoff, log: logx.OrDiscard(log)}
}

// Start blocks until ctx is cancelled or fetching fails. Cancellation is a
// clean stop and returns nil.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Warn("close reader", "err", err)
		}
	}()

	queues := make([]chan kafka.Message, c.lanes)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(lane int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.process(ctx, lane, m, h) {
					// ctx ended mid-retry; later records must stay uncommitted
					return
				}
			}
		}(i, queues[i])
	}
	drain := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			drain()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case queues[m.Partition%c.lanes] <- m:
		case <-ctx.Done():
			drain()
			return nil
		}
	}
}

// process runs h on m until it succeeds, then commits m. It reports false
// when ctx ended before the record was handled.
func (c *Consumer) process(ctx context.Context, lane int, m kafka.Message, h Handler) bool {
	for attempt := 0; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		metrics.EventsConsumed.WithLabelValues(c.topic, "failed").Inc()
		wait := c.retryDelay(attempt)
		c.log.Error("handler failed", "lane", lane, "partition", m.Partition, "offset", m.Offset,
			"attempt", attempt+1, "retry_in", wait, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
	}
	metrics.EventsConsumed.WithLabelValues(c.topic, "ok").Inc()
	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.Warn("commit failed", "partition", m.Partition, "offset", m.Offset, "err", err)
	}
	return true
}

func (c *Consumer) retryDelay(attempt int) time.Duration {
	d := c.backoff << min(attempt, 6)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
