package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_PublishAfterCloseIsRefused(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "order.created", 4, nil)
	p.Close()
	p.Close()

	assert.NotPanics(t, func() {
		err := p.Publish(context.Background(), []byte("o1"), []byte("{}"))
		assert.ErrorIs(t, err, ErrProducerClosed)
	})
}

func TestProducer_PublishWaitsForSpaceUntilContextEnds(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "order.created", 1, nil)
	require.NoError(t, p.Publish(context.Background(), []byte("o1"), []byte("{}")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Publish(ctx, []byte("o2"), []byte("{}"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProducer_CloseReleasesBlockedPublisher(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "order.created", 1, nil)
	require.NoError(t, p.Publish(context.Background(), []byte("o1"), []byte("{}")))

	errs := make(chan error, 1)
	go func() { errs <- p.Publish(context.Background(), []byte("o2"), []byte("{}")) }()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrProducerClosed)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after Close")
	}
}
