package redisx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "idem:checkout:u1:abc", IdempotencyKey("checkout", "u1", "abc"))
	assert.Equal(t, "order_status:o1", OrderStatusKey("o1"))
	assert.Equal(t, "dedup:inventory:e1:p1", DedupKey("inventory", "e1:p1"))
}

func TestTTLs(t *testing.T) {
	assert.Less(t, TTLIdemLock, TTLIdempotency)
	assert.Greater(t, TTLDedup, TTLIdempotency)
}
