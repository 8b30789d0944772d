package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:{flow}:{user_id}:{key} -> stored response body
	KeyIdempotency = "idem:%s:%s:%s"

	// order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// dedup:{service}:{id}, id = event_id or event_id:product_id
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemLock    = time.Minute
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func IdempotencyKey(flow, userID, key string) string {
	return fmt.Sprintf(KeyIdempotency, flow, userID, key)
}

func OrderStatusKey(orderID string) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
