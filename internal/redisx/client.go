package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache is the small key/value surface the HTTP layer needs.
type Cache struct{ RDB *redis.Client }

// Get reports ok=false on a missing key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := c.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.RDB.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.RDB.SetNX(ctx, key, value, ttl).Result()
}

func (c *Cache) Del(ctx context.Context, key string) error {
	return c.RDB.Del(ctx, key).Err()
}

// Dedup remembers processed ids per service so replays are skipped.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

// Claim returns true the first time id is seen.
func (d *Dedup) Claim(ctx context.Context, id string) (bool, error) {
	return d.RDB.SetNX(ctx, DedupKey(d.Service, id), "1", TTLDedup).Result()
}

// Release forgets id so a failed attempt can be retried.
func (d *Dedup) Release(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, DedupKey(d.Service, id)).Err()
}
