// Package cache stores successful bot API responses for a bounded time.
package cache

import (
	"context"
	"time"
)

// Store is a keyed TTL store. A ttl <= 0 means "never cache".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// Entry is one cached value; it must not be served once Expired.
type Entry struct {
	Key        string
	Value      []byte
	InsertedAt time.Time
	TTL        time.Duration
}

// Expired reports whether now >= InsertedAt+TTL.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.InsertedAt.Add(e.TTL))
}
