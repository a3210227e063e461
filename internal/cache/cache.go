// Package cache stores JSON payloads with a TTL, backed by Redis or by an
// in-process map when no Redis is configured.
package cache

import (
	"context"
	"time"
)

type Store interface {
	// Get decodes the value at key into dest. ok is false on a miss.
	Get(ctx context.Context, key string, dest any) (ok bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}
