package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which deliveries a handler has already applied.
// Keys are "<handler>:<event id>" so handlers sharing a store do not see each other's markers.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl; false means another delivery already claimed it
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release drops the claim after a failed handler so the outbox retry runs it again
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig controls duplicate suppression for outbox deliveries
type IdempotencyConfig struct {
	// TTL must outlive the outbox retry window, or a late retry is applied twice
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps markers for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
