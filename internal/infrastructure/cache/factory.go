package cache

import (
	"fmt"

	appinventory "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the idempotency store and availability cache.
// Both share one Redis client when Redis is enabled and reachable.
type Factory struct {
	redisConfig           config.RedisConfig
	cacheConfig           config.CacheConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	client *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(redisCfg config.RedisConfig, cacheCfg config.CacheConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		cacheConfig:           cacheCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redisClient connects lazily; nil means the in-memory stores should be used
func (f *Factory) redisClient() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled {
		return nil, nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Event handlers may run twice when several workers are deployed.",
			zap.Error(err),
		)
		return nil, nil
	}
	f.client = client
	return client, nil
}

// CreateIdempotencyStore returns the Redis store when available, otherwise an in-memory one
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.redisClient()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return NewInMemoryIdempotencyStore(), nil
	}
	f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
	return NewRedisIdempotencyStore(client, ""), nil
}

// CreateAvailabilityCache returns nil when caching is disabled
func (f *Factory) CreateAvailabilityCache() (appinventory.AvailabilityCache, error) {
	if !f.cacheConfig.Enabled {
		return nil, nil
	}
	client, err := f.redisClient()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return NewInMemoryAvailabilityCache(f.cacheConfig.TTL), nil
	}
	f.logger.Info("using Redis availability cache", zap.Duration("ttl", f.cacheConfig.TTL))
	return NewRedisAvailabilityCache(client, f.cacheConfig.TTL), nil
}

// Close closes the shared Redis client, if one was opened
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
