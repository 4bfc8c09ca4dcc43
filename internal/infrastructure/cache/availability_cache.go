package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	appinventory "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const (
	defaultAvailabilityPrefix = "stockledger:availability:"
	defaultAvailabilityTTL    = 30 * time.Second
)

func availabilityKey(prefix string, key inventory.StockKey) string {
	return fmt.Sprintf("%s%s:%s", prefix, key.LocationID, key.ProductID)
}

// RedisAvailabilityCache keeps stock levels as JSON strings with a TTL
type RedisAvailabilityCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisAvailabilityCache creates a cache on an existing Redis client
func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &RedisAvailabilityCache{
		client:    client,
		keyPrefix: defaultAvailabilityPrefix,
		ttl:       ttl,
	}
}

// Get returns the cached level of key, or nil on a miss
func (c *RedisAvailabilityCache) Get(ctx context.Context, key inventory.StockKey) (*appinventory.StockLevel, error) {
	data, err := c.client.Get(ctx, availabilityKey(c.keyPrefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read availability: %w", err)
	}

	var level appinventory.StockLevel
	if err := json.Unmarshal(data, &level); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}
	return &level, nil
}

// Set stores a level for the configured TTL
func (c *RedisAvailabilityCache) Set(ctx context.Context, level *appinventory.StockLevel) error {
	data, err := json.Marshal(level)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	return c.client.Set(ctx, availabilityKey(c.keyPrefix, level.Key()), data, c.ttl).Err()
}

// Invalidate drops the cached levels of keys
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, keys ...inventory.StockKey) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = availabilityKey(c.keyPrefix, key)
	}
	return c.client.Del(ctx, redisKeys...).Err()
}

type cachedLevel struct {
	level     appinventory.StockLevel
	expiresAt time.Time
}

// InMemoryAvailabilityCache is a process-local AvailabilityCache
type InMemoryAvailabilityCache struct {
	mu      sync.RWMutex
	entries map[inventory.StockKey]cachedLevel
	ttl     time.Duration
	clock   shared.Clock
}

// NewInMemoryAvailabilityCache creates an empty in-memory cache
func NewInMemoryAvailabilityCache(ttl time.Duration) *InMemoryAvailabilityCache {
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &InMemoryAvailabilityCache{
		entries: make(map[inventory.StockKey]cachedLevel),
		ttl:     ttl,
		clock:   shared.SystemClock{},
	}
}

// WithClock replaces the clock used for expiry
func (c *InMemoryAvailabilityCache) WithClock(clock shared.Clock) *InMemoryAvailabilityCache {
	c.clock = clock
	return c
}

// Get returns a copy of the cached level, or nil when missing or expired
func (c *InMemoryAvailabilityCache) Get(ctx context.Context, key inventory.StockKey) (*appinventory.StockLevel, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return nil, nil
	}
	level := entry.level
	return &level, nil
}

// Set stores a copy of level
func (c *InMemoryAvailabilityCache) Set(ctx context.Context, level *appinventory.StockLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[level.Key()] = cachedLevel{
		level:     *level,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops the cached levels of keys
func (c *InMemoryAvailabilityCache) Invalidate(ctx context.Context, keys ...inventory.StockKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

// Len returns the number of entries, expired ones included
func (c *InMemoryAvailabilityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var (
	_ appinventory.AvailabilityCache = (*RedisAvailabilityCache)(nil)
	_ appinventory.AvailabilityCache = (*InMemoryAvailabilityCache)(nil)
)
