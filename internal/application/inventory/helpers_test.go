package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fixture wires every inventory service to one in-memory database and clock
type fixture struct {
	db           *gorm.DB
	clock        *shared.FixedClock
	scope        appinv.TransactionScope
	locations    *appinv.LocationService
	ledger       *appinv.LedgerService
	reservations *appinv.ReservationService
	expiration   *appinv.ReservationExpirationService
	userID       uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := persistence.NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	f := &fixture{
		db:     d.DB,
		clock:  shared.NewFixedClock(testNow),
		scope:  persistence.NewDefaultTransactionScope(d.DB),
		userID: uuid.New(),
	}
	log := zap.NewNop()
	f.locations = appinv.NewLocationService(f.scope, log)
	f.locations.SetClock(f.clock)
	f.ledger = appinv.NewLedgerService(f.scope, log)
	f.ledger.SetClock(f.clock)
	f.reservations = appinv.NewReservationService(f.scope, log)
	f.reservations.SetClock(f.clock)
	f.expiration = appinv.NewReservationExpirationService(f.scope, log)
	f.expiration.SetClock(f.clock)
	return f
}

func (f *fixture) createLocation(t *testing.T, code, locationType string) *inventory.Location {
	t.Helper()
	loc, err := f.locations.Create(context.Background(), appinv.CreateLocationRequest{
		Name:         "Location " + code,
		Code:         code,
		LocationType: locationType,
	})
	require.NoError(t, err)
	return loc
}

func (f *fixture) movement(locationID, productID uuid.UUID, qty int64) appinv.MovementRequest {
	return appinv.MovementRequest{
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   decimal.NewFromInt(qty),
		Unit:       "pcs",
		UserID:     f.userID,
	}
}

func (f *fixture) receive(t *testing.T, locationID, productID uuid.UUID, qty int64) {
	t.Helper()
	_, err := f.ledger.RecordInbound(context.Background(), appinv.RecordInboundRequest{
		MovementRequest: f.movement(locationID, productID, qty),
	})
	require.NoError(t, err)
}

func (f *fixture) reserve(locationID, productID uuid.UUID, qty int64) (*inventory.StockReservation, error) {
	return f.reservations.Reserve(context.Background(), appinv.ReserveRequest{
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   decimal.NewFromInt(qty),
		Unit:       "pcs",
		UserID:     f.userID,
		Reference:  "SO-1",
	})
}

func (f *fixture) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table("outbox_events").Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func dec(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

// codeOf returns the DomainError code of err, or "" if there is none
func codeOf(err error) string {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return ""
	}
	return de.Code
}

// memoryCache is an AvailabilityCache kept in a map
type memoryCache struct {
	mu          sync.Mutex
	levels      map[inventory.StockKey]*appinv.StockLevel
	sets        int
	invalidated []inventory.StockKey
}

func newMemoryCache() *memoryCache {
	return &memoryCache{levels: make(map[inventory.StockKey]*appinv.StockLevel)}
}

func (c *memoryCache) Get(_ context.Context, key inventory.StockKey) (*appinv.StockLevel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levels[key], nil
}

func (c *memoryCache) Set(_ context.Context, level *appinv.StockLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[level.Key()] = level
	c.sets++
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, keys ...inventory.StockKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.levels, k)
	}
	c.invalidated = append(c.invalidated, keys...)
	return nil
}
