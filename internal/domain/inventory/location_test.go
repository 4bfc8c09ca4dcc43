package inventory

import (
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLocation(t *testing.T, locationType LocationType) *Location {
	t.Helper()
	loc, err := NewLocation(uuid.New(), "Main Warehouse", " wh-01 ", locationType, testNow)
	require.NoError(t, err)
	return loc
}

func qty(v int64) *valueobject.StockQuantity {
	q := valueobject.NewStockQuantityFromInt(v, "unit")
	return &q
}

func TestNewLocation(t *testing.T) {
	t.Run("creates active location with normalized code", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)

		assert.Equal(t, "WH-01", loc.Code)
		assert.True(t, loc.IsActive)
		assert.Equal(t, 1, loc.Version)
		assert.Equal(t, AccessLevelPublic, loc.Access.AccessLevel)
		assert.True(t, loc.Access.AllowsShipping)

		events := loc.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeLocationCreated, events[0].EventType())
		assert.Empty(t, loc.GetDomainEvents())
	})

	t.Run("frozen storage forces temperature control and restricted access", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeFrozenStorage)

		assert.True(t, loc.Physical.TemperatureControlled)
		require.NotNil(t, loc.Physical.Temperature)
		assert.True(t, loc.Physical.Temperature.Equal(decimal.NewFromInt(-18)))
		assert.Equal(t, AccessLevelRestricted, loc.Access.AccessLevel)
	})

	t.Run("quarantine is secured and blocks picking", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeQuarantine)

		assert.Equal(t, AccessLevelSecured, loc.Access.AccessLevel)
		assert.True(t, loc.Access.RequiresAuthorization)
		assert.False(t, loc.Access.AllowsPicking)
	})

	t.Run("rejects empty code", func(t *testing.T) {
		_, err := NewLocation(uuid.New(), "Name", "   ", LocationTypeStore, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := NewLocation(uuid.New(), "Name", "X", LocationType("ROOF"), testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects nil id", func(t *testing.T) {
		_, err := NewLocation(uuid.Nil, "Name", "X", LocationTypeStore, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestLocation_ConfigurePhysicalProperties(t *testing.T) {
	dec := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}

	t.Run("accepts values in range", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		err := loc.ConfigurePhysicalProperties(PhysicalProperties{
			Capacity:              dec(500),
			CapacityUnit:          "pallet",
			Temperature:           dec(-50),
			TemperatureControlled: true,
			Humidity:              dec(100),
		}, testNow)
		require.NoError(t, err)
		assert.Equal(t, "pallet", loc.Physical.CapacityUnit)
		assert.Equal(t, 2, loc.Version)
	})

	t.Run("rejects non-positive capacity", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		err := loc.ConfigurePhysicalProperties(PhysicalProperties{Capacity: dec(0)}, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects temperature out of range", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		err := loc.ConfigurePhysicalProperties(PhysicalProperties{Temperature: dec(101)}, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		err = loc.ConfigurePhysicalProperties(PhysicalProperties{Temperature: dec(-51)}, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects humidity out of range and keeps previous settings", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeDryStorage)
		before := loc.Physical
		err := loc.ConfigurePhysicalProperties(PhysicalProperties{Humidity: dec(-1)}, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Equal(t, before, loc.Physical)
	})
}

func TestLocation_ConfigureHierarchy(t *testing.T) {
	t.Run("rejects self as parent", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		self := loc.ID
		err := loc.ConfigureHierarchy(Hierarchy{ParentLocationID: &self}, testNow)
		assert.ErrorIs(t, err, shared.ErrInvariantViolation)
	})

	t.Run("stores trimmed address", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		parent := uuid.New()
		err := loc.ConfigureHierarchy(Hierarchy{ParentLocationID: &parent, Zone: " A ", Aisle: "3", Bin: "12"}, testNow)
		require.NoError(t, err)
		assert.Equal(t, "A", loc.Hierarchy.Zone)
		assert.Equal(t, parent, *loc.Hierarchy.ParentLocationID)
	})
}

func TestLocation_ConfigureAccess(t *testing.T) {
	loc := newTestLocation(t, LocationTypeWarehouse)

	err := loc.ConfigureAccess(AccessSettings{AccessLevel: "TOP_SECRET", Priority: 1}, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = loc.ConfigureAccess(AccessSettings{AccessLevel: AccessLevelSecured, Priority: 0}, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = loc.ConfigureAccess(AccessSettings{AccessLevel: AccessLevelSecured, Priority: 3, AllowsReceiving: true}, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, loc.Access.Priority)
	assert.False(t, loc.Access.AllowsPicking)
}

func TestLocation_SetStockThresholds(t *testing.T) {
	t.Run("inserts then updates in place", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		productID := uuid.New()

		_, err := loc.SetStockThresholds(productID, Thresholds{Minimum: qty(10), Maximum: qty(100)}, testNow)
		require.NoError(t, err)
		_, err = loc.SetStockThresholds(productID, Thresholds{Minimum: qty(20), Maximum: qty(200)}, testNow)
		require.NoError(t, err)

		require.Len(t, loc.StockLevels, 1)
		assert.True(t, loc.StockLevelFor(productID).MinimumLevel.Equals(*qty(20)))
	})

	t.Run("rejected update leaves thresholds unchanged", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		productID := uuid.New()
		_, err := loc.SetStockThresholds(productID, Thresholds{Minimum: qty(10), Maximum: qty(100)}, testNow)
		require.NoError(t, err)
		version := loc.Version

		_, err = loc.SetStockThresholds(productID, Thresholds{Minimum: qty(100), Maximum: qty(10)}, testNow)
		assert.ErrorIs(t, err, shared.ErrInvariantViolation)
		assert.True(t, loc.StockLevelFor(productID).MaximumLevel.Equals(*qty(100)))
		assert.Equal(t, version, loc.Version)
	})

	t.Run("removes thresholds", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		productID := uuid.New()
		_, err := loc.SetStockThresholds(productID, Thresholds{Minimum: qty(1)}, testNow)
		require.NoError(t, err)

		require.NoError(t, loc.RemoveStockThresholds(productID, testNow))
		assert.Nil(t, loc.StockLevelFor(productID))
		assert.ErrorIs(t, loc.RemoveStockThresholds(productID, testNow), shared.ErrNotFound)
	})
}

func TestLocation_DeactivateReactivate(t *testing.T) {
	t.Run("deactivate requires reason", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		err := loc.Deactivate("  ", testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.True(t, loc.IsActive)
	})

	t.Run("deactivate emits event and records reason", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		loc.ClearDomainEvents()

		require.NoError(t, loc.Deactivate("flooded", testNow))
		assert.False(t, loc.IsActive)
		assert.Equal(t, "flooded", loc.DeactivationReason)
		require.NotNil(t, loc.DeactivatedAt)

		events := loc.PullDomainEvents()
		require.Len(t, events, 1)
		evt, ok := events[0].(*LocationDeactivatedEvent)
		require.True(t, ok)
		assert.Equal(t, "flooded", evt.Reason)
	})

	t.Run("fails when already in target state", func(t *testing.T) {
		loc := newTestLocation(t, LocationTypeWarehouse)
		assert.ErrorIs(t, loc.Reactivate(testNow), shared.ErrInvalidState)

		require.NoError(t, loc.Deactivate("audit", testNow))
		assert.ErrorIs(t, loc.Deactivate("again", testNow), shared.ErrInvalidState)

		require.NoError(t, loc.Reactivate(testNow))
		assert.True(t, loc.IsActive)
		assert.Nil(t, loc.DeactivatedAt)
	})
}

func TestLocation_IsSuitableForProduct(t *testing.T) {
	frozen := newTestLocation(t, LocationTypeFrozenStorage)
	warehouse := newTestLocation(t, LocationTypeWarehouse)
	dry := newTestLocation(t, LocationTypeDryStorage)

	assert.True(t, frozen.IsSuitableForProduct(true, false))
	assert.False(t, warehouse.IsSuitableForProduct(true, false))
	assert.True(t, warehouse.IsSuitableForProduct(false, false))
	assert.True(t, dry.IsSuitableForProduct(false, true))
	assert.False(t, frozen.IsSuitableForProduct(true, true))
}
