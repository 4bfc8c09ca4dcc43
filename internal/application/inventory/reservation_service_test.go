package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationService_AdmitsUpToAvailable(t *testing.T) {
	f := newFixture(t)
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	first, err := f.reserve(loc.ID, productID, 3)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusActive, first.Status)
	assert.Equal(t, testNow.Add(inventory.DefaultOrderReservationDuration), first.ExpirationDate)

	_, err = f.reserve(loc.ID, productID, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	_, err = f.reserve(loc.ID, productID, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), f.outboxCount(t, inventory.EventTypeStockReservationCreated))
}

func TestReservationService_NothingOnHand(t *testing.T) {
	f := newFixture(t)
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")

	_, err := f.reserve(loc.ID, uuid.New(), 1)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
}

func TestReservationService_LocationMustAllowPicking(t *testing.T) {
	f := newFixture(t)
	quarantine := f.createLocation(t, "QA-1", "QUARANTINE")
	productID := uuid.New()
	f.receive(t, quarantine.ID, productID, 5)

	_, err := f.reserve(quarantine.ID, productID, 1)
	assert.Equal(t, "LOCATION_NOT_PICKABLE", codeOf(err))
}

func TestReservationService_LocationMustBeActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	_, err := f.locations.Deactivate(ctx, loc.ID, "stocktake")
	require.NoError(t, err)

	_, err = f.reserve(loc.ID, productID, 1)
	assert.Equal(t, "LOCATION_INACTIVE", codeOf(err))
}

func TestReservationService_ExplicitDeadlineMustBeInFuture(t *testing.T) {
	f := newFixture(t)
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	past := testNow.Add(-time.Minute)
	_, err := f.reservations.Reserve(context.Background(), appinv.ReserveRequest{
		ProductID: productID, LocationID: loc.ID,
		Quantity: decimal.NewFromInt(1), Unit: "pcs", UserID: f.userID,
		ExpiresAt: &past,
	})
	assert.Equal(t, "INVALID_EXPIRATION", codeOf(err))
}

func TestReservationService_ConfirmFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 10)

	r, err := f.reserve(loc.ID, productID, 4)
	require.NoError(t, err)

	confirmed, movement, err := f.reservations.Confirm(ctx, appinv.ConfirmReservationRequest{
		ReservationID: r.ID,
		UserID:        f.userID,
	})
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedQuantity)
	assert.True(t, confirmed.ConfirmedQuantity.Equals(valueobject.NewStockQuantityFromInt(4, "pcs")))

	assert.Equal(t, inventory.MovementTypeOutbound, movement.MovementType)
	require.NotNil(t, movement.ReservationID)
	assert.Equal(t, r.ID, *movement.ReservationID)
	assert.Equal(t, "SO-1", movement.Reference)

	level, err := f.ledger.GetAvailable(ctx, loc.ID, productID)
	require.NoError(t, err)
	assert.True(t, level.OnHand.Equals(valueobject.NewStockQuantityFromInt(6, "pcs")))
	assert.True(t, level.Reserved.IsZero())
	assert.True(t, level.Available.Equals(valueobject.NewStockQuantityFromInt(6, "pcs")))

	_, _, err = f.reservations.Confirm(ctx, appinv.ConfirmReservationRequest{
		ReservationID: r.ID,
		UserID:        f.userID,
	})
	assert.Equal(t, "RESERVATION_NOT_ACTIVE", codeOf(err))
}

func TestReservationService_ConfirmPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 10)

	r, err := f.reserve(loc.ID, productID, 4)
	require.NoError(t, err)

	_, _, err = f.reservations.Confirm(ctx, appinv.ConfirmReservationRequest{
		ReservationID: r.ID, Quantity: dec(5), UserID: f.userID,
	})
	assert.Equal(t, "CONFIRM_EXCEEDS_RESERVED", codeOf(err))

	confirmed, movement, err := f.reservations.Confirm(ctx, appinv.ConfirmReservationRequest{
		ReservationID: r.ID, Quantity: dec(3), UserID: f.userID, Reference: "SHIP-9",
	})
	require.NoError(t, err)
	assert.True(t, confirmed.ConfirmedQuantity.Equals(valueobject.NewStockQuantityFromInt(3, "pcs")))
	assert.Equal(t, "SHIP-9", movement.Reference)

	// the unconfirmed remainder is released with the reservation
	onHand, err := f.ledger.GetOnHand(ctx, loc.ID, productID)
	require.NoError(t, err)
	assert.True(t, onHand.Equals(valueobject.NewStockQuantityFromInt(7, "pcs")))
	level, err := f.ledger.GetAvailable(ctx, loc.ID, productID)
	require.NoError(t, err)
	assert.True(t, level.Available.Equals(valueobject.NewStockQuantityFromInt(7, "pcs")))
}

func TestReservationService_CancelReleasesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	r, err := f.reserve(loc.ID, productID, 5)
	require.NoError(t, err)
	_, err = f.reserve(loc.ID, productID, 1)
	require.True(t, errors.Is(err, shared.ErrInsufficientStock))

	cancelled, err := f.reservations.Cancel(ctx, appinv.CancelReservationRequest{
		ReservationID: r.ID, Reason: "customer changed mind",
	})
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusCancelled, cancelled.Status)
	assert.Equal(t, "customer changed mind", cancelled.CancellationReason)
	assert.Equal(t, int64(1), f.outboxCount(t, inventory.EventTypeStockReservationCancelled))

	_, err = f.reserve(loc.ID, productID, 5)
	assert.NoError(t, err)

	_, err = f.reservations.Cancel(ctx, appinv.CancelReservationRequest{ReservationID: r.ID})
	assert.Equal(t, "RESERVATION_CANCELLED", codeOf(err))
}

func TestReservationService_CancelPastDeadlineRecordsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	r, err := f.reservations.ReserveTemporary(ctx, appinv.ReserveRequest{
		ProductID: productID, LocationID: loc.ID,
		Quantity: decimal.NewFromInt(2), Unit: "pcs", UserID: f.userID,
	})
	require.NoError(t, err)
	assert.Equal(t, inventory.ReferenceTemporary, r.Reference)
	assert.Equal(t, testNow.Add(inventory.DefaultTemporaryReservationDuration), r.ExpirationDate)

	f.clock.Advance(inventory.DefaultTemporaryReservationDuration + time.Minute)

	cancelled, err := f.reservations.Cancel(ctx, appinv.CancelReservationRequest{ReservationID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.ExpiredAt)
	assert.Equal(t, int64(1), f.outboxCount(t, inventory.EventTypeStockReservationExpired))
	assert.Zero(t, f.outboxCount(t, inventory.EventTypeStockReservationCancelled))
}

func TestReservationService_Extend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	r, err := f.reserve(loc.ID, productID, 1)
	require.NoError(t, err)

	_, err = f.reservations.Extend(ctx, appinv.ExtendReservationRequest{
		ReservationID: r.ID, ExpiresAt: r.ExpirationDate.Add(-time.Hour),
	})
	assert.Equal(t, "INVALID_EXPIRATION", codeOf(err))

	later := r.ExpirationDate.Add(48 * time.Hour)
	extended, err := f.reservations.Extend(ctx, appinv.ExtendReservationRequest{
		ReservationID: r.ID, ExpiresAt: later,
	})
	require.NoError(t, err)
	assert.True(t, extended.ExpirationDate.Equal(later))

	stored, err := f.reservations.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, stored.ExpirationDate.Equal(later))
	assert.Equal(t, extended.Version, stored.Version)
}

func TestReservationService_ReserveForOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productA, productB := uuid.New(), uuid.New()
	f.receive(t, loc.ID, productA, 5)
	f.receive(t, loc.ID, productB, 5)

	orderID := uuid.New()
	for _, productID := range []uuid.UUID{productA, productB} {
		r, err := f.reservations.ReserveForOrder(ctx, appinv.ReserveForOrderRequest{
			ReserveRequest: appinv.ReserveRequest{
				ProductID: productID, LocationID: loc.ID,
				Quantity: decimal.NewFromInt(2), Unit: "pcs", UserID: f.userID,
			},
			OrderID: orderID,
		})
		require.NoError(t, err)
		require.NotNil(t, r.OrderID)
		assert.Equal(t, orderID, *r.OrderID)
	}

	reservations, err := f.reservations.ListByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, reservations, 2)

	none, err := f.reservations.ListByOrder(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReservationService_GetByIDNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.reservations.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestReservationService_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 5)

	cache := newMemoryCache()
	f.reservations.SetCache(cache)

	_, err := f.reserve(loc.ID, productID, 1)
	require.NoError(t, err)
	assert.Equal(t, []inventory.StockKey{{LocationID: loc.ID, ProductID: productID}}, cache.invalidated)
}

func TestReservationService_ConfiguredDurations(t *testing.T) {
	f := newFixture(t)
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	f.receive(t, loc.ID, productID, 10)

	assert.Equal(t, inventory.DefaultOrderReservationDuration, appinv.DefaultReservationDurations().Order)
	f.reservations.SetDurations(appinv.ReservationDurations{Order: 2 * time.Hour, Temporary: 10 * time.Minute})

	held, err := f.reserve(loc.ID, productID, 1)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(2*time.Hour), held.ExpirationDate)

	cart := f.reserveTemporary(t, loc.ID, productID, 1)
	assert.Equal(t, testNow.Add(10*time.Minute), cart.ExpirationDate)
}
