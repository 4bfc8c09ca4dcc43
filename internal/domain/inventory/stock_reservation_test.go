package inventory

import (
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reservationInput(quantity int64) ReservationInput {
	return ReservationInput{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		LocationID:     uuid.New(),
		Quantity:       valueobject.NewStockQuantityFromInt(quantity, "unit"),
		ExpirationDate: testNow.Add(time.Hour),
		UserID:         uuid.New(),
	}
}

func newActiveReservation(t *testing.T, quantity int64) *StockReservation {
	t.Helper()
	r, err := NewStockReservation(reservationInput(quantity), testNow)
	require.NoError(t, err)
	r.ClearDomainEvents()
	return r
}

func TestNewStockReservation(t *testing.T) {
	t.Run("creates active reservation and emits created event", func(t *testing.T) {
		r, err := NewStockReservation(reservationInput(5), testNow)
		require.NoError(t, err)

		assert.Equal(t, ReservationStatusActive, r.Status)
		assert.True(t, r.IsActive())
		events := r.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeStockReservationCreated, events[0].EventType())
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewStockReservation(reservationInput(0), testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects expiration not in the future", func(t *testing.T) {
		in := reservationInput(1)
		in.ExpirationDate = testNow
		_, err := NewStockReservation(in, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("order factory holds for 24 hours", func(t *testing.T) {
		orderID := uuid.New()
		r, err := CreateForOrder(reservationInput(1), orderID, testNow)
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(24*time.Hour), r.ExpirationDate)
		assert.Equal(t, "ORDER:"+orderID.String(), r.Reference)
		assert.Equal(t, orderID, *r.OrderID)
	})

	t.Run("temporary factory holds for 30 minutes", func(t *testing.T) {
		r, err := CreateTemporary(reservationInput(1), testNow)
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(30*time.Minute), r.ExpirationDate)
		assert.Equal(t, ReferenceTemporary, r.Reference)
	})
}

func TestStockReservation_Confirm(t *testing.T) {
	t.Run("partial confirm", func(t *testing.T) {
		r := newActiveReservation(t, 10)
		require.NoError(t, r.Confirm(valueobject.NewStockQuantityFromInt(4, "unit"), testNow))

		assert.Equal(t, ReservationStatusConfirmed, r.Status)
		assert.True(t, r.ConfirmedQuantity.Equals(valueobject.NewStockQuantityFromInt(4, "unit")))
		require.NotNil(t, r.ConfirmedAt)
		events := r.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeStockReservationConfirmed, events[0].EventType())
	})

	t.Run("confirm full always succeeds from active", func(t *testing.T) {
		r := newActiveReservation(t, 10)
		require.NoError(t, r.ConfirmFull(testNow))
		assert.True(t, r.ConfirmedQuantity.Equals(r.ReservedQuantity))
	})

	t.Run("rejects quantity above reserved", func(t *testing.T) {
		r := newActiveReservation(t, 10)
		err := r.Confirm(valueobject.NewStockQuantityFromInt(11, "unit"), testNow)
		assert.ErrorIs(t, err, shared.ErrInvariantViolation)
		assert.True(t, r.IsActive())
	})

	t.Run("rejects unit mismatch", func(t *testing.T) {
		r := newActiveReservation(t, 10)
		err := r.Confirm(valueobject.NewStockQuantityFromInt(1, "kg"), testNow)
		assert.ErrorIs(t, err, shared.ErrUnitMismatch)
	})

	t.Run("rejects confirming a cancelled reservation", func(t *testing.T) {
		r := newActiveReservation(t, 10)
		require.NoError(t, r.Cancel("customer changed mind", testNow))
		assert.ErrorIs(t, r.ConfirmFull(testNow), shared.ErrInvalidState)
	})
}

func TestStockReservation_Cancel(t *testing.T) {
	t.Run("active reservation emits cancelled", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		require.NoError(t, r.Cancel("no longer needed", testNow))

		assert.Equal(t, ReservationStatusCancelled, r.Status)
		assert.Equal(t, "no longer needed", r.CancellationReason)
		events := r.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeStockReservationCancelled, events[0].EventType())
	})

	t.Run("expired reservation is cancelled with an expired event", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		later := testNow.Add(2 * time.Hour)
		require.NoError(t, r.MarkAsExpired(later))
		r.ClearDomainEvents()

		require.NoError(t, r.Cancel("", later))
		assert.Equal(t, ReservationStatusCancelled, r.Status)
		events := r.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeStockReservationExpired, events[0].EventType())
	})

	t.Run("active reservation past its deadline emits expired", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		require.NoError(t, r.Cancel("", testNow.Add(2*time.Hour)))

		events := r.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeStockReservationExpired, events[0].EventType())
		assert.NotNil(t, r.ExpiredAt)
	})

	t.Run("confirmed reservation cannot be cancelled", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		require.NoError(t, r.ConfirmFull(testNow))
		assert.ErrorIs(t, r.Cancel("late", testNow), shared.ErrInvalidState)
	})

	t.Run("cancelling twice fails", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		require.NoError(t, r.Cancel("x", testNow))
		assert.ErrorIs(t, r.Cancel("x", testNow), shared.ErrInvalidState)
	})
}

func TestStockReservation_MarkAsExpired(t *testing.T) {
	t.Run("succeeds once after the deadline", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		later := testNow.Add(2 * time.Hour)

		require.NoError(t, r.MarkAsExpired(later))
		assert.Equal(t, ReservationStatusExpired, r.Status)
		assert.ErrorIs(t, r.MarkAsExpired(later), shared.ErrInvalidState)
	})

	t.Run("fails before the deadline", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		assert.ErrorIs(t, r.MarkAsExpired(testNow.Add(time.Minute)), shared.ErrInvalidState)
		assert.True(t, r.IsActive())
	})

	t.Run("fails exactly at the deadline", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		assert.ErrorIs(t, r.MarkAsExpired(r.ExpirationDate), shared.ErrInvalidState)
	})

	t.Run("cancelled or confirmed never expire", func(t *testing.T) {
		later := testNow.Add(2 * time.Hour)

		cancelled := newActiveReservation(t, 3)
		require.NoError(t, cancelled.Cancel("x", testNow))
		assert.ErrorIs(t, cancelled.MarkAsExpired(later), shared.ErrInvalidState)

		confirmed := newActiveReservation(t, 3)
		require.NoError(t, confirmed.ConfirmFull(testNow))
		assert.ErrorIs(t, confirmed.MarkAsExpired(later), shared.ErrInvalidState)
	})
}

func TestStockReservation_ExtendExpiration(t *testing.T) {
	t.Run("moves deadline later", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		newDate := r.ExpirationDate.Add(time.Hour)

		require.NoError(t, r.ExtendExpiration(newDate, testNow))
		assert.Equal(t, newDate, r.ExpirationDate)
		assert.Equal(t, time.Hour, r.TimeUntilExpiration(newDate.Add(-time.Hour)))
		assert.Zero(t, r.TimeUntilExpiration(newDate.Add(time.Minute)))
		events := r.PullDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeStockReservationExtended, events[0].EventType())
	})

	t.Run("rejects earlier or equal deadline", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		assert.ErrorIs(t, r.ExtendExpiration(r.ExpirationDate, testNow), shared.ErrInvalidArgument)
	})

	t.Run("rejects deadline in the past", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		now := r.ExpirationDate.Add(3 * time.Hour)
		assert.ErrorIs(t, r.ExtendExpiration(r.ExpirationDate.Add(time.Hour), now), shared.ErrInvalidArgument)
	})

	t.Run("rejects non-active reservation", func(t *testing.T) {
		r := newActiveReservation(t, 3)
		require.NoError(t, r.ConfirmFull(testNow))
		assert.ErrorIs(t, r.ExtendExpiration(r.ExpirationDate.Add(time.Hour), testNow), shared.ErrInvalidState)
	})
}

func TestReservationKey(t *testing.T) {
	r, err := NewStockReservation(reservationInput(2), testNow)
	require.NoError(t, err)

	key, ok := ReservationKey(r.PullDomainEvents()[0])
	require.True(t, ok)
	assert.Equal(t, StockKey{LocationID: r.LocationID, ProductID: r.ProductID}, key)

	m, err := CreateInbound(movementInput(1), nil)
	require.NoError(t, err)
	_, ok = ReservationKey(m.PullDomainEvents()[0])
	assert.False(t, ok)
}
