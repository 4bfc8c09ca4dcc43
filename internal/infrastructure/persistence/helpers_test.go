package persistence

import (
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newTestDB returns a fresh in-memory SQLite database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d.DB
}

func pcs(n int64) valueobject.StockQuantity {
	return valueobject.NewStockQuantityFromInt(n, "pcs")
}

func newTestLocation(t *testing.T, code string) *inventory.Location {
	t.Helper()
	loc, err := inventory.NewLocation(uuid.New(), "Location "+code, code, inventory.LocationTypeWarehouse, testNow)
	require.NoError(t, err)
	loc.ClearDomainEvents()
	return loc
}

func newTestReservation(t *testing.T, locationID, productID uuid.UUID, qty int64, expires time.Time) *inventory.StockReservation {
	t.Helper()
	r, err := inventory.NewStockReservation(inventory.ReservationInput{
		ID:             uuid.New(),
		ProductID:      productID,
		LocationID:     locationID,
		Quantity:       pcs(qty),
		ExpirationDate: expires,
		UserID:         uuid.New(),
		Reference:      "TEST",
	}, testNow)
	require.NoError(t, err)
	r.ClearDomainEvents()
	return r
}

func movementInput(locationID, productID uuid.UUID, qty int64, at time.Time) inventory.MovementInput {
	return inventory.MovementInput{
		ID:           uuid.New(),
		ProductID:    productID,
		LocationID:   locationID,
		Quantity:     pcs(qty),
		UserID:       uuid.New(),
		MovementDate: at,
	}
}
