package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// LocationRepository persists Location aggregates together with their stock levels
type LocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Location, error)
	FindByCode(ctx context.Context, code string) (*Location, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Location, error)
	// FindWithThresholdsForProduct returns active locations that track thresholds for productID
	FindWithThresholdsForProduct(ctx context.Context, productID uuid.UUID) ([]*Location, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, location *Location) error
	// SaveWithLock saves only if the stored version is location.Version-1
	SaveWithLock(ctx context.Context, location *Location) error
}

// StockMovementRepository is the append-only ledger store
type StockMovementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)
	// FindByKey returns every movement that affects the product at the location,
	// including transfers into it
	FindByKey(ctx context.Context, locationID, productID uuid.UUID) ([]*StockMovement, error)
	FindByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*StockMovement, error)
	FindByReservation(ctx context.Context, reservationID uuid.UUID) ([]*StockMovement, error)
	Append(ctx context.Context, movement *StockMovement) error
	// UpdateCost persists a unit cost change; other fields are immutable
	UpdateCost(ctx context.Context, movement *StockMovement) error
}

// StockReservationRepository persists reservations with optimistic versioning
type StockReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockReservation, error)
	FindActiveByKey(ctx context.Context, locationID, productID uuid.UUID) ([]*StockReservation, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*StockReservation, error)
	// FindActiveExpiredBefore returns ACTIVE reservations whose deadline is before now,
	// oldest first, leaving out the ids in exclude
	FindActiveExpiredBefore(ctx context.Context, now time.Time, exclude []uuid.UUID, limit int) ([]*StockReservation, error)
	Create(ctx context.Context, reservation *StockReservation) error
	// SaveWithLock updates only if the stored version is reservation.Version-1
	SaveWithLock(ctx context.Context, reservation *StockReservation) error
}

// StockBalanceRepository stores the materialized ledger sum per key
type StockBalanceRepository interface {
	Find(ctx context.Context, locationID, productID uuid.UUID) (*StockBalance, error)
	// LockForUpdate returns the balance row locked for the rest of the transaction,
	// creating an empty one in unit when none exists
	LockForUpdate(ctx context.Context, locationID, productID uuid.UUID, unit string) (*StockBalance, error)
	Save(ctx context.Context, balance *StockBalance) error
}
