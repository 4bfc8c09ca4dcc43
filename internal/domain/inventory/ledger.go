package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// StockKey identifies a product at a location
type StockKey struct {
	LocationID uuid.UUID
	ProductID  uuid.UUID
}

// FoldBalance sums the impacts of movements on productID at locationID.
// Addition is commutative so the result does not depend on slice order.
func FoldBalance(locationID, productID uuid.UUID, unit string, movements []*StockMovement) (valueobject.StockQuantity, error) {
	balance := valueobject.ZeroStockQuantity(unit)
	for _, m := range movements {
		if m.ProductID != productID {
			continue
		}
		next, err := balance.Add(m.ImpactAt(locationID))
		if err != nil {
			return valueobject.StockQuantity{}, err
		}
		balance = next
	}
	return balance, nil
}

// ReservedQuantity sums the reserved quantity of ACTIVE reservations
func ReservedQuantity(unit string, reservations []*StockReservation) (valueobject.StockQuantity, error) {
	reserved := valueobject.ZeroStockQuantity(unit)
	for _, r := range reservations {
		if !r.IsActive() {
			continue
		}
		next, err := reserved.Add(r.ReservedQuantity)
		if err != nil {
			return valueobject.StockQuantity{}, err
		}
		reserved = next
	}
	return reserved, nil
}

// AvailableQuantity is on-hand minus the active reservations
func AvailableQuantity(onHand valueobject.StockQuantity, reservations []*StockReservation) (valueobject.StockQuantity, error) {
	reserved, err := ReservedQuantity(onHand.Unit(), reservations)
	if err != nil {
		return valueobject.StockQuantity{}, err
	}
	return onHand.Subtract(reserved)
}

// StockBalance is the cached on-hand sum of the ledger for one key.
// It is locked while movements are appended or reservations admitted.
type StockBalance struct {
	LocationID uuid.UUID
	ProductID  uuid.UUID
	OnHand     valueobject.StockQuantity
	Version    int
	UpdatedAt  time.Time
}

// NewStockBalance creates an empty balance
func NewStockBalance(locationID, productID uuid.UUID, unit string, now time.Time) *StockBalance {
	return &StockBalance{
		LocationID: locationID,
		ProductID:  productID,
		OnHand:     valueobject.ZeroStockQuantity(unit),
		Version:    1,
		UpdatedAt:  now,
	}
}

// Key returns the location+product key
func (b *StockBalance) Key() StockKey {
	return StockKey{LocationID: b.LocationID, ProductID: b.ProductID}
}

// Apply adds a signed impact; a result below zero is rejected and leaves the balance untouched
func (b *StockBalance) Apply(impact valueobject.StockQuantity, now time.Time) error {
	if b.OnHand.Unit() == "" && b.OnHand.IsZero() {
		b.OnHand = valueobject.ZeroStockQuantity(impact.Unit())
	}
	next, err := b.OnHand.Add(impact)
	if err != nil {
		return err
	}
	if next.IsNegative() {
		return shared.ErrInsufficientStock
	}
	b.OnHand = next
	b.Version++
	b.UpdatedAt = now
	return nil
}

// Available subtracts reserved from on-hand
func (b *StockBalance) Available(reserved valueobject.StockQuantity) (valueobject.StockQuantity, error) {
	return b.OnHand.Subtract(reserved)
}
