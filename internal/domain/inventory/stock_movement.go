package inventory

import (
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeStockMovement = "StockMovement"

// MovementType represents the kind of ledger entry
type MovementType string

const (
	MovementTypeInbound       MovementType = "INBOUND"
	MovementTypeOutbound      MovementType = "OUTBOUND"
	MovementTypeTransferOut   MovementType = "TRANSFER_OUT"
	MovementTypeAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementTypeAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	MovementTypeLoss          MovementType = "LOSS"
)

// IsValid checks if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeInbound, MovementTypeOutbound, MovementTypeTransferOut,
		MovementTypeAdjustmentIn, MovementTypeAdjustmentOut, MovementTypeLoss:
		return true
	}
	return false
}

// IsInbound returns true if the movement adds stock at its location
func (t MovementType) IsInbound() bool {
	switch t {
	case MovementTypeInbound, MovementTypeAdjustmentIn:
		return true
	case MovementTypeOutbound, MovementTypeTransferOut, MovementTypeAdjustmentOut, MovementTypeLoss:
		return false
	}
	return false
}

// IsOutbound returns true if the movement removes stock from its location
func (t MovementType) IsOutbound() bool {
	switch t {
	case MovementTypeOutbound, MovementTypeTransferOut, MovementTypeAdjustmentOut, MovementTypeLoss:
		return true
	case MovementTypeInbound, MovementTypeAdjustmentIn:
		return false
	}
	return false
}

// MovementInput carries the fields shared by every movement factory
type MovementInput struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	LocationID   uuid.UUID
	Quantity     valueobject.StockQuantity
	UnitCost     *valueobject.UnitCost
	Reference    string
	Reason       string
	UserID       uuid.UUID
	MovementDate time.Time
}

func (in MovementInput) validate() error {
	if in.ID == uuid.Nil {
		return shared.NewInvalidArgumentError("INVALID_ID", "Movement ID cannot be empty")
	}
	if in.ProductID == uuid.Nil {
		return shared.NewInvalidArgumentError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if in.LocationID == uuid.Nil {
		return shared.NewInvalidArgumentError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if in.UserID == uuid.Nil {
		return shared.NewInvalidArgumentError("INVALID_USER", "User ID cannot be empty")
	}
	if strings.TrimSpace(in.Quantity.Unit()) == "" {
		return shared.NewInvalidArgumentError("INVALID_UNIT", "Quantity unit cannot be empty")
	}
	if in.MovementDate.IsZero() {
		return shared.NewInvalidArgumentError("INVALID_MOVEMENT_DATE", "Movement date is required")
	}
	return nil
}

// StockMovement is an immutable ledger entry for one product at one location.
// Only the unit cost and the derived total cost can change after creation.
type StockMovement struct {
	shared.BaseAggregateRoot
	ProductID            uuid.UUID
	LocationID           uuid.UUID
	MovementType         MovementType
	Quantity             valueobject.StockQuantity
	UnitCost             *valueobject.UnitCost
	TotalCost            *valueobject.Money
	Reference            string
	Reason               string
	MovementDate         time.Time
	UserID               uuid.UUID
	PurchaseOrderID      *uuid.UUID
	ReservationID        *uuid.UUID
	TransferToLocationID *uuid.UUID
}

func newStockMovement(in MovementInput, movementType MovementType, quantity valueobject.StockQuantity) (*StockMovement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if !quantity.IsPositive() {
		return nil, shared.NewInvalidArgumentError("INVALID_QUANTITY", "Movement quantity must be positive")
	}

	m := &StockMovement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(in.ID, in.MovementDate),
		ProductID:         in.ProductID,
		LocationID:        in.LocationID,
		MovementType:      movementType,
		Quantity:          quantity,
		Reference:         strings.TrimSpace(in.Reference),
		Reason:            strings.TrimSpace(in.Reason),
		MovementDate:      in.MovementDate,
		UserID:            in.UserID,
	}
	if in.UnitCost != nil {
		m.setUnitCost(*in.UnitCost)
	}
	return m, nil
}

func (m *StockMovement) occurred() {
	m.AddDomainEvent(NewStockMovementOccurredEvent(m))
}

// CreateInbound records stock arriving at a location, optionally from a purchase order
func CreateInbound(in MovementInput, purchaseOrderID *uuid.UUID) (*StockMovement, error) {
	m, err := newStockMovement(in, MovementTypeInbound, in.Quantity)
	if err != nil {
		return nil, err
	}
	m.PurchaseOrderID = purchaseOrderID
	m.occurred()
	return m, nil
}

// CreateOutbound records stock leaving a location, optionally fulfilling a reservation
func CreateOutbound(in MovementInput, reservationID *uuid.UUID) (*StockMovement, error) {
	m, err := newStockMovement(in, MovementTypeOutbound, in.Quantity)
	if err != nil {
		return nil, err
	}
	m.ReservationID = reservationID
	m.occurred()
	return m, nil
}

// CreateTransfer records stock leaving in.LocationID for toLocationID
func CreateTransfer(in MovementInput, toLocationID uuid.UUID) (*StockMovement, error) {
	if toLocationID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_LOCATION", "Transfer destination cannot be empty")
	}
	if toLocationID == in.LocationID {
		return nil, shared.NewInvariantViolationError("TRANSFER_TO_SELF", "Cannot transfer stock to the same location")
	}
	m, err := newStockMovement(in, MovementTypeTransferOut, in.Quantity)
	if err != nil {
		return nil, err
	}
	to := toLocationID
	m.TransferToLocationID = &to
	m.occurred()
	return m, nil
}

// CreateAdjustment records a signed correction; the sign of in.Quantity selects
// ADJUSTMENT_IN or ADJUSTMENT_OUT and only the magnitude is stored.
func CreateAdjustment(in MovementInput) (*StockMovement, error) {
	if in.Quantity.IsZero() {
		return nil, shared.NewInvalidArgumentError("INVALID_QUANTITY", "Adjustment delta cannot be zero")
	}
	movementType := MovementTypeAdjustmentIn
	if in.Quantity.IsNegative() {
		movementType = MovementTypeAdjustmentOut
	}
	m, err := newStockMovement(in, movementType, in.Quantity.Abs())
	if err != nil {
		return nil, err
	}
	m.occurred()
	return m, nil
}

// CreateLoss records stock lost or destroyed; a reason is required
func CreateLoss(in MovementInput) (*StockMovement, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, shared.NewInvalidArgumentError("INVALID_REASON", "Loss reason is required")
	}
	m, err := newStockMovement(in, MovementTypeLoss, in.Quantity)
	if err != nil {
		return nil, err
	}
	m.occurred()
	return m, nil
}

func (m *StockMovement) setUnitCost(cost valueobject.UnitCost) {
	c := cost
	total := cost.CalculateTotal(m.Quantity)
	m.UnitCost = &c
	m.TotalCost = &total
}

// UpdateUnitCost replaces the unit cost and recomputes the total cost
func (m *StockMovement) UpdateUnitCost(cost valueobject.UnitCost, now time.Time) {
	m.setUnitCost(cost)
	m.Touch(now)
	m.IncrementVersion()
}

// IsInboundMovement returns true for inbound-class movements
func (m *StockMovement) IsInboundMovement() bool {
	return m.MovementType.IsInbound()
}

// IsOutboundMovement returns true for outbound-class movements
func (m *StockMovement) IsOutboundMovement() bool {
	return m.MovementType.IsOutbound()
}

// GetStockImpact returns the signed effect on the movement's own location
func (m *StockMovement) GetStockImpact() valueobject.StockQuantity {
	if m.IsOutboundMovement() {
		return m.Quantity.Negate()
	}
	return m.Quantity
}

// ImpactAt returns the signed effect on the given location.
// A transfer counts negative at its source and positive at its destination.
func (m *StockMovement) ImpactAt(locationID uuid.UUID) valueobject.StockQuantity {
	if m.LocationID == locationID {
		return m.GetStockImpact()
	}
	if m.TransferToLocationID != nil && *m.TransferToLocationID == locationID {
		return m.Quantity
	}
	return valueobject.ZeroStockQuantity(m.Quantity.Unit())
}

// AffectedLocations returns every location whose balance changes
func (m *StockMovement) AffectedLocations() []uuid.UUID {
	if m.TransferToLocationID != nil {
		return []uuid.UUID{m.LocationID, *m.TransferToLocationID}
	}
	return []uuid.UUID{m.LocationID}
}
