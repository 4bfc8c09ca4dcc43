package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementRequest carries the fields common to every ledger entry
type MovementRequest struct {
	ProductID    uuid.UUID        `json:"product_id" validate:"required"`
	LocationID   uuid.UUID        `json:"location_id" validate:"required"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Unit         string           `json:"unit" validate:"required,max=20"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
	Currency     string           `json:"currency" validate:"omitempty,len=3"`
	Reference    string           `json:"reference" validate:"max=100"`
	Reason       string           `json:"reason" validate:"max=500"`
	UserID       uuid.UUID        `json:"user_id" validate:"required"`
	MovementDate *time.Time       `json:"movement_date"`
}

// RecordInboundRequest records goods arriving at a location
type RecordInboundRequest struct {
	MovementRequest
	PurchaseOrderID *uuid.UUID `json:"purchase_order_id"`
}

// RecordOutboundRequest records goods leaving a location
type RecordOutboundRequest struct {
	MovementRequest
	ReservationID *uuid.UUID `json:"reservation_id"`
}

// RecordTransferRequest moves goods between two locations
type RecordTransferRequest struct {
	MovementRequest
	ToLocationID uuid.UUID `json:"to_location_id" validate:"required"`
}

// RecordAdjustmentRequest corrects the ledger; Quantity is signed
type RecordAdjustmentRequest struct {
	MovementRequest
}

// RecordLossRequest writes off damaged or missing goods
type RecordLossRequest struct {
	MovementRequest
}

// ReserveRequest opens a reservation
type ReserveRequest struct {
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	LocationID uuid.UUID       `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit" validate:"required,max=20"`
	UserID     uuid.UUID       `json:"user_id" validate:"required"`
	Reference  string          `json:"reference" validate:"max=100"`
	CustomerID *uuid.UUID      `json:"customer_id"`
	// ExpiresAt defaults to the configured hold duration when nil
	ExpiresAt *time.Time `json:"expires_at"`
}

// ReserveForOrderRequest opens a reservation held for an order
type ReserveForOrderRequest struct {
	ReserveRequest
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// ConfirmReservationRequest converts a reservation into an outbound movement
type ConfirmReservationRequest struct {
	ReservationID uuid.UUID `json:"reservation_id" validate:"required"`
	// Quantity confirms part of the reservation; nil confirms all of it
	Quantity  *decimal.Decimal `json:"quantity"`
	UserID    uuid.UUID        `json:"user_id" validate:"required"`
	Reference string           `json:"reference" validate:"max=100"`
}

// CancelReservationRequest releases a reservation
type CancelReservationRequest struct {
	ReservationID uuid.UUID `json:"reservation_id" validate:"required"`
	Reason        string    `json:"reason" validate:"max=500"`
}

// ExtendReservationRequest moves a reservation deadline
type ExtendReservationRequest struct {
	ReservationID uuid.UUID `json:"reservation_id" validate:"required"`
	ExpiresAt     time.Time `json:"expires_at" validate:"required"`
}

// CreateLocationRequest creates a location
type CreateLocationRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Code         string `json:"code" validate:"required,max=50"`
	LocationType string `json:"location_type" validate:"required,oneof=WAREHOUSE STORE FROZEN_STORAGE COLD_STORAGE DRY_STORAGE QUARANTINE PRODUCTION DAMAGED"`
	Description  string `json:"description" validate:"max=500"`
}

// SetThresholdsRequest replaces the thresholds of a product at a location
type SetThresholdsRequest struct {
	LocationID  uuid.UUID        `json:"location_id" validate:"required"`
	ProductID   uuid.UUID        `json:"product_id" validate:"required"`
	Unit        string           `json:"unit" validate:"required,max=20"`
	Minimum     *decimal.Decimal `json:"minimum"`
	Maximum     *decimal.Decimal `json:"maximum"`
	Reorder     *decimal.Decimal `json:"reorder"`
	SafetyStock *decimal.Decimal `json:"safety_stock"`
}

// Thresholds converts the request into domain thresholds in the request unit
func (r SetThresholdsRequest) Thresholds() inventory.Thresholds {
	q := func(v *decimal.Decimal) *valueobject.StockQuantity {
		if v == nil {
			return nil
		}
		sq := valueobject.NewStockQuantity(*v, r.Unit)
		return &sq
	}
	return inventory.Thresholds{
		Minimum:     q(r.Minimum),
		Maximum:     q(r.Maximum),
		Reorder:     q(r.Reorder),
		SafetyStock: q(r.SafetyStock),
	}
}

// StockLevel is the read model of one location+product key
type StockLevel struct {
	LocationID uuid.UUID                 `json:"location_id"`
	ProductID  uuid.UUID                 `json:"product_id"`
	OnHand     valueobject.StockQuantity `json:"on_hand"`
	Reserved   valueobject.StockQuantity `json:"reserved"`
	Available  valueobject.StockQuantity `json:"available"`
	AsOf       time.Time                 `json:"as_of"`
}

// Key returns the stock key of the level
func (l *StockLevel) Key() inventory.StockKey {
	return inventory.StockKey{LocationID: l.LocationID, ProductID: l.ProductID}
}

// StockAlert is a threshold breach detected for a key
type StockAlert struct {
	LocationID   uuid.UUID                 `json:"location_id"`
	LocationCode string                    `json:"location_code"`
	ProductID    uuid.UUID                 `json:"product_id"`
	AlertType    inventory.AlertType       `json:"alert_type"`
	Available    valueobject.StockQuantity `json:"available"`
	DetectedAt   time.Time                 `json:"detected_at"`
}
