package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Purchase Order DTOs ====================

// CreatePurchaseOrderRequest represents a request to create a purchase order
type CreatePurchaseOrderRequest struct {
	OrderNumber      string                   `json:"order_number" validate:"required,max=50"`
	SupplierID       uuid.UUID                `json:"supplier_id" validate:"required"`
	UserID           uuid.UUID                `json:"user_id" validate:"required"`
	ExpectedDelivery time.Time                `json:"expected_delivery" validate:"required"`
	Lines            []PurchaseOrderLineInput `json:"lines" validate:"dive"`
}

// PurchaseOrderLineInput represents a line in a create or add request
type PurchaseOrderLineInput struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit" validate:"required,max=20"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	Notes     string          `json:"notes" validate:"max=500"`
}

// UpdatePurchaseOrderLineRequest replaces the quantity and cost of a line
type UpdatePurchaseOrderLineRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit" validate:"required,max=20"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Currency  string          `json:"currency" validate:"required,len=3"`
}

// ReceiveRequest receives goods against an order into a location
type ReceiveRequest struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	UserID     uuid.UUID `json:"user_id" validate:"required"`
}

// ReceivePartiallyRequest receives the listed quantities per product
type ReceivePartiallyRequest struct {
	ReceiveRequest
	Quantities []ReceiveQuantity `json:"quantities" validate:"required,min=1,dive"`
}

// ReceiveQuantity is the quantity of one product in a partial receipt
type ReceiveQuantity struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit" validate:"required,max=20"`
}

// ReceiveResult reports the outcome of a receipt
type ReceiveResult struct {
	OrderID         uuid.UUID   `json:"order_id"`
	Status          string      `json:"status"`
	MovementIDs     []uuid.UUID `json:"movement_ids"`
	IsFullyReceived bool        `json:"is_fully_received"`
}
