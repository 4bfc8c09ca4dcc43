package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeStockMovementOccurred = "StockMovementOccurred"
)

// StockMovementOccurredEvent is raised when a movement is appended to the ledger
type StockMovementOccurredEvent struct {
	shared.BaseDomainEvent
	MovementID           uuid.UUID                 `json:"movement_id"`
	ProductID            uuid.UUID                 `json:"product_id"`
	LocationID           uuid.UUID                 `json:"location_id"`
	MovementType         MovementType              `json:"movement_type"`
	Quantity             valueobject.StockQuantity `json:"quantity"`
	Impact               valueobject.StockQuantity `json:"impact"`
	Reference            string                    `json:"reference,omitempty"`
	Reason               string                    `json:"reason,omitempty"`
	MovementDate         time.Time                 `json:"movement_date"`
	TransferToLocationID *uuid.UUID                `json:"transfer_to_location_id,omitempty"`
}

// NewStockMovementOccurredEvent creates a new StockMovementOccurredEvent
func NewStockMovementOccurredEvent(m *StockMovement) *StockMovementOccurredEvent {
	return &StockMovementOccurredEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockMovementOccurred, AggregateTypeStockMovement, m.ID, m.MovementDate),
		MovementID:           m.ID,
		ProductID:            m.ProductID,
		LocationID:           m.LocationID,
		MovementType:         m.MovementType,
		Quantity:             m.Quantity,
		Impact:               m.GetStockImpact(),
		Reference:            m.Reference,
		Reason:               m.Reason,
		MovementDate:         m.MovementDate,
		TransferToLocationID: m.TransferToLocationID,
	}
}
