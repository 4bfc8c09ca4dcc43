package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeLocationCreated           = "LocationCreated"
	EventTypeLocationDeactivated       = "LocationDeactivated"
	EventTypeLocationReactivated       = "LocationReactivated"
	EventTypeLocationThresholdsChanged = "LocationThresholdsChanged"
)

// LocationCreatedEvent is raised when a location is created
type LocationCreatedEvent struct {
	shared.BaseDomainEvent
	LocationID   uuid.UUID    `json:"location_id"`
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	LocationType LocationType `json:"location_type"`
}

// NewLocationCreatedEvent creates a new LocationCreatedEvent
func NewLocationCreatedEvent(l *Location, now time.Time) *LocationCreatedEvent {
	return &LocationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLocationCreated, AggregateTypeLocation, l.ID, now),
		LocationID:      l.ID,
		Code:            l.Code,
		Name:            l.Name,
		LocationType:    l.LocationType,
	}
}

// LocationDeactivatedEvent is raised when a location is taken out of service
type LocationDeactivatedEvent struct {
	shared.BaseDomainEvent
	LocationID uuid.UUID `json:"location_id"`
	Code       string    `json:"code"`
	Reason     string    `json:"reason"`
}

// NewLocationDeactivatedEvent creates a new LocationDeactivatedEvent
func NewLocationDeactivatedEvent(l *Location, reason string, now time.Time) *LocationDeactivatedEvent {
	return &LocationDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLocationDeactivated, AggregateTypeLocation, l.ID, now),
		LocationID:      l.ID,
		Code:            l.Code,
		Reason:          reason,
	}
}

// LocationReactivatedEvent is raised when a location returns to service
type LocationReactivatedEvent struct {
	shared.BaseDomainEvent
	LocationID uuid.UUID `json:"location_id"`
	Code       string    `json:"code"`
}

// NewLocationReactivatedEvent creates a new LocationReactivatedEvent
func NewLocationReactivatedEvent(l *Location, now time.Time) *LocationReactivatedEvent {
	return &LocationReactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLocationReactivated, AggregateTypeLocation, l.ID, now),
		LocationID:      l.ID,
		Code:            l.Code,
	}
}

// LocationThresholdsChangedEvent is raised when a product's thresholds are set
type LocationThresholdsChangedEvent struct {
	shared.BaseDomainEvent
	LocationID       uuid.UUID                  `json:"location_id"`
	ProductID        uuid.UUID                  `json:"product_id"`
	MinimumLevel     *valueobject.StockQuantity `json:"minimum_level,omitempty"`
	MaximumLevel     *valueobject.StockQuantity `json:"maximum_level,omitempty"`
	ReorderLevel     *valueobject.StockQuantity `json:"reorder_level,omitempty"`
	SafetyStockLevel *valueobject.StockQuantity `json:"safety_stock_level,omitempty"`
}

// NewLocationThresholdsChangedEvent creates a new LocationThresholdsChangedEvent
func NewLocationThresholdsChangedEvent(l *Location, level *LocationStockLevel, now time.Time) *LocationThresholdsChangedEvent {
	t := level.Thresholds()
	return &LocationThresholdsChangedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeLocationThresholdsChanged, AggregateTypeLocation, l.ID, now),
		LocationID:       l.ID,
		ProductID:        level.ProductID,
		MinimumLevel:     t.Minimum,
		MaximumLevel:     t.Maximum,
		ReorderLevel:     t.Reorder,
		SafetyStockLevel: t.SafetyStock,
	}
}
