package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeStockReservationCreated   = "StockReservationCreated"
	EventTypeStockReservationConfirmed = "StockReservationConfirmed"
	EventTypeStockReservationCancelled = "StockReservationCancelled"
	EventTypeStockReservationExpired   = "StockReservationExpired"
	EventTypeStockReservationExtended  = "StockReservationExtended"
)

// ReservationEventData is the payload shared by all reservation events
type ReservationEventData struct {
	ReservationID    uuid.UUID                 `json:"reservation_id"`
	ProductID        uuid.UUID                 `json:"product_id"`
	LocationID       uuid.UUID                 `json:"location_id"`
	ReservedQuantity valueobject.StockQuantity `json:"reserved_quantity"`
	Reference        string                    `json:"reference,omitempty"`
	OrderID          *uuid.UUID                `json:"order_id,omitempty"`
}

func reservationData(r *StockReservation) ReservationEventData {
	return ReservationEventData{
		ReservationID:    r.ID,
		ProductID:        r.ProductID,
		LocationID:       r.LocationID,
		ReservedQuantity: r.ReservedQuantity,
		Reference:        r.Reference,
		OrderID:          r.OrderID,
	}
}

// StockReservationCreatedEvent is raised when stock is put on hold
type StockReservationCreatedEvent struct {
	shared.BaseDomainEvent
	ReservationEventData
	ExpirationDate time.Time `json:"expiration_date"`
}

// NewStockReservationCreatedEvent creates a new StockReservationCreatedEvent
func NewStockReservationCreatedEvent(r *StockReservation, now time.Time) *StockReservationCreatedEvent {
	return &StockReservationCreatedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockReservationCreated, AggregateTypeStockReservation, r.ID, now),
		ReservationEventData: reservationData(r),
		ExpirationDate:       r.ExpirationDate,
	}
}

// StockReservationConfirmedEvent is raised when a hold is turned into a fulfilment
type StockReservationConfirmedEvent struct {
	shared.BaseDomainEvent
	ReservationEventData
	ConfirmedQuantity valueobject.StockQuantity `json:"confirmed_quantity"`
}

// NewStockReservationConfirmedEvent creates a new StockReservationConfirmedEvent
func NewStockReservationConfirmedEvent(r *StockReservation, now time.Time) *StockReservationConfirmedEvent {
	return &StockReservationConfirmedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockReservationConfirmed, AggregateTypeStockReservation, r.ID, now),
		ReservationEventData: reservationData(r),
		ConfirmedQuantity:    *r.ConfirmedQuantity,
	}
}

// StockReservationCancelledEvent is raised when a hold is released before its deadline
type StockReservationCancelledEvent struct {
	shared.BaseDomainEvent
	ReservationEventData
	Reason string `json:"reason,omitempty"`
}

// NewStockReservationCancelledEvent creates a new StockReservationCancelledEvent
func NewStockReservationCancelledEvent(r *StockReservation, now time.Time) *StockReservationCancelledEvent {
	return &StockReservationCancelledEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockReservationCancelled, AggregateTypeStockReservation, r.ID, now),
		ReservationEventData: reservationData(r),
		Reason:               r.CancellationReason,
	}
}

// StockReservationExpiredEvent is raised when a hold lapses
type StockReservationExpiredEvent struct {
	shared.BaseDomainEvent
	ReservationEventData
	ExpirationDate time.Time `json:"expiration_date"`
}

// NewStockReservationExpiredEvent creates a new StockReservationExpiredEvent
func NewStockReservationExpiredEvent(r *StockReservation, now time.Time) *StockReservationExpiredEvent {
	return &StockReservationExpiredEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockReservationExpired, AggregateTypeStockReservation, r.ID, now),
		ReservationEventData: reservationData(r),
		ExpirationDate:       r.ExpirationDate,
	}
}

// StockReservationExtendedEvent is raised when the deadline moves later
type StockReservationExtendedEvent struct {
	shared.BaseDomainEvent
	ReservationEventData
	PreviousExpiration time.Time `json:"previous_expiration"`
	ExpirationDate     time.Time `json:"expiration_date"`
}

// NewStockReservationExtendedEvent creates a new StockReservationExtendedEvent
func NewStockReservationExtendedEvent(r *StockReservation, previous, now time.Time) *StockReservationExtendedEvent {
	return &StockReservationExtendedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypeStockReservationExtended, AggregateTypeStockReservation, r.ID, now),
		ReservationEventData: reservationData(r),
		PreviousExpiration:   previous,
		ExpirationDate:       r.ExpirationDate,
	}
}

// ReservationKey extracts the stock key from any reservation event
func ReservationKey(event shared.DomainEvent) (StockKey, bool) {
	var data ReservationEventData
	switch e := event.(type) {
	case *StockReservationCreatedEvent:
		data = e.ReservationEventData
	case *StockReservationConfirmedEvent:
		data = e.ReservationEventData
	case *StockReservationCancelledEvent:
		data = e.ReservationEventData
	case *StockReservationExpiredEvent:
		data = e.ReservationEventData
	case *StockReservationExtendedEvent:
		data = e.ReservationEventData
	default:
		return StockKey{}, false
	}
	return StockKey{LocationID: data.LocationID, ProductID: data.ProductID}, true
}
