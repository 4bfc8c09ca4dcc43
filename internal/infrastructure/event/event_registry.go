package event

import (
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/trade"
)

// RegisterAllEvents registers every domain event type with the serializer.
// The OutboxProcessor can only deserialize types registered here.
func RegisterAllEvents(serializer *EventSerializer) {
	// Locations
	serializer.Register(inventory.EventTypeLocationCreated, &inventory.LocationCreatedEvent{})
	serializer.Register(inventory.EventTypeLocationDeactivated, &inventory.LocationDeactivatedEvent{})
	serializer.Register(inventory.EventTypeLocationReactivated, &inventory.LocationReactivatedEvent{})
	serializer.Register(inventory.EventTypeLocationThresholdsChanged, &inventory.LocationThresholdsChangedEvent{})

	// Ledger
	serializer.Register(inventory.EventTypeStockMovementOccurred, &inventory.StockMovementOccurredEvent{})

	// Reservations
	serializer.Register(inventory.EventTypeStockReservationCreated, &inventory.StockReservationCreatedEvent{})
	serializer.Register(inventory.EventTypeStockReservationConfirmed, &inventory.StockReservationConfirmedEvent{})
	serializer.Register(inventory.EventTypeStockReservationCancelled, &inventory.StockReservationCancelledEvent{})
	serializer.Register(inventory.EventTypeStockReservationExpired, &inventory.StockReservationExpiredEvent{})
	serializer.Register(inventory.EventTypeStockReservationExtended, &inventory.StockReservationExtendedEvent{})

	// Purchase orders
	serializer.Register(trade.EventTypePurchaseOrderCreated, &trade.PurchaseOrderCreatedEvent{})
	serializer.Register(trade.EventTypePurchaseOrderConfirmed, &trade.PurchaseOrderConfirmedEvent{})
	serializer.Register(trade.EventTypePurchaseOrderSent, &trade.PurchaseOrderSentEvent{})
	serializer.Register(trade.EventTypePurchaseOrderReceived, &trade.PurchaseOrderReceivedEvent{})
	serializer.Register(trade.EventTypePurchaseOrderCancelled, &trade.PurchaseOrderCancelledEvent{})
}

// NewRegisteredSerializer returns a serializer with every domain event registered
func NewRegisteredSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterAllEvents(s)
	return s
}
