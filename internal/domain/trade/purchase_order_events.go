package trade

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypePurchaseOrder = "PurchaseOrder"

// Event type constants
const (
	EventTypePurchaseOrderCreated   = "PurchaseOrderCreated"
	EventTypePurchaseOrderConfirmed = "PurchaseOrderConfirmed"
	EventTypePurchaseOrderSent      = "PurchaseOrderSent"
	EventTypePurchaseOrderReceived  = "PurchaseOrderReceived"
	EventTypePurchaseOrderCancelled = "PurchaseOrderCancelled"
)

// PurchaseOrderCreatedEvent is raised when a new purchase order is created
type PurchaseOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID              uuid.UUID `json:"order_id"`
	OrderNumber          string    `json:"order_number"`
	SupplierID           uuid.UUID `json:"supplier_id"`
	UserID               uuid.UUID `json:"user_id"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

// NewPurchaseOrderCreatedEvent creates a new PurchaseOrderCreatedEvent
func NewPurchaseOrderCreatedEvent(order *PurchaseOrder, now time.Time) *PurchaseOrderCreatedEvent {
	return &PurchaseOrderCreatedEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePurchaseOrderCreated, AggregateTypePurchaseOrder, order.ID, now),
		OrderID:              order.ID,
		OrderNumber:          order.OrderNumber,
		SupplierID:           order.SupplierID,
		UserID:               order.UserID,
		ExpectedDeliveryDate: order.ExpectedDeliveryDate,
	}
}

// PurchaseOrderLineInfo represents line information for events
type PurchaseOrderLineInfo struct {
	LineID           uuid.UUID                 `json:"line_id"`
	ProductID        uuid.UUID                 `json:"product_id"`
	OrderedQuantity  valueobject.StockQuantity `json:"ordered_quantity"`
	ReceivedQuantity valueobject.StockQuantity `json:"received_quantity"`
	UnitCost         valueobject.UnitCost      `json:"unit_cost"`
	TotalCost        valueobject.Money         `json:"total_cost"`
}

func lineInfos(order *PurchaseOrder) []PurchaseOrderLineInfo {
	infos := make([]PurchaseOrderLineInfo, len(order.Lines))
	for i, line := range order.Lines {
		infos[i] = PurchaseOrderLineInfo{
			LineID:           line.ID,
			ProductID:        line.ProductID,
			OrderedQuantity:  line.OrderedQuantity,
			ReceivedQuantity: line.ReceivedQuantity,
			UnitCost:         line.UnitCost,
			TotalCost:        line.TotalCost,
		}
	}
	return infos
}

// PurchaseOrderConfirmedEvent is raised when a purchase order is confirmed
type PurchaseOrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID               `json:"order_id"`
	OrderNumber string                  `json:"order_number"`
	SupplierID  uuid.UUID               `json:"supplier_id"`
	Lines       []PurchaseOrderLineInfo `json:"lines"`
	TotalAmount valueobject.Money       `json:"total_amount"`
}

// NewPurchaseOrderConfirmedEvent creates a new PurchaseOrderConfirmedEvent
func NewPurchaseOrderConfirmedEvent(order *PurchaseOrder, now time.Time) *PurchaseOrderConfirmedEvent {
	return &PurchaseOrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderConfirmed, AggregateTypePurchaseOrder, order.ID, now),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		SupplierID:      order.SupplierID,
		Lines:           lineInfos(order),
		TotalAmount:     order.TotalAmount,
	}
}

// PurchaseOrderSentEvent is raised when a purchase order is sent to the supplier
type PurchaseOrderSentEvent struct {
	shared.BaseDomainEvent
	OrderID              uuid.UUID `json:"order_id"`
	OrderNumber          string    `json:"order_number"`
	SupplierID           uuid.UUID `json:"supplier_id"`
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

// NewPurchaseOrderSentEvent creates a new PurchaseOrderSentEvent
func NewPurchaseOrderSentEvent(order *PurchaseOrder, now time.Time) *PurchaseOrderSentEvent {
	return &PurchaseOrderSentEvent{
		BaseDomainEvent:      shared.NewBaseDomainEvent(EventTypePurchaseOrderSent, AggregateTypePurchaseOrder, order.ID, now),
		OrderID:              order.ID,
		OrderNumber:          order.OrderNumber,
		SupplierID:           order.SupplierID,
		ExpectedDeliveryDate: order.ExpectedDeliveryDate,
	}
}

// PurchaseOrderReceivedEvent is raised for every receiving operation.
// Complete is set once the order reached RECEIVED.
type PurchaseOrderReceivedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID     `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	SupplierID  uuid.UUID     `json:"supplier_id"`
	ReceivedBy  uuid.UUID     `json:"received_by"`
	Lines       []ReceiptLine `json:"lines"`
	Complete    bool          `json:"complete"`
}

// NewPurchaseOrderReceivedEvent creates a new PurchaseOrderReceivedEvent
func NewPurchaseOrderReceivedEvent(order *PurchaseOrder, receipt []ReceiptLine, now time.Time) *PurchaseOrderReceivedEvent {
	evt := &PurchaseOrderReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderReceived, AggregateTypePurchaseOrder, order.ID, now),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		SupplierID:      order.SupplierID,
		Lines:           receipt,
		Complete:        order.Status == PurchaseOrderStatusReceived,
	}
	if order.ReceivedBy != nil {
		evt.ReceivedBy = *order.ReceivedBy
	}
	return evt
}

// PurchaseOrderCancelledEvent is raised when a purchase order is cancelled.
// Lines carries received quantities so consumers can reconcile stock that stays on hand.
type PurchaseOrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID               `json:"order_id"`
	OrderNumber    string                  `json:"order_number"`
	SupplierID     uuid.UUID               `json:"supplier_id"`
	PreviousStatus PurchaseOrderStatus     `json:"previous_status"`
	Reason         string                  `json:"reason"`
	Lines          []PurchaseOrderLineInfo `json:"lines"`
	HadReceipts    bool                    `json:"had_receipts"`
}

// NewPurchaseOrderCancelledEvent creates a new PurchaseOrderCancelledEvent
func NewPurchaseOrderCancelledEvent(order *PurchaseOrder, previous PurchaseOrderStatus, now time.Time) *PurchaseOrderCancelledEvent {
	return &PurchaseOrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCancelled, AggregateTypePurchaseOrder, order.ID, now),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		SupplierID:      order.SupplierID,
		PreviousStatus:  previous,
		Reason:          order.CancellationReason,
		Lines:           lineInfos(order),
		HadReceipts:     order.HasReceivedAnyGoods(),
	}
}
