package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/erp/stockledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderModel is the persistence model for the PurchaseOrder aggregate root.
type PurchaseOrderModel struct {
	AggregateModel
	OrderNumber          string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserID               uuid.UUID       `gorm:"type:uuid;not null"`
	Status               string          `gorm:"type:varchar(30);not null;default:'DRAFT';index:idx_po_status_expected,priority:1"`
	OrderDate            time.Time       `gorm:"not null"`
	ExpectedDeliveryDate time.Time       `gorm:"not null;index:idx_po_status_expected,priority:2"`
	ActualDeliveryDate   *time.Time
	Currency             string          `gorm:"type:varchar(3)"`
	TotalAmount          decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	ReceivedBy           *uuid.UUID      `gorm:"type:uuid"`
	ConfirmedAt          *time.Time
	SentAt               *time.Time
	CancelledAt          *time.Time
	CancellationReason   string          `gorm:"type:varchar(500)"`
	// Associations
	Lines []PurchaseOrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder.
func (m *PurchaseOrderModel) ToDomain() *trade.PurchaseOrder {
	currency := valueobject.Currency(m.Currency)
	total := valueobject.Zero(currency)
	if currency != "" {
		total, _ = valueobject.NewMoney(m.TotalAmount, currency)
	}
	o := &trade.PurchaseOrder{
		BaseAggregateRoot:    m.ToAggregateRoot(),
		OrderNumber:          m.OrderNumber,
		SupplierID:           m.SupplierID,
		UserID:               m.UserID,
		Status:               trade.PurchaseOrderStatus(m.Status),
		OrderDate:            m.OrderDate,
		ExpectedDeliveryDate: m.ExpectedDeliveryDate,
		ActualDeliveryDate:   m.ActualDeliveryDate,
		Currency:             currency,
		TotalAmount:          total,
		Lines:                make([]trade.PurchaseOrderLine, len(m.Lines)),
		ReceivedBy:           m.ReceivedBy,
		ConfirmedAt:          m.ConfirmedAt,
		SentAt:               m.SentAt,
		CancelledAt:          m.CancelledAt,
		CancellationReason:   m.CancellationReason,
	}
	for i := range m.Lines {
		o.Lines[i] = *m.Lines[i].ToDomain()
	}
	return o
}

// FromDomain populates the persistence model from a domain PurchaseOrder.
func (m *PurchaseOrderModel) FromDomain(o *trade.PurchaseOrder) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.SupplierID = o.SupplierID
	m.UserID = o.UserID
	m.Status = string(o.Status)
	m.OrderDate = o.OrderDate
	m.ExpectedDeliveryDate = o.ExpectedDeliveryDate
	m.ActualDeliveryDate = o.ActualDeliveryDate
	m.Currency = string(o.Currency)
	m.TotalAmount = o.TotalAmount.Amount()
	m.ReceivedBy = o.ReceivedBy
	m.ConfirmedAt = o.ConfirmedAt
	m.SentAt = o.SentAt
	m.CancelledAt = o.CancelledAt
	m.CancellationReason = o.CancellationReason
	m.Lines = make([]PurchaseOrderLineModel, len(o.Lines))
	for i := range o.Lines {
		m.Lines[i] = *PurchaseOrderLineModelFromDomain(&o.Lines[i])
	}
}

// PurchaseOrderModelFromDomain creates a new persistence model from a domain PurchaseOrder.
func PurchaseOrderModelFromDomain(o *trade.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{}
	m.FromDomain(o)
	return m
}

// PurchaseOrderLineModel is the persistence model for one product on a purchase order.
type PurchaseOrderLineModel struct {
	BaseModel
	OrderID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_po_line_order_product,priority:1"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_po_line_order_product,priority:2"`
	OrderedQuantity  decimal.Decimal `gorm:"type:numeric;not null"`
	ReceivedQuantity decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Unit             string          `gorm:"type:varchar(20);not null"`
	UnitCost         decimal.Decimal `gorm:"type:numeric;not null"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	TotalCost        decimal.Decimal `gorm:"type:numeric;not null"`
	Notes            string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PurchaseOrderLineModel) TableName() string {
	return "purchase_order_lines"
}

// ToDomain converts the persistence model to a domain PurchaseOrderLine.
func (m *PurchaseOrderLineModel) ToDomain() *trade.PurchaseOrderLine {
	currency := valueobject.Currency(m.Currency)
	cost, _ := valueobject.NewUnitCost(m.UnitCost, currency)
	total, _ := valueobject.NewMoney(m.TotalCost, currency)
	return &trade.PurchaseOrderLine{
		ID:               m.ID,
		OrderID:          m.OrderID,
		ProductID:        m.ProductID,
		OrderedQuantity:  valueobject.NewStockQuantity(m.OrderedQuantity, m.Unit),
		ReceivedQuantity: valueobject.NewStockQuantity(m.ReceivedQuantity, m.Unit),
		UnitCost:         cost,
		TotalCost:        total,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// PurchaseOrderLineModelFromDomain creates a persistence model from a domain PurchaseOrderLine.
func PurchaseOrderLineModelFromDomain(l *trade.PurchaseOrderLine) *PurchaseOrderLineModel {
	return &PurchaseOrderLineModel{
		BaseModel: BaseModel{
			ID:        l.ID,
			CreatedAt: l.CreatedAt,
			UpdatedAt: l.UpdatedAt,
		},
		OrderID:          l.OrderID,
		ProductID:        l.ProductID,
		OrderedQuantity:  l.OrderedQuantity.Value(),
		ReceivedQuantity: l.ReceivedQuantity.Value(),
		Unit:             l.OrderedQuantity.Unit(),
		UnitCost:         l.UnitCost.Amount(),
		Currency:         string(l.UnitCost.Currency()),
		TotalCost:        l.TotalCost.Amount(),
		Notes:            l.Notes,
	}
}
