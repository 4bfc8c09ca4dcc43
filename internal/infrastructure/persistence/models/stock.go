package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockMovementModel is the persistence model for ledger entries.
// Rows are inserted once; only the cost columns are ever updated.
type StockMovementModel struct {
	AggregateModel
	ProductID            uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_location_product,priority:2"`
	LocationID           uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_location_product,priority:1"`
	MovementType         string           `gorm:"type:varchar(20);not null;index"`
	Quantity             decimal.Decimal  `gorm:"type:numeric;not null"`
	Unit                 string           `gorm:"type:varchar(20);not null"`
	UnitCost             *decimal.Decimal `gorm:"type:numeric"`
	TotalCost            *decimal.Decimal `gorm:"type:numeric"`
	Currency             string           `gorm:"type:varchar(3)"`
	Reference            string           `gorm:"type:varchar(100);index"`
	Reason               string           `gorm:"type:varchar(500)"`
	MovementDate         time.Time        `gorm:"not null;index"`
	UserID               uuid.UUID        `gorm:"type:uuid;not null"`
	PurchaseOrderID      *uuid.UUID       `gorm:"type:uuid;index"`
	ReservationID        *uuid.UUID       `gorm:"type:uuid;index"`
	TransferToLocationID *uuid.UUID       `gorm:"type:uuid;index:idx_movement_transfer_to_product,priority:1"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	sm := &inventory.StockMovement{
		BaseAggregateRoot:    m.ToAggregateRoot(),
		ProductID:            m.ProductID,
		LocationID:           m.LocationID,
		MovementType:         inventory.MovementType(m.MovementType),
		Quantity:             valueobject.NewStockQuantity(m.Quantity, m.Unit),
		Reference:            m.Reference,
		Reason:               m.Reason,
		MovementDate:         m.MovementDate,
		UserID:               m.UserID,
		PurchaseOrderID:      m.PurchaseOrderID,
		ReservationID:        m.ReservationID,
		TransferToLocationID: m.TransferToLocationID,
	}
	if m.UnitCost != nil && m.Currency != "" {
		if cost, err := valueobject.NewUnitCost(*m.UnitCost, valueobject.Currency(m.Currency)); err == nil {
			total := cost.CalculateTotal(sm.Quantity)
			sm.UnitCost = &cost
			sm.TotalCost = &total
		}
	}
	return sm
}

// FromDomain populates the persistence model from a domain StockMovement.
func (m *StockMovementModel) FromDomain(sm *inventory.StockMovement) {
	m.FromDomainAggregateRoot(sm.BaseAggregateRoot)
	m.ProductID = sm.ProductID
	m.LocationID = sm.LocationID
	m.MovementType = string(sm.MovementType)
	m.Quantity = sm.Quantity.Value()
	m.Unit = sm.Quantity.Unit()
	m.UnitCost = nil
	m.TotalCost = nil
	m.Currency = ""
	if sm.UnitCost != nil {
		cost := sm.UnitCost.Amount()
		m.UnitCost = &cost
		m.Currency = string(sm.UnitCost.Currency())
	}
	if sm.TotalCost != nil {
		total := sm.TotalCost.Amount()
		m.TotalCost = &total
	}
	m.Reference = sm.Reference
	m.Reason = sm.Reason
	m.MovementDate = sm.MovementDate
	m.UserID = sm.UserID
	m.PurchaseOrderID = sm.PurchaseOrderID
	m.ReservationID = sm.ReservationID
	m.TransferToLocationID = sm.TransferToLocationID
}

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(sm *inventory.StockMovement) *StockMovementModel {
	m := &StockMovementModel{}
	m.FromDomain(sm)
	return m
}

// StockReservationModel is the persistence model for the StockReservation aggregate root.
type StockReservationModel struct {
	AggregateModel
	ProductID          uuid.UUID        `gorm:"type:uuid;not null;index:idx_reservation_key_status,priority:2"`
	LocationID         uuid.UUID        `gorm:"type:uuid;not null;index:idx_reservation_key_status,priority:1"`
	ReservedQuantity   decimal.Decimal  `gorm:"type:numeric;not null"`
	ConfirmedQuantity  *decimal.Decimal `gorm:"type:numeric"`
	Unit               string           `gorm:"type:varchar(20);not null"`
	Status             string           `gorm:"type:varchar(20);not null;index:idx_reservation_key_status,priority:3;index:idx_reservation_status_expiry,priority:1"`
	Reference          string           `gorm:"type:varchar(100)"`
	ExpirationDate     time.Time        `gorm:"not null;index:idx_reservation_status_expiry,priority:2"`
	UserID             uuid.UUID        `gorm:"type:uuid;not null"`
	OrderID            *uuid.UUID       `gorm:"type:uuid;index"`
	CustomerID         *uuid.UUID       `gorm:"type:uuid"`
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	ExpiredAt          *time.Time
	CancellationReason string           `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (StockReservationModel) TableName() string {
	return "stock_reservations"
}

// ToDomain converts the persistence model to a domain StockReservation.
func (m *StockReservationModel) ToDomain() *inventory.StockReservation {
	return &inventory.StockReservation{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		ProductID:          m.ProductID,
		LocationID:         m.LocationID,
		ReservedQuantity:   valueobject.NewStockQuantity(m.ReservedQuantity, m.Unit),
		ConfirmedQuantity:  quantityPtr(m.ConfirmedQuantity, m.Unit),
		Status:             inventory.ReservationStatus(m.Status),
		Reference:          m.Reference,
		ExpirationDate:     m.ExpirationDate,
		UserID:             m.UserID,
		OrderID:            m.OrderID,
		CustomerID:         m.CustomerID,
		ConfirmedAt:        m.ConfirmedAt,
		CancelledAt:        m.CancelledAt,
		ExpiredAt:          m.ExpiredAt,
		CancellationReason: m.CancellationReason,
	}
}

// FromDomain populates the persistence model from a domain StockReservation.
func (m *StockReservationModel) FromDomain(r *inventory.StockReservation) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ProductID = r.ProductID
	m.LocationID = r.LocationID
	m.ReservedQuantity = r.ReservedQuantity.Value()
	m.ConfirmedQuantity = quantityValue(r.ConfirmedQuantity)
	m.Unit = r.ReservedQuantity.Unit()
	m.Status = string(r.Status)
	m.Reference = r.Reference
	m.ExpirationDate = r.ExpirationDate
	m.UserID = r.UserID
	m.OrderID = r.OrderID
	m.CustomerID = r.CustomerID
	m.ConfirmedAt = r.ConfirmedAt
	m.CancelledAt = r.CancelledAt
	m.ExpiredAt = r.ExpiredAt
	m.CancellationReason = r.CancellationReason
}

// StockReservationModelFromDomain creates a new persistence model from a domain StockReservation.
func StockReservationModelFromDomain(r *inventory.StockReservation) *StockReservationModel {
	m := &StockReservationModel{}
	m.FromDomain(r)
	return m
}

// StockBalanceModel is the materialized on-hand of one location+product.
// Its row is the lock taken before appending movements or admitting reservations.
type StockBalanceModel struct {
	LocationID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID  uuid.UUID       `gorm:"type:uuid;primaryKey;index"`
	OnHand     decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Unit       string          `gorm:"type:varchar(20);not null"`
	Version    int             `gorm:"not null;default:1"`
	UpdatedAt  time.Time       `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (StockBalanceModel) TableName() string {
	return "stock_balances"
}

// ToDomain converts the persistence model to a domain StockBalance.
func (m *StockBalanceModel) ToDomain() *inventory.StockBalance {
	return &inventory.StockBalance{
		LocationID: m.LocationID,
		ProductID:  m.ProductID,
		OnHand:     valueobject.NewStockQuantity(m.OnHand, m.Unit),
		Version:    m.Version,
		UpdatedAt:  m.UpdatedAt,
	}
}

// StockBalanceModelFromDomain creates a persistence model from a domain StockBalance.
func StockBalanceModelFromDomain(b *inventory.StockBalance) *StockBalanceModel {
	return &StockBalanceModel{
		LocationID: b.LocationID,
		ProductID:  b.ProductID,
		OnHand:     b.OnHand.Value(),
		Unit:       b.OnHand.Unit(),
		Version:    b.Version,
		UpdatedAt:  b.UpdatedAt,
	}
}
