package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocationModel is the persistence model for the Location aggregate root.
type LocationModel struct {
	AggregateModel
	Name                  string           `gorm:"type:varchar(200);not null"`
	Code                  string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	LocationType          string           `gorm:"type:varchar(30);not null;index"`
	Description           string           `gorm:"type:text"`
	IsActive              bool             `gorm:"not null;default:true;index"`
	DeactivatedAt         *time.Time
	DeactivationReason    string           `gorm:"type:varchar(500)"`
	Capacity              *decimal.Decimal `gorm:"type:numeric"`
	CapacityUnit          string           `gorm:"type:varchar(20)"`
	Temperature           *decimal.Decimal `gorm:"type:numeric"`
	TemperatureControlled bool             `gorm:"not null;default:false"`
	Humidity              *decimal.Decimal `gorm:"type:numeric"`
	HumidityControlled    bool             `gorm:"not null;default:false"`
	ParentLocationID      *uuid.UUID       `gorm:"type:uuid;index"`
	Zone                  string           `gorm:"type:varchar(50)"`
	Aisle                 string           `gorm:"type:varchar(50)"`
	Shelf                 string           `gorm:"type:varchar(50)"`
	Bin                   string           `gorm:"type:varchar(50)"`
	RequiresAuthorization bool             `gorm:"not null;default:false"`
	AccessLevel           string           `gorm:"type:varchar(20);not null"`
	AllowsPicking         bool             `gorm:"not null"`
	AllowsReceiving       bool             `gorm:"not null"`
	AllowsShipping        bool             `gorm:"not null"`
	Priority              int              `gorm:"not null;default:0"`
	// Associations
	StockLevels []LocationStockLevelModel `gorm:"foreignKey:LocationID;references:ID"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "locations"
}

// ToDomain converts the persistence model to a domain Location entity.
func (m *LocationModel) ToDomain() *inventory.Location {
	l := &inventory.Location{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		Name:               m.Name,
		Code:               m.Code,
		LocationType:       inventory.LocationType(m.LocationType),
		Description:        m.Description,
		IsActive:           m.IsActive,
		DeactivatedAt:      m.DeactivatedAt,
		DeactivationReason: m.DeactivationReason,
		Physical: inventory.PhysicalProperties{
			Capacity:              m.Capacity,
			CapacityUnit:          m.CapacityUnit,
			Temperature:           m.Temperature,
			TemperatureControlled: m.TemperatureControlled,
			Humidity:              m.Humidity,
			HumidityControlled:    m.HumidityControlled,
		},
		Hierarchy: inventory.Hierarchy{
			ParentLocationID: m.ParentLocationID,
			Zone:             m.Zone,
			Aisle:            m.Aisle,
			Shelf:            m.Shelf,
			Bin:              m.Bin,
		},
		Access: inventory.AccessSettings{
			RequiresAuthorization: m.RequiresAuthorization,
			AccessLevel:           inventory.AccessLevel(m.AccessLevel),
			AllowsPicking:         m.AllowsPicking,
			AllowsReceiving:       m.AllowsReceiving,
			AllowsShipping:        m.AllowsShipping,
			Priority:              m.Priority,
		},
		StockLevels: make([]inventory.LocationStockLevel, len(m.StockLevels)),
	}
	for i := range m.StockLevels {
		l.StockLevels[i] = *m.StockLevels[i].ToDomain()
	}
	return l
}

// FromDomain populates the persistence model from a domain Location entity.
func (m *LocationModel) FromDomain(l *inventory.Location) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.Name = l.Name
	m.Code = l.Code
	m.LocationType = string(l.LocationType)
	m.Description = l.Description
	m.IsActive = l.IsActive
	m.DeactivatedAt = l.DeactivatedAt
	m.DeactivationReason = l.DeactivationReason
	m.Capacity = l.Physical.Capacity
	m.CapacityUnit = l.Physical.CapacityUnit
	m.Temperature = l.Physical.Temperature
	m.TemperatureControlled = l.Physical.TemperatureControlled
	m.Humidity = l.Physical.Humidity
	m.HumidityControlled = l.Physical.HumidityControlled
	m.ParentLocationID = l.Hierarchy.ParentLocationID
	m.Zone = l.Hierarchy.Zone
	m.Aisle = l.Hierarchy.Aisle
	m.Shelf = l.Hierarchy.Shelf
	m.Bin = l.Hierarchy.Bin
	m.RequiresAuthorization = l.Access.RequiresAuthorization
	m.AccessLevel = string(l.Access.AccessLevel)
	m.AllowsPicking = l.Access.AllowsPicking
	m.AllowsReceiving = l.Access.AllowsReceiving
	m.AllowsShipping = l.Access.AllowsShipping
	m.Priority = l.Access.Priority
	m.StockLevels = make([]LocationStockLevelModel, len(l.StockLevels))
	for i := range l.StockLevels {
		m.StockLevels[i] = *LocationStockLevelModelFromDomain(&l.StockLevels[i])
	}
}

// LocationModelFromDomain creates a new persistence model from a domain Location entity.
func LocationModelFromDomain(l *inventory.Location) *LocationModel {
	m := &LocationModel{}
	m.FromDomain(l)
	return m
}

// LocationStockLevelModel stores the thresholds of one product at one location.
// All thresholds share Unit.
type LocationStockLevelModel struct {
	LocationID       uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ProductID        uuid.UUID        `gorm:"type:uuid;primaryKey;index"`
	Unit             string           `gorm:"type:varchar(20);not null"`
	MinimumLevel     *decimal.Decimal `gorm:"type:numeric"`
	MaximumLevel     *decimal.Decimal `gorm:"type:numeric"`
	ReorderLevel     *decimal.Decimal `gorm:"type:numeric"`
	SafetyStockLevel *decimal.Decimal `gorm:"type:numeric"`
	CreatedAt        time.Time        `gorm:"not null;autoCreateTime:false"`
	UpdatedAt        time.Time        `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for GORM
func (LocationStockLevelModel) TableName() string {
	return "location_stock_levels"
}

// ToDomain converts the persistence model to a domain LocationStockLevel.
func (m *LocationStockLevelModel) ToDomain() *inventory.LocationStockLevel {
	return &inventory.LocationStockLevel{
		LocationID:       m.LocationID,
		ProductID:        m.ProductID,
		MinimumLevel:     quantityPtr(m.MinimumLevel, m.Unit),
		MaximumLevel:     quantityPtr(m.MaximumLevel, m.Unit),
		ReorderLevel:     quantityPtr(m.ReorderLevel, m.Unit),
		SafetyStockLevel: quantityPtr(m.SafetyStockLevel, m.Unit),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// LocationStockLevelModelFromDomain creates a persistence model from a domain LocationStockLevel.
func LocationStockLevelModelFromDomain(s *inventory.LocationStockLevel) *LocationStockLevelModel {
	return &LocationStockLevelModel{
		LocationID:       s.LocationID,
		ProductID:        s.ProductID,
		Unit:             s.Unit(),
		MinimumLevel:     quantityValue(s.MinimumLevel),
		MaximumLevel:     quantityValue(s.MaximumLevel),
		ReorderLevel:     quantityValue(s.ReorderLevel),
		SafetyStockLevel: quantityValue(s.SafetyStockLevel),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func quantityPtr(v *decimal.Decimal, unit string) *valueobject.StockQuantity {
	if v == nil {
		return nil
	}
	q := valueobject.NewStockQuantity(*v, unit)
	return &q
}

func quantityValue(q *valueobject.StockQuantity) *decimal.Decimal {
	if q == nil {
		return nil
	}
	v := q.Value()
	return &v
}
