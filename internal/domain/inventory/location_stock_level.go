package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AlertType is the threshold condition raised for a stock level
type AlertType string

const (
	AlertTypeStockOut     AlertType = "STOCK_OUT"
	AlertTypeLowStock     AlertType = "LOW_STOCK"
	AlertTypeOverstock    AlertType = "OVERSTOCK"
	AlertTypeReorderPoint AlertType = "REORDER_POINT"
	AlertTypeSafetyStock  AlertType = "SAFETY_STOCK"
)

// IsValid checks if the alert type is known
func (a AlertType) IsValid() bool {
	switch a {
	case AlertTypeStockOut, AlertTypeLowStock, AlertTypeOverstock, AlertTypeReorderPoint, AlertTypeSafetyStock:
		return true
	}
	return false
}

// Thresholds are the optional quantity boundaries of a stock level
type Thresholds struct {
	Minimum     *valueobject.StockQuantity
	Maximum     *valueobject.StockQuantity
	Reorder     *valueobject.StockQuantity
	SafetyStock *valueobject.StockQuantity
}

func (t Thresholds) present() []*valueobject.StockQuantity {
	all := []*valueobject.StockQuantity{t.Minimum, t.Maximum, t.Reorder, t.SafetyStock}
	result := make([]*valueobject.StockQuantity, 0, len(all))
	for _, q := range all {
		if q != nil {
			result = append(result, q)
		}
	}
	return result
}

// Unit returns the shared unit of the thresholds, or "" if none is set
func (t Thresholds) Unit() string {
	if p := t.present(); len(p) > 0 {
		return p[0].Unit()
	}
	return ""
}

// Validate checks sign, unit and ordering of the thresholds
func (t Thresholds) Validate() error {
	present := t.present()
	if len(present) == 0 {
		return shared.NewInvalidArgumentError("NO_THRESHOLDS", "At least one threshold must be set")
	}

	unit := present[0].Unit()
	for _, q := range present {
		if q.IsNegative() {
			return shared.NewInvalidArgumentError("NEGATIVE_THRESHOLD", "Thresholds cannot be negative")
		}
		if q.Unit() != unit {
			return shared.NewDomainError(shared.KindUnitMismatch, "UNIT_MISMATCH",
				"All thresholds must use the same unit")
		}
	}

	// Units already match, so comparisons below cannot fail
	if t.Minimum != nil && t.Maximum != nil {
		if ok, _ := t.Minimum.LessThan(*t.Maximum); !ok {
			return shared.NewInvariantViolationError("THRESHOLD_ORDER", "Minimum level must be less than maximum level")
		}
	}
	if t.Reorder != nil {
		if t.Minimum != nil {
			if ok, _ := t.Minimum.LessThanOrEqual(*t.Reorder); !ok {
				return shared.NewInvariantViolationError("THRESHOLD_ORDER", "Reorder level cannot be below minimum level")
			}
		}
		if t.Maximum != nil {
			if ok, _ := t.Reorder.LessThanOrEqual(*t.Maximum); !ok {
				return shared.NewInvariantViolationError("THRESHOLD_ORDER", "Reorder level cannot exceed maximum level")
			}
		}
	}
	if t.SafetyStock != nil && t.Minimum != nil {
		if ok, _ := t.SafetyStock.GreaterThanOrEqual(*t.Minimum); !ok {
			return shared.NewInvariantViolationError("THRESHOLD_ORDER", "Safety stock cannot be below minimum level")
		}
	}
	return nil
}

// LocationStockLevel holds the alert thresholds of one product at one location
type LocationStockLevel struct {
	LocationID       uuid.UUID
	ProductID        uuid.UUID
	MinimumLevel     *valueobject.StockQuantity
	MaximumLevel     *valueobject.StockQuantity
	ReorderLevel     *valueobject.StockQuantity
	SafetyStockLevel *valueobject.StockQuantity
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewLocationStockLevel creates a validated stock level
func NewLocationStockLevel(locationID, productID uuid.UUID, thresholds Thresholds, now time.Time) (*LocationStockLevel, error) {
	if locationID == uuid.Nil || productID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_ID", "Location and product IDs are required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	level := &LocationStockLevel{
		LocationID: locationID,
		ProductID:  productID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	level.apply(thresholds)
	return level, nil
}

func (s *LocationStockLevel) apply(t Thresholds) {
	s.MinimumLevel = copyQuantity(t.Minimum)
	s.MaximumLevel = copyQuantity(t.Maximum)
	s.ReorderLevel = copyQuantity(t.Reorder)
	s.SafetyStockLevel = copyQuantity(t.SafetyStock)
}

func copyQuantity(q *valueobject.StockQuantity) *valueobject.StockQuantity {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

// Thresholds returns the current thresholds
func (s *LocationStockLevel) Thresholds() Thresholds {
	return Thresholds{
		Minimum:     copyQuantity(s.MinimumLevel),
		Maximum:     copyQuantity(s.MaximumLevel),
		Reorder:     copyQuantity(s.ReorderLevel),
		SafetyStock: copyQuantity(s.SafetyStockLevel),
	}
}

// Unit returns the unit shared by the thresholds
func (s *LocationStockLevel) Unit() string {
	return s.Thresholds().Unit()
}

// UpdateThresholds replaces all thresholds; nothing changes if validation fails
func (s *LocationStockLevel) UpdateThresholds(thresholds Thresholds, now time.Time) error {
	if err := thresholds.Validate(); err != nil {
		return err
	}
	s.apply(thresholds)
	s.UpdatedAt = now
	return nil
}

// CheckAlertLevel returns the highest-precedence breached threshold:
// StockOut > LowStock > Overstock > ReorderPoint > SafetyStock.
// The unit of current is assumed to match the thresholds.
func (s *LocationStockLevel) CheckAlertLevel(current valueobject.StockQuantity) (AlertType, bool) {
	v := current.Value()
	switch {
	case !v.IsPositive():
		return AlertTypeStockOut, true
	case s.MinimumLevel != nil && v.LessThanOrEqual(s.MinimumLevel.Value()):
		return AlertTypeLowStock, true
	case s.MaximumLevel != nil && v.GreaterThanOrEqual(s.MaximumLevel.Value()):
		return AlertTypeOverstock, true
	case s.ReorderLevel != nil && v.LessThanOrEqual(s.ReorderLevel.Value()):
		return AlertTypeReorderPoint, true
	case s.SafetyStockLevel != nil && v.LessThanOrEqual(s.SafetyStockLevel.Value()):
		return AlertTypeSafetyStock, true
	}
	return "", false
}
