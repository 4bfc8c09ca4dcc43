package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockQuantity is a value object pairing a decimal magnitude with its unit of measure.
// It is immutable - all operations return new StockQuantity instances.
// A negative value is only produced by Subtract/Negate and is meant for sufficiency
// checks and signed ledger impacts, never as a stored on-hand balance.
type StockQuantity struct {
	value decimal.Decimal
	unit  string
}

// NewStockQuantity creates a quantity; construction never fails
func NewStockQuantity(value decimal.Decimal, unit string) StockQuantity {
	return StockQuantity{value: value, unit: unit}
}

// NewStockQuantityFromInt creates a quantity from an integer value
func NewStockQuantityFromInt(value int64, unit string) StockQuantity {
	return NewStockQuantity(decimal.NewFromInt(value), unit)
}

// NewStockQuantityFromString parses a decimal string
func NewStockQuantityFromString(value, unit string) (StockQuantity, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return StockQuantity{}, shared.NewInvalidArgumentError("INVALID_QUANTITY",
			fmt.Sprintf("invalid quantity value %q", value))
	}
	return NewStockQuantity(d, unit), nil
}

// ZeroStockQuantity returns a zero quantity in the given unit
func ZeroStockQuantity(unit string) StockQuantity {
	return StockQuantity{value: decimal.Zero, unit: unit}
}

// Value returns the decimal magnitude
func (q StockQuantity) Value() decimal.Decimal {
	return q.value
}

// Unit returns the unit of measure
func (q StockQuantity) Unit() string {
	return q.unit
}

// IsZero returns true if the value is zero
func (q StockQuantity) IsZero() bool {
	return q.value.IsZero()
}

// IsPositive returns true if the value is greater than zero
func (q StockQuantity) IsPositive() bool {
	return q.value.IsPositive()
}

// IsNegative returns true if the value is less than zero
func (q StockQuantity) IsNegative() bool {
	return q.value.IsNegative()
}

// SameUnit reports whether other uses the same unit
func (q StockQuantity) SameUnit(other StockQuantity) bool {
	return q.unit == other.unit
}

func (q StockQuantity) checkUnit(other StockQuantity) error {
	if q.unit != other.unit {
		return shared.NewDomainError(shared.KindUnitMismatch, "UNIT_MISMATCH",
			fmt.Sprintf("cannot combine quantities in %q and %q", q.unit, other.unit))
	}
	return nil
}

// Add returns the sum of two quantities in the same unit
func (q StockQuantity) Add(other StockQuantity) (StockQuantity, error) {
	if err := q.checkUnit(other); err != nil {
		return StockQuantity{}, err
	}
	return StockQuantity{value: q.value.Add(other.value), unit: q.unit}, nil
}

// Subtract returns q - other. The result may be negative.
func (q StockQuantity) Subtract(other StockQuantity) (StockQuantity, error) {
	if err := q.checkUnit(other); err != nil {
		return StockQuantity{}, err
	}
	return StockQuantity{value: q.value.Sub(other.value), unit: q.unit}, nil
}

// Negate flips the sign
func (q StockQuantity) Negate() StockQuantity {
	return StockQuantity{value: q.value.Neg(), unit: q.unit}
}

// Abs returns the magnitude
func (q StockQuantity) Abs() StockQuantity {
	return StockQuantity{value: q.value.Abs(), unit: q.unit}
}

// Compare returns -1, 0 or 1
func (q StockQuantity) Compare(other StockQuantity) (int, error) {
	if err := q.checkUnit(other); err != nil {
		return 0, err
	}
	return q.value.Cmp(other.value), nil
}

// Equals checks unit and numeric equality
func (q StockQuantity) Equals(other StockQuantity) bool {
	return q.unit == other.unit && q.value.Equal(other.value)
}

// LessThan returns true if q < other
func (q StockQuantity) LessThan(other StockQuantity) (bool, error) {
	c, err := q.Compare(other)
	return c < 0, err
}

// LessThanOrEqual returns true if q <= other
func (q StockQuantity) LessThanOrEqual(other StockQuantity) (bool, error) {
	c, err := q.Compare(other)
	return c <= 0, err
}

// GreaterThan returns true if q > other
func (q StockQuantity) GreaterThan(other StockQuantity) (bool, error) {
	c, err := q.Compare(other)
	return c > 0, err
}

// GreaterThanOrEqual returns true if q >= other
func (q StockQuantity) GreaterThanOrEqual(other StockQuantity) (bool, error) {
	c, err := q.Compare(other)
	return c >= 0, err
}

// String returns "value unit"
func (q StockQuantity) String() string {
	return fmt.Sprintf("%s %s", q.value.String(), q.unit)
}

// MarshalJSON implements json.Marshaler
func (q StockQuantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value string `json:"value"`
		Unit  string `json:"unit"`
	}{
		Value: q.value.String(),
		Unit:  q.unit,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Signed values are accepted since
// event payloads carry ledger impacts.
func (q *StockQuantity) UnmarshalJSON(data []byte) error {
	var v struct {
		Value string `json:"value"`
		Unit  string `json:"unit"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	value, err := decimal.NewFromString(v.Value)
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	q.value = value
	q.unit = v.Unit
	return nil
}
