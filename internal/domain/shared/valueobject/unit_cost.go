package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UnitCost is the non-negative cost of one unit of a product
type UnitCost struct {
	amount   decimal.Decimal
	currency Currency
}

// NewUnitCost creates a unit cost
func NewUnitCost(amount decimal.Decimal, currency Currency) (UnitCost, error) {
	if currency == "" {
		return UnitCost{}, shared.NewInvalidArgumentError("INVALID_CURRENCY", "currency cannot be empty")
	}
	if amount.IsNegative() {
		return UnitCost{}, shared.NewInvalidArgumentError("NEGATIVE_UNIT_COST",
			fmt.Sprintf("unit cost cannot be negative, got %s", amount.String()))
	}
	return UnitCost{amount: amount, currency: currency}, nil
}

// NewUnitCostFromString parses a decimal amount
func NewUnitCostFromString(amount string, currency Currency) (UnitCost, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return UnitCost{}, shared.NewInvalidArgumentError("INVALID_AMOUNT",
			fmt.Sprintf("invalid unit cost %q", amount))
	}
	return NewUnitCost(d, currency)
}

// Amount returns the per-unit amount
func (c UnitCost) Amount() decimal.Decimal {
	return c.amount
}

// Currency returns the currency code
func (c UnitCost) Currency() Currency {
	return c.currency
}

// CalculateTotal returns amount × quantity.value in the same currency
func (c UnitCost) CalculateTotal(quantity StockQuantity) Money {
	return Money{amount: c.amount.Mul(quantity.Value()), currency: c.currency}
}

// AsMoney returns the unit cost as a Money value
func (c UnitCost) AsMoney() Money {
	return Money{amount: c.amount, currency: c.currency}
}

// Equals compares amount and currency
func (c UnitCost) Equals(other UnitCost) bool {
	return c.currency == other.currency && c.amount.Equal(other.amount)
}

// String returns a string representation
func (c UnitCost) String() string {
	return fmt.Sprintf("%s %s", c.amount.String(), c.currency)
}

// MarshalJSON implements json.Marshaler
func (c UnitCost) MarshalJSON() ([]byte, error) {
	return c.AsMoney().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler
func (c *UnitCost) UnmarshalJSON(data []byte) error {
	var m Money
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.amount = m.amount
	c.currency = m.currency
	return nil
}
