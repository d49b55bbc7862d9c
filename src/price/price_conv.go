package price

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// centsPerUnit is the scale between the external decimal representation
// (at most two fractional digits) and internal integer cents.
var centsPerUnit = decimal.NewFromInt(100)

// FromDecimalString parses the external wire representation of a price,
// a decimal string with at most two fractional digits, into a Price.
// Values with more than two fractional digits are rounded half away
// from zero to two places before scaling (decimal.Decimal.Round's
// behavior). shopspring/decimal is boundary-only: internal book
// arithmetic never touches it.
func FromDecimalString(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("price: invalid decimal %q: %w", s, err)
	}
	return fromDecimal(d)
}

// FromFloat converts a float64 price into a Price, rounding to the
// nearest cent. This exists only for adapters that must accept float
// input (e.g. legacy bot clients); the matching engine itself never
// constructs a Price this way.
func FromFloat(f float64) Price {
	d := decimal.NewFromFloat(f)
	p, _ := fromDecimal(d)
	return p
}

func fromDecimal(d decimal.Decimal) (Price, error) {
	if d.IsNegative() {
		return Zero, fmt.Errorf("price: negative price %s not allowed", d.String())
	}
	rounded := d.Round(2)
	cents := rounded.Mul(centsPerUnit).Round(0)
	return Price{cents: cents.IntPart()}, nil
}

// Decimal renders the Price back to the external decimal representation.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(p.cents, 0).DivRound(centsPerUnit, 2)
}

// DecimalString renders the Price as a fixed two-decimal-place string,
// the canonical external wire form.
func (p Price) DecimalString() string {
	return p.Decimal().StringFixed(2)
}
