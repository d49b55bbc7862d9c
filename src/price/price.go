// Package price implements the venue's monetary value type: an immutable,
// totally-ordered integer number of cents. Arithmetic never touches
// floating point; conversion to/from the decimal wire format lives in
// price_conv.go.
package price

import "fmt"

// Price is a nonnegative integer number of minor units (cents).
type Price struct {
	cents int64
}

// Zero is the zero price.
var Zero = Price{}

// FromCents constructs a Price directly from an integer number of cents.
// Negative values are rejected by callers at the boundary; FromCents
// itself does not re-validate, since internal callers (trade pricing,
// level keys) always derive cents from an already-validated Price.
func FromCents(cents int64) Price {
	return Price{cents: cents}
}

// Cents returns the integer number of cents this Price represents.
func (p Price) Cents() int64 {
	return p.cents
}

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater than o.
func (p Price) Compare(o Price) int {
	switch {
	case p.cents < o.cents:
		return -1
	case p.cents > o.cents:
		return 1
	default:
		return 0
	}
}

func (p Price) LessThan(o Price) bool    { return p.cents < o.cents }
func (p Price) GreaterThan(o Price) bool { return p.cents > o.cents }
func (p Price) Equal(o Price) bool       { return p.cents == o.cents }

func (p Price) String() string {
	sign := ""
	c := p.cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
