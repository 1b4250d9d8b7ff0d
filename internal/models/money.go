package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary values carry exactly two fraction digits everywhere they are
// stored or compared. Amounts cross the API boundary as decimal strings,
// never as binary floats.

// Round2 rounds to two fraction digits, half up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MaxZero clamps negative amounts to zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseAmount parses a decimal string into a non-negative two-digit amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q is negative", s)
	}
	return Round2(d), nil
}

// MulQty multiplies a unit amount by an integer quantity.
func MulQty(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
