// Package money converts between decimal amounts and integer minor units.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places carried by minor units.
const MinorUnitExponent = 2

var minorFactor = decimal.New(1, MinorUnitExponent)

// ToMinor converts a decimal amount into minor units, rounding half away from
// zero. Negative amounts are rejected.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s must not be negative", amount.String())
	}
	minor := amount.Mul(minorFactor).Round(0)
	if !minor.IsInteger() || minor.GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, fmt.Errorf("amount %s out of range", amount.String())
	}
	return minor.IntPart(), nil
}

// FromMinor converts minor units back into a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// Format renders minor units as a fixed two-decimal string.
func Format(minor int64) string {
	return FromMinor(minor).StringFixed(MinorUnitExponent)
}
