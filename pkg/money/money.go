// Package money holds the fixed-point arithmetic used for commissions and fees.
// Amounts are int64 minor units; percentages are decimals in [0, 100].
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest amount, in minor units, a single operation may
// carry. Sums of a few such amounts stay far inside int64.
const MaxAmount int64 = 100_000_000_000_00

// ErrOutOfRange is returned by Parse for amounts above MaxAmount.
var ErrOutOfRange = errors.New("amount out of range")

// Percent returns floor(amount × pct / 100). Truncation keeps every computed
// share at or below its exact value, so shares never exceed their base.
func Percent(amount int64, pct decimal.Decimal) int64 {
	if amount <= 0 || !pct.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Floor().IntPart()
}

// ValidPercentage reports whether pct lies within [0, 100].
func ValidPercentage(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}

// Format renders minor units as a decimal string with two places, e.g. 4900 -> "49.00".
func Format(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// Parse converts a decimal string such as "49.5" into minor units.
// More than two fractional digits is rejected rather than rounded.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than two decimal places", s)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, fmt.Errorf("invalid amount %q: %w", s, ErrOutOfRange)
	}
	return minor.IntPart(), nil
}

// InRange reports whether amount is positive and at most MaxAmount.
func InRange(amount int64) bool {
	return amount > 0 && amount <= MaxAmount
}
