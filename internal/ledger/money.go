package ledger

import "github.com/shopspring/decimal"

// Epsilon is the tolerance used when asserting accounting identities:
// one cent of the reporting currency.
var Epsilon = decimal.New(1, -2)

// RoundHalfUp2 rounds a monetary amount to 2 decimal places, halves away
// from zero (so 0.005 → 0.01 for the positive amounts money math produces).
func RoundHalfUp2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinEpsilon reports whether a and b agree within Epsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}
