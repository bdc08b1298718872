package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountFromFloat converts a model-supplied number into whole currency units,
// rounding half away from zero and dropping the sign.
func AmountFromFloat(f float64) int64 {
	return wholeUnits(decimal.NewFromFloat(f))
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// wholeUnits rounds d to a non-negative int64. Magnitudes that do not fit
// are malformed and become 0.
func wholeUnits(d decimal.Decimal) int64 {
	d = d.Abs().Round(0)
	if d.GreaterThan(maxAmount) {
		return 0
	}
	return d.IntPart()
}

// ParseAmountLenient parses a form amount. Spaces and thousands separators are
// ignored ("50 000", "50,000"); anything that still fails to parse becomes 0.
// Negative input keeps its magnitude; values too large for int64 become 0.
func ParseAmountLenient(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", ",", "", "_", "").Replace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return wholeUnits(d)
}
