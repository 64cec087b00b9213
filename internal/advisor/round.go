package advisor

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// roundFloat rounds v half away from zero to the given number of decimal
// places, working on the shortest decimal representation of v.
func roundFloat(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// roundShare returns round(v*factor) as an integer.
func roundShare(v, factor float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return saturatingInt(decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(factor)).Round(0).InexactFloat64())
}

// saturatingInt truncates v toward zero and pins anything outside the int
// range to its bounds. NaN becomes 0.
func saturatingInt(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt:
		return math.MaxInt
	case v <= math.MinInt:
		return math.MinInt
	}
	return int(v)
}

// formatTrimmed rounds v to the given places and drops trailing zeros while
// keeping at least one decimal, so 12 renders as "12.0" and 0.5 as "0.5".
func formatTrimmed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0.0"
	}
	s := decimal.NewFromFloat(v).Round(places).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
