package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// FactorScale is the fixed-point scale of stored adjustment factors:
// a factor of 1e4 leaves a raw price unchanged.
const FactorScale = 1e4

// PricePlaces is the number of decimals kept on adjusted values.
const PricePlaces = 3

// Round3 rounds v half away from zero to PricePlaces decimals.
// Rounding goes through the shortest decimal representation of v, so 2.6755 rounds to 2.676.
func Round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(PricePlaces).InexactFloat64()
}

// Adjust maps a raw value onto the back-adjusted scale: round(raw*factor/1e4, 3).
func Adjust(raw, factor float64) float64 {
	return Round3(raw * factor / FactorScale)
}
