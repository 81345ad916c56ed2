// Package money holds the two-decimal arithmetic used for revenue and commission.
package money

import "math"

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineRevenue is unit price times quantity, rounded.
func LineRevenue(unitPrice float64, quantity int) float64 {
	return Round2(unitPrice * float64(quantity))
}

// Commission applies a percentage rate (5 means 5%) to revenue.
func Commission(revenue, ratePercent float64) float64 {
	return Round2(revenue * ratePercent / 100)
}

// Percent returns part/whole as a percentage with two decimals, 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(part / whole * 100)
}
