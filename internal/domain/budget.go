package domain

import "math"

// ErrorBudget returns how many records a load may reject while still counting
// as successful: round(rowCount * maxErrorPercent / 100), half to even.
func ErrorBudget(rowCount int, maxErrorPercent float64) int {
	if rowCount <= 0 || maxErrorPercent <= 0 || math.IsNaN(maxErrorPercent) {
		return 0
	}
	return int(math.RoundToEven(float64(rowCount) * maxErrorPercent / 100))
}
