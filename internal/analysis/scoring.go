package analysis

import "math"

// The efficiency and projection formulas below are fixed heuristics. They are
// not fitted to data; downstream thresholds depend on the exact arithmetic.
const (
	EfficiencyBase             = 100.0
	EfficiencyErrorPenalty     = 10.0
	EfficiencyCostPenaltyScale = 1000.0
	EfficiencyMaxCostPenalty   = 50.0

	// ProjectionDays is the month length used for cost projections
	ProjectionDays = 30
)

// CostPerCall is totalCost / calls, or 0 when there were no calls.
func CostPerCall(totalCost float64, calls int64) float64 {
	if calls <= 0 {
		return 0
	}
	return totalCost / float64(calls)
}

// ErrorRate is errors / calls as a percentage, or 0 when there were no calls.
func ErrorRate(errors, calls int64) float64 {
	if calls <= 0 {
		return 0
	}
	return float64(errors) / float64(calls) * 100
}

// CostEfficiencyScore is max(0, 100 − errorRate×10 − min(50, costPerCall×1000)).
func CostEfficiencyScore(errorRate, costPerCall float64) float64 {
	costPenalty := math.Min(EfficiencyMaxCostPenalty, costPerCall*EfficiencyCostPenaltyScale)
	return math.Max(0, EfficiencyBase-errorRate*EfficiencyErrorPenalty-costPenalty)
}

// ProjectedMonthlyCost scales the average daily cost of a period to 30 days.
func ProjectedMonthlyCost(totalCost float64, daysInPeriod int) float64 {
	if daysInPeriod <= 0 {
		return 0
	}
	return totalCost / float64(daysInPeriod) * ProjectionDays
}
