package analysis

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"sentinel/internal/models"
)

// Rules holds the anomaly thresholds. Risk scores are fixed heuristics in 0..100.
type Rules struct {
	// BaselinePerHour is the expected request rate of a key
	BaselinePerHour float64
	// FrequencyMultiplier flags rates above BaselinePerHour×FrequencyMultiplier
	FrequencyMultiplier float64
	// ErrorRatePercent flags error rates above this percentage
	ErrorRatePercent float64
	// HighErrorRatePercent raises error-rate severity to high above this percentage
	HighErrorRatePercent float64
	// MinDistinctIPs and MinCallsForIPCheck must both be exceeded to flag IP diversity
	MinDistinctIPs     int
	MinCallsForIPCheck int
	// MaxAvgCost flags keys whose average cost per request exceeds it (USD)
	MaxAvgCost float64
}

// DefaultRules returns the standard thresholds
func DefaultRules() Rules {
	return Rules{
		BaselinePerHour:      10,
		FrequencyMultiplier:  3,
		ErrorRatePercent:     20,
		HighErrorRatePercent: 50,
		MinDistinctIPs:       10,
		MinCallsForIPCheck:   50,
		MaxAvgCost:           0.10,
	}
}

// FrequencyRisk is min(90, 30 + (requestsPerHour/baseline)×10).
func FrequencyRisk(requestsPerHour, baseline float64) float64 {
	return math.Min(90, 30+(requestsPerHour/baseline)*10)
}

// ErrorRateRisk is min(95, 20 + errorRate).
func ErrorRateRisk(errorRate float64) float64 {
	return math.Min(95, 20+errorRate)
}

// IPDiversityRisk is min(70, 30 + uniqueIPs).
func IPDiversityRisk(uniqueIPs int) float64 {
	return math.Min(70, 30+float64(uniqueIPs))
}

// CostRisk is min(60, 20 + avgCost×100).
func CostRisk(avgCost float64) float64 {
	return math.Min(60, 20+avgCost*100)
}

// KeyStats is the per-key reduction the rules run on
type KeyStats struct {
	Calls     int64
	Errors    int64
	TotalCost float64
	UniqueIPs int
}

// KeyStatsFor reduces one key's entries
func KeyStatsFor(entries []*models.UsageLogEntry) KeyStats {
	var stats KeyStats
	ips := make(map[string]struct{})
	for _, e := range entries {
		stats.Calls++
		if !e.Success {
			stats.Errors++
		}
		stats.TotalCost += e.CostAmount.InexactFloat64()
		if e.SourceIP != nil && *e.SourceIP != "" {
			ips[*e.SourceIP] = struct{}{}
		}
	}
	stats.UniqueIPs = len(ips)
	return stats
}

// Evaluate runs every rule against one key's stats over a window of
// lookbackHours. Rules are independent of each other and of other keys.
func (r Rules) Evaluate(keyID uuid.UUID, stats KeyStats, lookbackHours int) []models.Anomaly {
	if stats.Calls == 0 {
		return nil
	}

	var anomalies []models.Anomaly

	if lookbackHours > 0 && r.BaselinePerHour > 0 {
		perHour := float64(stats.Calls) / float64(lookbackHours)
		if perHour > r.BaselinePerHour*r.FrequencyMultiplier {
			anomalies = append(anomalies, models.Anomaly{
				Type:     models.AnomalyFrequency,
				KeyID:    keyID,
				Severity: models.SeverityMedium,
				Description: fmt.Sprintf("%.1f requests/hour exceeds %.0fx baseline of %.0f/hour",
					perHour, r.FrequencyMultiplier, r.BaselinePerHour),
				RiskScore: FrequencyRisk(perHour, r.BaselinePerHour),
			})
		}
	}

	errorRate := ErrorRate(stats.Errors, stats.Calls)
	if errorRate > r.ErrorRatePercent {
		severity := models.SeverityMedium
		if errorRate > r.HighErrorRatePercent {
			severity = models.SeverityHigh
		}
		anomalies = append(anomalies, models.Anomaly{
			Type:        models.AnomalyErrorRate,
			KeyID:       keyID,
			Severity:    severity,
			Description: fmt.Sprintf("error rate %.1f%% over %d calls", errorRate, stats.Calls),
			RiskScore:   ErrorRateRisk(errorRate),
		})
	}

	if stats.UniqueIPs > r.MinDistinctIPs && stats.Calls > int64(r.MinCallsForIPCheck) {
		anomalies = append(anomalies, models.Anomaly{
			Type:        models.AnomalyIPDiversity,
			KeyID:       keyID,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("%d distinct source IPs across %d calls", stats.UniqueIPs, stats.Calls),
			RiskScore:   IPDiversityRisk(stats.UniqueIPs),
		})
	}

	avgCost := CostPerCall(stats.TotalCost, stats.Calls)
	if avgCost > r.MaxAvgCost {
		anomalies = append(anomalies, models.Anomaly{
			Type:        models.AnomalyCost,
			KeyID:       keyID,
			Severity:    models.SeverityLow,
			Description: fmt.Sprintf("average cost $%.4f per request exceeds $%.2f", avgCost, r.MaxAvgCost),
			RiskScore:   CostRisk(avgCost),
		})
	}

	return anomalies
}
