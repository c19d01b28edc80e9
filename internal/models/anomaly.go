package models

import "github.com/google/uuid"

// AnomalyType names the rule that produced an Anomaly.
type AnomalyType string

const (
	AnomalyFrequency   AnomalyType = "frequency"
	AnomalyErrorRate   AnomalyType = "error_rate"
	AnomalyIPDiversity AnomalyType = "ip_diversity"
	AnomalyCost        AnomalyType = "cost_per_request"
)

// EventType returns the SecurityEvent type an anomaly of this kind is persisted as.
func (t AnomalyType) EventType() EventType {
	switch t {
	case AnomalyFrequency:
		return EventFrequencyAnomaly
	case AnomalyErrorRate:
		return EventErrorRateAnomaly
	case AnomalyIPDiversity:
		return EventIPDiversityAnomaly
	default:
		return EventCostAnomaly
	}
}

// Anomaly is a transient detection result; it is never stored directly.
type Anomaly struct {
	Type        AnomalyType `json:"type"`
	KeyID       uuid.UUID   `json:"key_id"`
	Severity    Severity    `json:"severity"`
	Description string      `json:"description"`
	RiskScore   float64     `json:"risk_score"`
}
