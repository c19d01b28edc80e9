package models

// EventType identifies the kind of a SecurityEvent. The set is closed; new kinds
// must be added here and to IsValid.
type EventType string

const (
	EventCSPViolation       EventType = "csp_violation"
	EventRuntimeError       EventType = "runtime_error"
	EventUnhandledRejection EventType = "unhandled_rejection"
	EventErrorBurst         EventType = "error_burst"
	EventAuthAnomaly        EventType = "auth_anomaly"
	EventRoleEscalation     EventType = "role_escalation"
	EventFrequencyAnomaly   EventType = "frequency_anomaly"
	EventErrorRateAnomaly   EventType = "error_rate_anomaly"
	EventIPDiversityAnomaly EventType = "ip_diversity_anomaly"
	EventCostAnomaly        EventType = "cost_anomaly"
)

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	switch t {
	case EventCSPViolation, EventRuntimeError, EventUnhandledRejection, EventErrorBurst,
		EventAuthAnomaly, EventRoleEscalation, EventFrequencyAnomaly, EventErrorRateAnomaly,
		EventIPDiversityAnomaly, EventCostAnomaly:
		return true
	default:
		return false
	}
}

// Severity is shared by events, anomalies and alerts.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// AlertType identifies the condition an Alert was raised for.
type AlertType string

const (
	AlertSecurityBreach  AlertType = "security_breach"
	AlertCostThreshold   AlertType = "cost_threshold"
	AlertKeyExpiry       AlertType = "key_expiry"
	AlertAnomalyDetected AlertType = "anomaly_detected"
	AlertErrorRate       AlertType = "error_rate"
)

func (t AlertType) IsValid() bool {
	switch t {
	case AlertSecurityBreach, AlertCostThreshold, AlertKeyExpiry, AlertAnomalyDetected, AlertErrorRate:
		return true
	default:
		return false
	}
}

// PeriodType is the aggregation granularity for cost analysis.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	default:
		return false
	}
}
