package models

import "testing"

func TestEventType_IsValid(t *testing.T) {
	valid := []EventType{
		EventCSPViolation, EventRuntimeError, EventUnhandledRejection, EventErrorBurst,
		EventAuthAnomaly, EventRoleEscalation, EventFrequencyAnomaly, EventErrorRateAnomaly,
		EventIPDiversityAnomaly, EventCostAnomaly,
	}
	for _, et := range valid {
		if !et.IsValid() {
			t.Errorf("%q should be valid", et)
		}
	}
	for _, et := range []EventType{"", "xss", "CSP_VIOLATION"} {
		if et.IsValid() {
			t.Errorf("%q should be invalid", et)
		}
	}
}

func TestSeverityAndPeriod_IsValid(t *testing.T) {
	if !SeverityCritical.IsValid() || Severity("urgent").IsValid() {
		t.Error("severity validation mismatch")
	}
	if !PeriodWeekly.IsValid() || PeriodType("yearly").IsValid() {
		t.Error("period validation mismatch")
	}
	if !AlertKeyExpiry.IsValid() || AlertType("budget").IsValid() {
		t.Error("alert type validation mismatch")
	}
}

func TestAnomalyType_EventType(t *testing.T) {
	tests := map[AnomalyType]EventType{
		AnomalyFrequency:   EventFrequencyAnomaly,
		AnomalyErrorRate:   EventErrorRateAnomaly,
		AnomalyIPDiversity: EventIPDiversityAnomaly,
		AnomalyCost:        EventCostAnomaly,
	}
	for at, want := range tests {
		if got := at.EventType(); got != want {
			t.Errorf("%q.EventType() = %q, want %q", at, got, want)
		}
	}
}
