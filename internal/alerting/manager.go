// Package alerting creates operator alerts and enforces one alert per
// (type, scope, calendar day) through the alert_hash unique constraint.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/metrics"
	"sentinel/internal/models"
	"sentinel/internal/storage"
	"sentinel/internal/utils"
)

// BreachRiskThreshold is the exclusive risk score above which an anomaly
// always raises a security_breach alert.
const BreachRiskThreshold = 70.0

// GlobalScope is the alert scope for service-wide conditions.
const GlobalScope = "global"

// Store persists alerts. Insert must return storage.ErrDuplicateAlert when the
// hash already exists.
type Store interface {
	Insert(ctx context.Context, alert *models.Alert) error
	Acknowledge(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context, limit int) ([]*models.Alert, error)
}

// AlertRequest describes an alert to raise. Scope narrows the dedup key, e.g.
// an API key id or GlobalScope.
type AlertRequest struct {
	Type            models.AlertType
	Severity        models.Severity
	Scope           string
	Title           string
	Message         string
	APIKeyID        *uuid.UUID
	ServiceProvider *string
	ThresholdValue  *float64
	ActualValue     *float64
}

// Result reports whether a new alert row was written.
type Result struct {
	Created bool          `json:"created"`
	Alert   *models.Alert `json:"alert,omitempty"`
}

// AlertHash is the dedup key for an alert: sha256 of type, scope and UTC date.
func AlertHash(alertType models.AlertType, scope string, day time.Time) string {
	return utils.HashParts(string(alertType), scope, day.UTC().Format("2006-01-02"))
}

// Manager raises and maintains alerts
type Manager struct {
	store   Store
	now     func() time.Time
	metrics *metrics.Collector
	logger  *utils.Logger
}

// NewManager creates an alert manager. collector may be nil.
func NewManager(store Store, collector *metrics.Collector) *Manager {
	return &Manager{
		store:   store,
		now:     time.Now,
		metrics: collector,
		logger:  utils.NewLogger("alerting"),
	}
}

// CreateAlert inserts the alert unless one with the same hash exists today.
// A duplicate is reported as Created: false, never as an error.
func (m *Manager) CreateAlert(ctx context.Context, req AlertRequest) (Result, error) {
	if !req.Type.IsValid() {
		return Result{}, fmt.Errorf("invalid alert type %q", req.Type)
	}
	if !req.Severity.IsValid() {
		return Result{}, fmt.Errorf("invalid severity %q", req.Severity)
	}

	now := m.now().UTC()
	alert := &models.Alert{
		ID:              uuid.New(),
		AlertType:       req.Type,
		Severity:        req.Severity,
		APIKeyID:        req.APIKeyID,
		ServiceProvider: req.ServiceProvider,
		Title:           req.Title,
		Message:         req.Message,
		ThresholdValue:  req.ThresholdValue,
		ActualValue:     req.ActualValue,
		AlertHash:       AlertHash(req.Type, req.Scope, now),
		IsActive:        true,
		CreatedAt:       now,
	}

	if err := m.store.Insert(ctx, alert); err != nil {
		if errors.Is(err, storage.ErrDuplicateAlert) {
			m.logger.Debug("Alert already raised today", "type", req.Type, "scope", req.Scope)
			m.metrics.AlertDeduplicated(string(req.Type))
			return Result{Created: false}, nil
		}
		return Result{}, fmt.Errorf("failed to create alert: %w", err)
	}

	m.logger.Info("Alert created", "type", req.Type, "severity", req.Severity, "scope", req.Scope)
	m.metrics.AlertCreated(string(req.Type))
	return Result{Created: true, Alert: alert}, nil
}

// FromAnomaly raises a security_breach alert for anomalies above
// BreachRiskThreshold. Lower scores return a zero Result. The scope is the key
// alone, so a key gets at most one breach alert per day whatever rule fired.
func (m *Manager) FromAnomaly(ctx context.Context, anomaly models.Anomaly) (Result, error) {
	if anomaly.RiskScore <= BreachRiskThreshold {
		return Result{}, nil
	}

	keyID := anomaly.KeyID
	threshold := BreachRiskThreshold
	actual := anomaly.RiskScore
	return m.CreateAlert(ctx, AlertRequest{
		Type:           models.AlertSecurityBreach,
		Severity:       breachSeverity(anomaly.RiskScore),
		Scope:          keyID.String(),
		Title:          fmt.Sprintf("Possible security breach on key %s", keyID),
		Message:        fmt.Sprintf("%s (risk score %.1f)", anomaly.Description, anomaly.RiskScore),
		APIKeyID:       &keyID,
		ThresholdValue: &threshold,
		ActualValue:    &actual,
	})
}

func breachSeverity(risk float64) models.Severity {
	if risk >= 90 {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

// CheckCostThreshold raises a cost_threshold alert when the projected monthly
// cost exceeds budget. A non-positive budget disables the check.
func (m *Manager) CheckCostThreshold(ctx context.Context, record *models.CostAnalysisRecord, budget float64) (Result, error) {
	if record == nil || budget <= 0 || record.ProjectedMonthlyCost <= budget {
		return Result{}, nil
	}

	severity := models.SeverityMedium
	if record.ProjectedMonthlyCost > budget*1.5 {
		severity = models.SeverityHigh
	}

	threshold := budget
	actual := record.ProjectedMonthlyCost
	return m.CreateAlert(ctx, AlertRequest{
		Type:     models.AlertCostThreshold,
		Severity: severity,
		Scope:    GlobalScope,
		Title:    "Projected monthly cost over budget",
		Message: fmt.Sprintf("Projected monthly cost $%.2f exceeds budget $%.2f (%s analysis for %s)",
			actual, budget, record.PeriodType, record.AnalysisDate.Format("2006-01-02")),
		ThresholdValue: &threshold,
		ActualValue:    &actual,
	})
}

// Acknowledge marks an alert as seen
func (m *Manager) Acknowledge(ctx context.Context, id uuid.UUID) error {
	return m.store.Acknowledge(ctx, id)
}

// Deactivate closes an alert
func (m *Manager) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.store.Deactivate(ctx, id)
}

// ListActive returns open alerts, newest first
func (m *Manager) ListActive(ctx context.Context, limit int) ([]*models.Alert, error) {
	return m.store.ListActive(ctx, limit)
}
