// Package jobs maps scheduler operations onto the analysis components.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/alerting"
	"sentinel/internal/analysis"
	"sentinel/internal/forecast"
	"sentinel/internal/metrics"
	"sentinel/internal/models"
	"sentinel/internal/storage"
	"sentinel/internal/utils"
)

// Operation names accepted by Dispatch
const (
	OpAnalyzeCosts    = "analyze_costs"
	OpDetectAnomalies = "detect_anomalies"
	OpCheckAlerts     = "check_alerts"
	OpForecastCosts   = "forecast_costs"
	OpScanKeyExpiry   = "scan_key_expiry"
)

var (
	// ErrUnknownOperation is returned for an operation name Dispatch does not know
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrBadParams is returned when params do not decode or fail validation
	ErrBadParams = errors.New("invalid params")
)

// IsClientError reports whether err was caused by the request rather than a
// datastore failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, ErrBadParams) ||
		errors.Is(err, forecast.ErrInsufficientData) ||
		errors.Is(err, forecast.ErrInvalidHorizon) ||
		errors.Is(err, analysis.ErrInvalidPeriod) ||
		errors.Is(err, analysis.ErrInvalidLookback)
}

// Request is the scheduler payload
type Request struct {
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// AnalyzeCostsParams selects the analysis date (YYYY-MM-DD, default today) and period
type AnalyzeCostsParams struct {
	Date       string            `json:"date"`
	PeriodType models.PeriodType `json:"period_type"`
}

// DetectAnomaliesParams selects the lookback window and an optional key
type DetectAnomaliesParams struct {
	LookbackHours int    `json:"lookback_hours"`
	KeyID         string `json:"key_id"`
}

// ForecastCostsParams selects the forecast horizon
type ForecastCostsParams struct {
	Days int `json:"days"`
}

// ScanKeyExpiryParams selects the expiry lookahead
type ScanKeyExpiryParams struct {
	DaysAhead int `json:"days_ahead"`
}

// DetectAnomaliesResult is returned by detect_anomalies
type DetectAnomaliesResult struct {
	Count     int              `json:"count"`
	Anomalies []models.Anomaly `json:"anomalies"`
}

// CheckAlertsResult is returned by check_alerts
type CheckAlertsResult struct {
	CostAlertCreated bool                `json:"cost_alert_created"`
	Expiry           alerting.ScanResult `json:"expiry"`
}

// LatestRecordStore returns the newest cost analysis of a period
type LatestRecordStore interface {
	Latest(ctx context.Context, period models.PeriodType) (*models.CostAnalysisRecord, error)
}

// Components are the collaborators a Dispatcher drives
type Components struct {
	Aggregator    *analysis.Aggregator
	Analyzer      *analysis.Analyzer
	Alerts        *alerting.Manager
	ExpiryScanner *alerting.ExpiryScanner
	Forecaster    *forecast.Forecaster
	Records       LatestRecordStore

	// MonthlyBudget enables cost_threshold alerts when positive (USD)
	MonthlyBudget float64
	Metrics       *metrics.Collector
}

// Dispatcher runs one job per call. It holds no state between calls.
type Dispatcher struct {
	c      Components
	now    func() time.Time
	logger *utils.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(c Components) *Dispatcher {
	return &Dispatcher{c: c, now: time.Now, logger: utils.NewLogger("jobs")}
}

// Dispatch runs the requested operation and returns its JSON-serialisable result.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	start := time.Now()
	result, err := d.dispatch(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.Error("Job failed", "operation", req.Operation, "error", err)
	} else {
		d.logger.Info("Job finished", "operation", req.Operation, "duration", time.Since(start))
	}
	if req.Operation != "" && !errors.Is(err, ErrUnknownOperation) {
		d.c.Metrics.ObserveJob(req.Operation, outcome, time.Since(start))
	}

	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Operation {
	case OpAnalyzeCosts:
		var p AnalyzeCostsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return d.analyzeCosts(ctx, p)

	case OpDetectAnomalies:
		var p DetectAnomaliesParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return d.detectAnomalies(ctx, p)

	case OpCheckAlerts:
		return d.checkAlerts(ctx)

	case OpForecastCosts:
		var p ForecastCostsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return d.c.Forecaster.Forecast(ctx, p.Days)

	case OpScanKeyExpiry:
		var p ScanKeyExpiryParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if p.DaysAhead < 0 {
			return nil, fmt.Errorf("%w: days_ahead must not be negative", ErrBadParams)
		}
		return d.c.ExpiryScanner.Scan(ctx, p.DaysAhead)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
}

func (d *Dispatcher) analyzeCosts(ctx context.Context, p AnalyzeCostsParams) (*models.CostAnalysisRecord, error) {
	date := d.now().UTC()
	if p.Date != "" {
		parsed, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrBadParams)
		}
		date = parsed
	}
	if p.PeriodType == "" {
		p.PeriodType = models.PeriodDaily
	}

	record, err := d.c.Aggregator.Analyze(ctx, date, p.PeriodType)
	if err != nil {
		return nil, err
	}

	if d.c.Alerts != nil {
		if _, err := d.c.Alerts.CheckCostThreshold(ctx, record, d.c.MonthlyBudget); err != nil {
			return nil, err
		}
	}
	return record, nil
}

func (d *Dispatcher) detectAnomalies(ctx context.Context, p DetectAnomaliesParams) (*DetectAnomaliesResult, error) {
	var keyID *uuid.UUID
	if p.KeyID != "" {
		parsed, err := uuid.Parse(p.KeyID)
		if err != nil {
			return nil, fmt.Errorf("%w: key_id must be a UUID", ErrBadParams)
		}
		keyID = &parsed
	}

	anomalies, err := d.c.Analyzer.Detect(ctx, p.LookbackHours, keyID)
	if err != nil {
		return nil, err
	}
	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}
	return &DetectAnomaliesResult{Count: len(anomalies), Anomalies: anomalies}, nil
}

// checkAlerts re-evaluates the budget against the latest daily analysis and
// runs the expiry scan with its default lookahead.
func (d *Dispatcher) checkAlerts(ctx context.Context) (*CheckAlertsResult, error) {
	result := &CheckAlertsResult{}

	latest, err := d.c.Records.Latest(ctx, models.PeriodDaily)
	switch {
	case errors.Is(err, storage.ErrCostAnalysisNotFound):
		d.logger.Debug("No daily cost analysis yet, skipping budget check")
	case err != nil:
		return nil, fmt.Errorf("failed to load latest cost analysis: %w", err)
	default:
		res, err := d.c.Alerts.CheckCostThreshold(ctx, latest, d.c.MonthlyBudget)
		if err != nil {
			return nil, err
		}
		result.CostAlertCreated = res.Created
	}

	scan, err := d.c.ExpiryScanner.Scan(ctx, 0)
	if err != nil {
		return nil, err
	}
	result.Expiry = scan
	return result, nil
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	return nil
}
