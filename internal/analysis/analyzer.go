package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/alerting"
	"sentinel/internal/metrics"
	"sentinel/internal/models"
	"sentinel/internal/utils"
)

// DefaultLookbackHours is the detection window when none is given
const DefaultLookbackHours = 24

// PersistRiskThreshold is the exclusive risk score above which an anomaly is
// recorded as a SecurityEvent
const PersistRiskThreshold = 50.0

// AnalyzerSource is the SecurityEvent source of persisted anomalies
const AnalyzerSource = "anomaly-analyzer"

// UsageWindowStore reads usage logs since a point in time
type UsageWindowStore interface {
	ListSince(ctx context.Context, since time.Time, keyID *uuid.UUID) ([]*models.UsageLogEntry, error)
}

// EventStore records security events
type EventStore interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
}

// BreachAlerter raises an alert for high-risk anomalies
type BreachAlerter interface {
	FromAnomaly(ctx context.Context, anomaly models.Anomaly) (alerting.Result, error)
}

// Analyzer runs the anomaly rules over recent usage
type Analyzer struct {
	usage   UsageWindowStore
	events  EventStore
	alerts  BreachAlerter
	rules   Rules
	metrics *metrics.Collector
	now     func() time.Time
	logger  *utils.Logger
}

// NewAnalyzer creates an anomaly analyzer. alerts and collector may be nil.
func NewAnalyzer(usage UsageWindowStore, events EventStore, alerts BreachAlerter, rules Rules, collector *metrics.Collector) *Analyzer {
	return &Analyzer{
		usage:   usage,
		events:  events,
		alerts:  alerts,
		rules:   rules,
		metrics: collector,
		now:     time.Now,
		logger:  utils.NewLogger("anomaly-analyzer"),
	}
}

// Detect evaluates every key seen in the last lookbackHours, or only keyID
// when given. Anomalies above PersistRiskThreshold are stored as events and
// handed to the alerter.
func (a *Analyzer) Detect(ctx context.Context, lookbackHours int, keyID *uuid.UUID) ([]models.Anomaly, error) {
	if lookbackHours < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLookback, lookbackHours)
	}
	if lookbackHours == 0 {
		lookbackHours = DefaultLookbackHours
	}

	since := a.now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	entries, err := a.usage.ListSince(ctx, since, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage logs: %w", err)
	}

	byKey := make(map[uuid.UUID][]*models.UsageLogEntry)
	for _, e := range entries {
		byKey[e.KeyID] = append(byKey[e.KeyID], e)
	}

	keys := make([]uuid.UUID, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	// Each key is evaluated on its own goroutine; results land in per-index slots.
	results := make([][]models.Anomaly, len(keys))
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func(i int, k uuid.UUID) {
			defer wg.Done()
			results[i] = a.rules.Evaluate(k, KeyStatsFor(byKey[k]), lookbackHours)
		}(i, k)
	}
	wg.Wait()

	var anomalies []models.Anomaly
	for _, r := range results {
		anomalies = append(anomalies, r...)
	}

	for _, anomaly := range anomalies {
		a.metrics.AnomalyDetected(string(anomaly.Type))
		if anomaly.RiskScore <= PersistRiskThreshold {
			continue
		}
		if err := a.persist(ctx, anomaly); err != nil {
			return anomalies, err
		}
		if a.alerts != nil {
			if _, err := a.alerts.FromAnomaly(ctx, anomaly); err != nil {
				return anomalies, fmt.Errorf("failed to raise breach alert: %w", err)
			}
		}
	}

	a.logger.Info("Anomaly detection complete",
		"lookback_hours", lookbackHours,
		"keys", len(keys),
		"entries", len(entries),
		"anomalies", len(anomalies))

	return anomalies, nil
}

func (a *Analyzer) persist(ctx context.Context, anomaly models.Anomaly) error {
	event := &models.SecurityEvent{
		ID:        uuid.New(),
		EventType: anomaly.Type.EventType(),
		Source:    AnalyzerSource,
		Severity:  anomaly.Severity,
		Payload: models.JSONB{
			"key_id":       anomaly.KeyID.String(),
			"anomaly_type": string(anomaly.Type),
			"description":  anomaly.Description,
			"risk_score":   anomaly.RiskScore,
		},
		CreatedAt: a.now().UTC(),
	}
	if err := a.events.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record anomaly event: %w", err)
	}
	return nil
}
