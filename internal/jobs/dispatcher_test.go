package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/alerting"
	"sentinel/internal/analysis"
	"sentinel/internal/forecast"
	"sentinel/internal/models"
	"sentinel/internal/storage"
)

var errStoreDown = errors.New("connection refused")

// fakeStore backs every component with in-memory tables
type fakeStore struct {
	mu      sync.Mutex
	usage   []*models.UsageLogEntry
	records []*models.CostAnalysisRecord
	events  []*models.SecurityEvent
	alerts  []*models.Alert
	hashes  map[string]bool
	keys    []*models.APIKey
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{hashes: map[string]bool{}}
}

func (s *fakeStore) ListBetween(ctx context.Context, start, end time.Time) ([]*models.UsageLogEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.UsageLogEntry
	for _, e := range s.usage {
		if !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ListSince(ctx context.Context, since time.Time, keyID *uuid.UUID) ([]*models.UsageLogEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.UsageLogEntry
	for _, e := range s.usage {
		if !e.Timestamp.Before(since) && (keyID == nil || *keyID == e.KeyID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Upsert(ctx context.Context, record *models.CostAnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) Latest(ctx context.Context, period models.PeriodType) (*models.CostAnalysisRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.records) == 0 {
		return nil, storage.ErrCostAnalysisNotFound
	}
	return s.records[len(s.records)-1], nil
}

type historyStore struct{ records []*models.CostAnalysisRecord }

func (h historyStore) ListSince(ctx context.Context, period models.PeriodType, since time.Time) ([]*models.CostAnalysisRecord, error) {
	return h.records, nil
}

func (s *fakeStore) Create(ctx context.Context, event *models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) Insert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[alert.AlertHash] {
		return storage.ErrDuplicateAlert
	}
	s.hashes[alert.AlertHash] = true
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *fakeStore) Acknowledge(ctx context.Context, id uuid.UUID) error { return nil }
func (s *fakeStore) Deactivate(ctx context.Context, id uuid.UUID) error  { return nil }
func (s *fakeStore) ListActive(ctx context.Context, limit int) ([]*models.Alert, error) {
	return s.alerts, nil
}

func (s *fakeStore) ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.ExpiresAt != nil && !k.ExpiresAt.After(cutoff) {
			out = append(out, k)
		}
	}
	return out, nil
}

func newTestDispatcher(store *fakeStore, history []*models.CostAnalysisRecord, budget float64) *Dispatcher {
	manager := alerting.NewManager(store, nil)
	d := NewDispatcher(Components{
		Aggregator:    analysis.NewAggregator(store, store),
		Analyzer:      analysis.NewAnalyzer(store, store, manager, analysis.DefaultRules(), nil),
		Alerts:        manager,
		ExpiryScanner: alerting.NewExpiryScanner(store, manager),
		Forecaster:    forecast.NewForecaster(historyStore{records: history}),
		Records:       store,
		MonthlyBudget: budget,
	})
	return d
}

func req(op string, params string) Request {
	r := Request{Operation: op}
	if params != "" {
		r.Params = json.RawMessage(params)
	}
	return r
}

func TestDispatch_AnalyzeCostsWithBudgetAlert(t *testing.T) {
	store := newFakeStore()
	key := uuid.New()
	day := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		store.usage = append(store.usage, &models.UsageLogEntry{
			ID: uuid.New(), KeyID: key, ServiceProvider: "openai", Timestamp: day,
			Success: true, CostAmount: decimal.NewFromInt(25),
		})
	}

	d := newTestDispatcher(store, nil, 1000)
	out, err := d.Dispatch(context.Background(), req(OpAnalyzeCosts, `{"date":"2025-02-03","period_type":"daily"}`))
	require.NoError(t, err)

	record := out.(*models.CostAnalysisRecord)
	assert.True(t, decimal.NewFromInt(100).Equal(record.TotalCost))
	assert.InDelta(t, 3000.0, record.ProjectedMonthlyCost, 1e-9)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, models.AlertCostThreshold, store.alerts[0].AlertType)
}

func TestDispatch_DefaultsAndEmptyParams(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), nil, 0)

	out, err := d.Dispatch(context.Background(), req(OpAnalyzeCosts, ""))
	require.NoError(t, err)
	assert.Equal(t, models.PeriodDaily, out.(*models.CostAnalysisRecord).PeriodType)

	out, err = d.Dispatch(context.Background(), req(OpDetectAnomalies, "null"))
	require.NoError(t, err)
	assert.Equal(t, 0, out.(*DetectAnomaliesResult).Count)
}

func TestDispatch_ClientErrors(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), nil, 0)

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown operation", req("reboot", "")},
		{"bad date", req(OpAnalyzeCosts, `{"date":"03/02/2025"}`)},
		{"bad period", req(OpAnalyzeCosts, `{"period_type":"hourly"}`)},
		{"unknown field", req(OpForecastCosts, `{"horizon":5}`)},
		{"bad key id", req(OpDetectAnomalies, `{"key_id":"nope"}`)},
		{"negative lookback", req(OpDetectAnomalies, `{"lookback_hours":-2}`)},
		{"negative days ahead", req(OpScanKeyExpiry, `{"days_ahead":-1}`)},
		{"insufficient history", req(OpForecastCosts, `{"days":10}`)},
		{"malformed json", req(OpScanKeyExpiry, `{`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsClientError(err), "expected client error, got %v", err)
		})
	}
}

func TestDispatch_StoreFailureIsServerError(t *testing.T) {
	store := newFakeStore()
	store.err = errStoreDown
	d := newTestDispatcher(store, nil, 0)

	for _, op := range []string{OpAnalyzeCosts, OpDetectAnomalies, OpCheckAlerts} {
		_, err := d.Dispatch(context.Background(), req(op, ""))
		require.Error(t, err, op)
		assert.False(t, IsClientError(err), op)
		assert.ErrorIs(t, err, errStoreDown, op)
	}
}

func TestDispatch_ForecastCosts(t *testing.T) {
	history := make([]*models.CostAnalysisRecord, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, &models.CostAnalysisRecord{
			AnalysisDate: time.Now().UTC().AddDate(0, 0, -10+i),
			PeriodType:   models.PeriodDaily,
			TotalCost:    decimal.NewFromInt(4),
		})
	}

	d := newTestDispatcher(newFakeStore(), history, 0)
	out, err := d.Dispatch(context.Background(), req(OpForecastCosts, `{"days":5}`))
	require.NoError(t, err)

	f := out.(*forecast.Forecast)
	assert.Len(t, f.Projections, 5)
	assert.InDelta(t, 20.0, f.TotalProjected, 1e-9)
	assert.Equal(t, forecast.TrendStable, f.Trend)
}

func TestDispatch_CheckAlertsAndExpiryScan(t *testing.T) {
	store := newFakeStore()
	soon := time.Now().Add(3 * 24 * time.Hour)
	store.keys = []*models.APIKey{{ID: uuid.New(), Name: "prod", ServiceProvider: "openai", IsActive: true, ExpiresAt: &soon}}
	store.records = []*models.CostAnalysisRecord{{
		AnalysisDate:         time.Now().UTC(),
		PeriodType:           models.PeriodDaily,
		ProjectedMonthlyCost: 5000,
	}}

	d := newTestDispatcher(store, nil, 1000)

	out, err := d.Dispatch(context.Background(), req(OpCheckAlerts, ""))
	require.NoError(t, err)
	res := out.(*CheckAlertsResult)
	assert.True(t, res.CostAlertCreated)
	assert.Equal(t, alerting.ScanResult{Scanned: 1, Created: 1}, res.Expiry)

	out, err = d.Dispatch(context.Background(), req(OpScanKeyExpiry, `{"days_ahead":7}`))
	require.NoError(t, err)
	assert.Equal(t, alerting.ScanResult{Scanned: 1, Duplicates: 1}, out)
}

func TestDispatch_CheckAlertsWithoutHistory(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), nil, 1000)
	out, err := d.Dispatch(context.Background(), req(OpCheckAlerts, "{}"))
	require.NoError(t, err)
	assert.False(t, out.(*CheckAlertsResult).CostAlertCreated)
}
