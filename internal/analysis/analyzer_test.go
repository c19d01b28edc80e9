package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/alerting"
	"sentinel/internal/models"
)

var detectNow = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestAnalyzer(usage *fakeUsageStore) (*Analyzer, *fakeEventStore, *fakeAlertStore) {
	events := &fakeEventStore{}
	alerts := newFakeAlertStore()
	a := NewAnalyzer(usage, events, alerting.NewManager(alerts, nil), DefaultRules(), nil)
	a.now = func() time.Time { return detectNow }
	return a, events, alerts
}

func callsFor(key uuid.UUID, n int, cost string, failEvery int, ips int) []*models.UsageLogEntry {
	entries := make([]*models.UsageLogEntry, 0, n)
	for i := 0; i < n; i++ {
		success := failEvery == 0 || i%failEvery != 0
		ip := ""
		if ips > 0 {
			ip = fmt.Sprintf("10.0.0.%d", i%ips)
		}
		ts := detectNow.Add(-time.Duration(i%50) * time.Minute)
		entries = append(entries, usageEntry(key, "openai", ts, cost, success, ip))
	}
	return entries
}

func TestRules_Evaluate(t *testing.T) {
	rules := DefaultRules()
	key := uuid.New()

	t.Run("quiet key", func(t *testing.T) {
		assert.Empty(t, rules.Evaluate(key, KeyStats{Calls: 100, Errors: 5, TotalCost: 1, UniqueIPs: 2}, 24))
	})

	t.Run("no calls", func(t *testing.T) {
		assert.Nil(t, rules.Evaluate(key, KeyStats{}, 24))
	})

	t.Run("frequency", func(t *testing.T) {
		got := rules.Evaluate(key, KeyStats{Calls: 31}, 1)
		require.Len(t, got, 1)
		assert.Equal(t, models.AnomalyFrequency, got[0].Type)
		assert.Equal(t, models.SeverityMedium, got[0].Severity)
		assert.InDelta(t, 61.0, got[0].RiskScore, 1e-9)
	})

	t.Run("frequency at boundary", func(t *testing.T) {
		assert.Empty(t, rules.Evaluate(key, KeyStats{Calls: 30}, 1))
	})

	t.Run("error rate medium and high", func(t *testing.T) {
		got := rules.Evaluate(key, KeyStats{Calls: 10, Errors: 5}, 24)
		require.Len(t, got, 1)
		assert.Equal(t, models.SeverityMedium, got[0].Severity)
		assert.InDelta(t, 70.0, got[0].RiskScore, 1e-9)

		got = rules.Evaluate(key, KeyStats{Calls: 10, Errors: 6}, 24)
		require.Len(t, got, 1)
		assert.Equal(t, models.SeverityHigh, got[0].Severity)
		assert.InDelta(t, 80.0, got[0].RiskScore, 1e-9)

		assert.Empty(t, rules.Evaluate(key, KeyStats{Calls: 10, Errors: 2}, 24))
	})

	t.Run("ip diversity needs both conditions", func(t *testing.T) {
		got := rules.Evaluate(key, KeyStats{Calls: 51, UniqueIPs: 11}, 24)
		require.Len(t, got, 1)
		assert.Equal(t, models.AnomalyIPDiversity, got[0].Type)
		assert.InDelta(t, 41.0, got[0].RiskScore, 1e-9)

		assert.Empty(t, rules.Evaluate(key, KeyStats{Calls: 50, UniqueIPs: 11}, 24))
		assert.Empty(t, rules.Evaluate(key, KeyStats{Calls: 51, UniqueIPs: 10}, 24))
	})

	t.Run("cost per request", func(t *testing.T) {
		got := rules.Evaluate(key, KeyStats{Calls: 4, TotalCost: 1}, 24)
		require.Len(t, got, 1)
		assert.Equal(t, models.AnomalyCost, got[0].Type)
		assert.Equal(t, models.SeverityLow, got[0].Severity)
		assert.InDelta(t, 45.0, got[0].RiskScore, 1e-9)
	})
}

func TestAnalyzer_BreachThreshold(t *testing.T) {
	tests := []struct {
		name       string
		calls      int
		wantRisk   float64
		wantAlerts int
		wantEvents int
	}{
		{"risk 71 raises a breach alert", 41, 71, 1, 1},
		{"risk 70 is recorded but not alerted", 40, 70, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := uuid.New()
			analyzer, events, alerts := newTestAnalyzer(&fakeUsageStore{entries: callsFor(key, tt.calls, "0.01", 0, 1)})

			anomalies, err := analyzer.Detect(context.Background(), 1, nil)
			require.NoError(t, err)
			require.Len(t, anomalies, 1)
			assert.InDelta(t, tt.wantRisk, anomalies[0].RiskScore, 1e-9)

			assert.Len(t, events.events, tt.wantEvents)
			assert.Equal(t, models.EventFrequencyAnomaly, events.events[0].EventType)
			assert.Equal(t, AnalyzerSource, events.events[0].Source)

			active, err := alerts.ListActive(context.Background(), 0)
			require.NoError(t, err)
			require.Len(t, active, tt.wantAlerts)
			if tt.wantAlerts > 0 {
				assert.Equal(t, models.AlertSecurityBreach, active[0].AlertType)
				assert.Contains(t, active[0].Message, "71.0")
			}
		})
	}
}

func TestAnalyzer_LowRiskNotPersisted(t *testing.T) {
	key := uuid.New()
	// avg cost 0.2 -> risk 40
	analyzer, events, _ := newTestAnalyzer(&fakeUsageStore{entries: callsFor(key, 5, "0.2", 0, 1)})

	anomalies, err := analyzer.Detect(context.Background(), 24, nil)
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.AnomalyCost, anomalies[0].Type)
	assert.Empty(t, events.events)
}

func TestAnalyzer_MultipleKeysAndFilter(t *testing.T) {
	noisy := uuid.New()
	quiet := uuid.New()
	var entries []*models.UsageLogEntry
	entries = append(entries, callsFor(noisy, 60, "0.01", 2, 20)...)
	entries = append(entries, callsFor(quiet, 5, "0.01", 0, 1)...)

	analyzer, events, _ := newTestAnalyzer(&fakeUsageStore{entries: entries})

	anomalies, err := analyzer.Detect(context.Background(), 0, nil)
	require.NoError(t, err)

	types := map[models.AnomalyType]bool{}
	for _, a := range anomalies {
		assert.Equal(t, noisy, a.KeyID)
		types[a.Type] = true
	}
	assert.True(t, types[models.AnomalyErrorRate])
	assert.True(t, types[models.AnomalyIPDiversity])
	assert.NotEmpty(t, events.events)

	only, err := analyzer.Detect(context.Background(), 24, &quiet)
	require.NoError(t, err)
	assert.Empty(t, only)
}

func TestAnalyzer_Errors(t *testing.T) {
	analyzer, _, _ := newTestAnalyzer(&fakeUsageStore{err: errStoreDown})
	_, err := analyzer.Detect(context.Background(), 24, nil)
	assert.ErrorIs(t, err, errStoreDown)

	_, err = analyzer.Detect(context.Background(), -1, nil)
	assert.ErrorIs(t, err, ErrInvalidLookback)

	key := uuid.New()
	analyzer, events, _ := newTestAnalyzer(&fakeUsageStore{entries: callsFor(key, 41, "0.01", 0, 1)})
	events.err = errStoreDown
	_, err = analyzer.Detect(context.Background(), 1, nil)
	assert.ErrorIs(t, err, errStoreDown)
}
