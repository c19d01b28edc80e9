// Package analysis turns raw usage logs into cost analysis records and
// per-key anomaly reports.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"sentinel/internal/models"
	"sentinel/internal/utils"
)

// UsageStore reads usage logs for a time range
type UsageStore interface {
	ListBetween(ctx context.Context, start, end time.Time) ([]*models.UsageLogEntry, error)
}

// CostAnalysisStore writes cost analysis records keyed by date and period
type CostAnalysisStore interface {
	Upsert(ctx context.Context, record *models.CostAnalysisRecord) error
}

// Aggregator reduces usage logs to a CostAnalysisRecord
type Aggregator struct {
	usage   UsageStore
	records CostAnalysisStore
	logger  *utils.Logger
}

// NewAggregator creates a usage aggregator
func NewAggregator(usage UsageStore, records CostAnalysisStore) *Aggregator {
	return &Aggregator{
		usage:   usage,
		records: records,
		logger:  utils.NewLogger("aggregator"),
	}
}

// Totals is the service-wide reduction of a set of usage entries
type Totals struct {
	Cost       decimal.Decimal
	Calls      int64
	Errors     int64
	ResponseMS int64
}

// Summarize groups entries by provider. Providers are returned sorted by name.
func Summarize(entries []*models.UsageLogEntry) (Totals, []*models.ProviderUsage) {
	byProvider := make(map[string]*models.ProviderUsage)
	var totals Totals

	for _, e := range entries {
		p, ok := byProvider[e.ServiceProvider]
		if !ok {
			p = &models.ProviderUsage{Provider: e.ServiceProvider}
			byProvider[e.ServiceProvider] = p
		}

		p.TotalCost = p.TotalCost.Add(e.CostAmount)
		p.TotalCalls++
		p.TotalResponseMS += int64(e.ResponseTimeMS)
		if !e.Success {
			p.TotalErrors++
		}

		totals.Cost = totals.Cost.Add(e.CostAmount)
		totals.Calls++
		totals.ResponseMS += int64(e.ResponseTimeMS)
		if !e.Success {
			totals.Errors++
		}
	}

	providers := make([]*models.ProviderUsage, 0, len(byProvider))
	for _, p := range byProvider {
		p.CostPerCall = CostPerCall(p.TotalCost.InexactFloat64(), p.TotalCalls)
		p.ErrorRate = ErrorRate(p.TotalErrors, p.TotalCalls)
		if p.TotalCalls > 0 {
			p.AvgResponseMS = float64(p.TotalResponseMS) / float64(p.TotalCalls)
		}
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Provider < providers[j].Provider })

	return totals, providers
}

// Analyze aggregates the period ending on date and upserts the result.
func (a *Aggregator) Analyze(ctx context.Context, date time.Time, period models.PeriodType) (*models.CostAnalysisRecord, error) {
	start, end, days, err := PeriodRange(date, period)
	if err != nil {
		return nil, err
	}

	entries, err := a.usage.ListBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage logs: %w", err)
	}

	totals, providers := Summarize(entries)
	totalCost := totals.Cost.InexactFloat64()
	costPerCall := CostPerCall(totalCost, totals.Calls)
	errorRate := ErrorRate(totals.Errors, totals.Calls)

	record := &models.CostAnalysisRecord{
		AnalysisDate:         Day(date),
		PeriodType:           period,
		TotalCost:            totals.Cost,
		TotalCalls:           totals.Calls,
		TotalErrors:          totals.Errors,
		CostPerCall:          costPerCall,
		CostEfficiencyScore:  CostEfficiencyScore(errorRate, costPerCall),
		ProjectedMonthlyCost: ProjectedMonthlyCost(totalCost, days),
		ProviderBreakdown:    providerBreakdown(providers),
	}

	if err := a.records.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store cost analysis: %w", err)
	}

	a.logger.Info("Cost analysis stored",
		"date", record.AnalysisDate.Format("2006-01-02"),
		"period", period,
		"total_cost", totals.Cost.StringFixed(2),
		"calls", totals.Calls,
		"providers", len(providers))

	return record, nil
}

func providerBreakdown(providers []*models.ProviderUsage) models.JSONB {
	breakdown := make(models.JSONB, len(providers))
	for _, p := range providers {
		breakdown[p.Provider] = map[string]any{
			"total_cost":        p.TotalCost.String(),
			"total_calls":       p.TotalCalls,
			"total_errors":      p.TotalErrors,
			"total_response_ms": p.TotalResponseMS,
			"cost_per_call":     p.CostPerCall,
			"error_rate":        p.ErrorRate,
			"avg_response_ms":   p.AvgResponseMS,
		}
	}
	return breakdown
}
