package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostAnalysisRecord holds aggregated usage for one (AnalysisDate, PeriodType).
// Re-running an analysis for the same pair overwrites the row.
type CostAnalysisRecord struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	AnalysisDate         time.Time       `db:"analysis_date" json:"analysis_date"`
	PeriodType           PeriodType      `db:"period_type" json:"period_type"`
	TotalCost            decimal.Decimal `db:"total_cost" json:"total_cost"`
	TotalCalls           int64           `db:"total_calls" json:"total_calls"`
	TotalErrors          int64           `db:"total_errors" json:"total_errors"`
	CostPerCall          float64         `db:"cost_per_call" json:"cost_per_call"`
	CostEfficiencyScore  float64         `db:"cost_efficiency_score" json:"cost_efficiency_score"`
	ProjectedMonthlyCost float64         `db:"projected_monthly_cost" json:"projected_monthly_cost"`
	ProviderBreakdown    JSONB           `db:"provider_breakdown" json:"provider_breakdown"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// ProviderUsage is the per-provider slice of a cost analysis.
type ProviderUsage struct {
	Provider        string          `json:"provider"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalCalls      int64           `json:"total_calls"`
	TotalErrors     int64           `json:"total_errors"`
	TotalResponseMS int64           `json:"total_response_ms"`
	CostPerCall     float64         `json:"cost_per_call"`
	ErrorRate       float64         `json:"error_rate"`
	AvgResponseMS   float64         `json:"avg_response_ms"`
}
