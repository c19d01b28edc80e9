package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/models"
)

// CostAnalysisRepository persists aggregated cost records
type CostAnalysisRepository struct {
	db *DB
}

// NewCostAnalysisRepository creates a new cost analysis repository
func NewCostAnalysisRepository(db *DB) *CostAnalysisRepository {
	return &CostAnalysisRepository{db: db}
}

// Upsert writes the record, replacing any row with the same date and period.
// The stored id and timestamps are written back into record.
func (r *CostAnalysisRepository) Upsert(ctx context.Context, record *models.CostAnalysisRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.ProviderBreakdown == nil {
		record.ProviderBreakdown = models.JSONB{}
	}

	query := `
		INSERT INTO cost_analysis (
			id, analysis_date, period_type, total_cost, total_calls, total_errors,
			cost_per_call, cost_efficiency_score, projected_monthly_cost, provider_breakdown,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (analysis_date, period_type) DO UPDATE SET
			total_cost = EXCLUDED.total_cost,
			total_calls = EXCLUDED.total_calls,
			total_errors = EXCLUDED.total_errors,
			cost_per_call = EXCLUDED.cost_per_call,
			cost_efficiency_score = EXCLUDED.cost_efficiency_score,
			projected_monthly_cost = EXCLUDED.projected_monthly_cost,
			provider_breakdown = EXCLUDED.provider_breakdown,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		record.ID,
		record.AnalysisDate,
		record.PeriodType,
		record.TotalCost,
		record.TotalCalls,
		record.TotalErrors,
		record.CostPerCall,
		record.CostEfficiencyScore,
		record.ProjectedMonthlyCost,
		record.ProviderBreakdown,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cost analysis: %w", err)
	}
	return nil
}

// ListSince returns records of the given period on or after since, oldest first
func (r *CostAnalysisRepository) ListSince(ctx context.Context, period models.PeriodType, since time.Time) ([]*models.CostAnalysisRecord, error) {
	query := `
		SELECT id, analysis_date, period_type, total_cost, total_calls, total_errors,
		       cost_per_call, cost_efficiency_score, projected_monthly_cost, provider_breakdown,
		       created_at, updated_at
		FROM cost_analysis
		WHERE period_type = $1 AND analysis_date >= $2
		ORDER BY analysis_date
	`

	var records []*models.CostAnalysisRecord
	if err := r.db.conn.SelectContext(ctx, &records, query, period, since); err != nil {
		return nil, fmt.Errorf("failed to list cost analysis: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record for a period
func (r *CostAnalysisRepository) Latest(ctx context.Context, period models.PeriodType) (*models.CostAnalysisRecord, error) {
	query := `
		SELECT id, analysis_date, period_type, total_cost, total_calls, total_errors,
		       cost_per_call, cost_efficiency_score, projected_monthly_cost, provider_breakdown,
		       created_at, updated_at
		FROM cost_analysis
		WHERE period_type = $1
		ORDER BY analysis_date DESC
		LIMIT 1
	`

	var record models.CostAnalysisRecord
	err := r.db.conn.GetContext(ctx, &record, query, period)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCostAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cost analysis: %w", err)
	}
	return &record, nil
}
