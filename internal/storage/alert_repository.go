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

// AlertRepository handles alert persistence. alert_hash is unique, so a second
// insert for the same hash fails with ErrDuplicateAlert.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert stores a new alert
func (r *AlertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (
			id, alert_type, severity, api_key_id, service_provider, title, message,
			threshold_value, actual_value, alert_hash, is_active, is_acknowledged, created_at
		) VALUES (
			:id, :alert_type, :severity, :api_key_id, :service_provider, :title, :message,
			:threshold_value, :actual_value, :alert_hash, :is_active, :is_acknowledged, :created_at
		)
	`

	if _, err := r.db.conn.NamedExecContext(ctx, query, alert); err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateAlert
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID retrieves an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	query := `
		SELECT id, alert_type, severity, api_key_id, service_provider, title, message,
		       threshold_value, actual_value, alert_hash, is_active, is_acknowledged, created_at
		FROM alerts
		WHERE id = $1
	`

	var alert models.Alert
	err := r.db.conn.GetContext(ctx, &alert, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// GetByHash retrieves the alert holding a dedup hash
func (r *AlertRepository) GetByHash(ctx context.Context, hash string) (*models.Alert, error) {
	query := `
		SELECT id, alert_type, severity, api_key_id, service_provider, title, message,
		       threshold_value, actual_value, alert_hash, is_active, is_acknowledged, created_at
		FROM alerts
		WHERE alert_hash = $1
	`

	var alert models.Alert
	err := r.db.conn.GetContext(ctx, &alert, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by hash: %w", err)
	}
	return &alert, nil
}

// Acknowledge marks an alert as seen by an operator
func (r *AlertRepository) Acknowledge(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, "UPDATE alerts SET is_acknowledged = TRUE WHERE id = $1", id)
}

// Deactivate closes an alert
func (r *AlertRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.setFlag(ctx, "UPDATE alerts SET is_active = FALSE WHERE id = $1", id)
}

func (r *AlertRepository) setFlag(ctx context.Context, query string, id uuid.UUID) error {
	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListActive returns active alerts, newest first
func (r *AlertRepository) ListActive(ctx context.Context, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, alert_type, severity, api_key_id, service_provider, title, message,
		       threshold_value, actual_value, alert_hash, is_active, is_acknowledged, created_at
		FROM alerts
		WHERE is_active = TRUE
		ORDER BY created_at DESC
		LIMIT $1
	`

	var alerts []*models.Alert
	if err := r.db.conn.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}
