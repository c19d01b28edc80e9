package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/models"
)

// UsageRepository reads upstream usage logs. Rows are written by the callers of
// the upstream services; this service never mutates them.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// ListBetween returns usage in [start, end). The provider falls back to the
// owning API key's provider when the log row leaves it blank.
func (r *UsageRepository) ListBetween(ctx context.Context, start, end time.Time) ([]*models.UsageLogEntry, error) {
	query := `
		SELECT u.id, u.key_id,
		       COALESCE(NULLIF(u.service_provider, ''), k.service_provider, 'unknown') AS service_provider,
		       u.timestamp, u.success, u.cost_amount, u.response_time_ms, u.source_ip
		FROM usage_logs u
		LEFT JOIN api_keys k ON k.id = u.key_id
		WHERE u.timestamp >= $1 AND u.timestamp < $2
		ORDER BY u.timestamp
	`

	var entries []*models.UsageLogEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query, start, end); err != nil {
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	return entries, nil
}

// ListSince returns usage at or after since, optionally restricted to one key
func (r *UsageRepository) ListSince(ctx context.Context, since time.Time, keyID *uuid.UUID) ([]*models.UsageLogEntry, error) {
	query := `
		SELECT id, key_id, service_provider, timestamp, success, cost_amount, response_time_ms, source_ip
		FROM usage_logs
		WHERE timestamp >= $1
	`
	args := []interface{}{since}
	if keyID != nil {
		query += " AND key_id = $2"
		args = append(args, *keyID)
	}
	query += " ORDER BY timestamp"

	var entries []*models.UsageLogEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	return entries, nil
}
