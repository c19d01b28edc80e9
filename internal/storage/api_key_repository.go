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

// APIKeyRepository handles API key lookups
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetByID retrieves an API key by ID, served from cache when possible
func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	if key, ok := r.db.apiKeyCache.Get(id); ok {
		return key, nil
	}

	query := `
		SELECT id, name, service_provider, is_active, expires_at, created_at
		FROM api_keys
		WHERE id = $1
	`

	var key models.APIKey
	err := r.db.conn.GetContext(ctx, &key, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	r.db.apiKeyCache.Set(id, &key)
	return &key, nil
}

// ListExpiring returns active keys expiring at or before cutoff, already
// expired ones included
func (r *APIKeyRepository) ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.APIKey, error) {
	query := `
		SELECT id, name, service_provider, is_active, expires_at, created_at
		FROM api_keys
		WHERE is_active = TRUE
		  AND expires_at IS NOT NULL
		  AND expires_at <= $1
		ORDER BY expires_at
	`

	var keys []*models.APIKey
	if err := r.db.conn.SelectContext(ctx, &keys, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expiring API keys: %w", err)
	}
	return keys, nil
}
