package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// APIKey is an upstream-service credential whose calls are recorded in usage logs.
type APIKey struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	ServiceProvider string     `db:"service_provider" json:"service_provider"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// IsExpired checks if the key has expired at now.
func (k *APIKey) IsExpired(now time.Time) bool {
	if k.ExpiresAt == nil {
		return false
	}
	return now.After(*k.ExpiresAt)
}

// DaysUntilExpiry returns ceil((expiresAt - now) / 24h). ok is false when the
// key never expires.
func (k *APIKey) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	if k.ExpiresAt == nil {
		return 0, false
	}
	return int(math.Ceil(k.ExpiresAt.Sub(now).Hours() / 24)), true
}
