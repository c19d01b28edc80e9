package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert is an operator-facing notification. AlertHash is unique, which limits
// alerts to one per (type, scope, calendar day).
type Alert struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	AlertType       AlertType  `db:"alert_type" json:"alert_type"`
	Severity        Severity   `db:"severity" json:"severity"`
	APIKeyID        *uuid.UUID `db:"api_key_id" json:"api_key_id,omitempty"`
	ServiceProvider *string    `db:"service_provider" json:"service_provider,omitempty"`
	Title           string     `db:"title" json:"title"`
	Message         string     `db:"message" json:"message"`
	ThresholdValue  *float64   `db:"threshold_value" json:"threshold_value,omitempty"`
	ActualValue     *float64   `db:"actual_value" json:"actual_value,omitempty"`
	AlertHash       string     `db:"alert_hash" json:"alert_hash"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	IsAcknowledged  bool       `db:"is_acknowledged" json:"is_acknowledged"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
