package models

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEvent is an immutable telemetry record written by the client
// capturer (through the ingest endpoint) or by the anomaly analyzer.
type SecurityEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	EventType EventType `db:"event_type" json:"event_type"`
	Source    string    `db:"source" json:"source"`
	Severity  Severity  `db:"severity" json:"severity"`
	Payload   JSONB     `db:"payload" json:"payload,omitempty"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	IPHash    *string   `db:"ip_hash" json:"ip_hash,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EventFilter selects SecurityEvents for downstream readers. Zero values are ignored.
type EventFilter struct {
	EventType EventType
	Severity  Severity
	Source    string
	UserID    string
	IPHash    string
	Since     time.Time
	Until     time.Time
	Limit     int
}
