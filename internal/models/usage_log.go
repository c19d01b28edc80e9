package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageLogEntry is one upstream API call made with a managed key.
// Entries are appended by the caller of the upstream service and are read-only here.
type UsageLogEntry struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	KeyID           uuid.UUID       `db:"key_id" json:"key_id"`
	ServiceProvider string          `db:"service_provider" json:"service_provider"`
	Timestamp       time.Time       `db:"timestamp" json:"timestamp"`
	Success         bool            `db:"success" json:"success"`
	CostAmount      decimal.Decimal `db:"cost_amount" json:"cost_amount"`
	ResponseTimeMS  int             `db:"response_time_ms" json:"response_time_ms"`
	SourceIP        *string         `db:"source_ip" json:"source_ip,omitempty"`
}
