package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/models"
)

// DefaultEventListLimit caps List when the filter carries no limit
const DefaultEventListLimit = 100

// MaxEventListLimit is the largest page List will return
const MaxEventListLimit = 1000

const insertEventSQL = `
	INSERT INTO security_events (id, event_type, source, severity, payload, user_id, ip_hash, created_at)
	VALUES (:id, :event_type, :source, :severity, :payload, :user_id, :ip_hash, :created_at)
`

// EventRepository handles security event persistence
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

func prepareEvent(event *models.SecurityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Payload == nil {
		event.Payload = models.JSONB{}
	}
}

// Create inserts a single security event
func (r *EventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	prepareEvent(event)
	if _, err := r.db.conn.NamedExecContext(ctx, insertEventSQL, event); err != nil {
		return fmt.Errorf("failed to create security event: %w", err)
	}
	return nil
}

// CreateBatch inserts events in one transaction. Either all rows land or none.
func (r *EventRepository) CreateBatch(ctx context.Context, events []*models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		prepareEvent(event)
		if _, err := stmt.ExecContext(ctx, event); err != nil {
			return fmt.Errorf("failed to insert security event %s: %w", event.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error) {
	query, args := buildEventQuery(filter)

	var events []*models.SecurityEvent
	if err := r.db.conn.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	return events, nil
}

// CountByType returns event counts grouped by event type for the window
func (r *EventRepository) CountByType(ctx context.Context, since, until time.Time) (map[models.EventType]int64, error) {
	query := `
		SELECT event_type, COUNT(*) AS count
		FROM security_events
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY event_type
	`

	rows, err := r.db.conn.QueryxContext(ctx, query, since, until)
	if err != nil {
		return nil, fmt.Errorf("failed to count security events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventType]int64)
	for rows.Next() {
		var eventType models.EventType
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}

func buildEventQuery(filter models.EventFilter) (string, []interface{}) {
	whereClauses := []string{}
	args := []interface{}{}
	argCount := 1

	if filter.EventType != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("event_type = $%d", argCount))
		args = append(args, filter.EventType)
		argCount++
	}
	if filter.Severity != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("severity = $%d", argCount))
		args = append(args, filter.Severity)
		argCount++
	}
	if filter.Source != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("source = $%d", argCount))
		args = append(args, filter.Source)
		argCount++
	}
	if filter.UserID != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("user_id = $%d", argCount))
		args = append(args, filter.UserID)
		argCount++
	}
	if filter.IPHash != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("ip_hash = $%d", argCount))
		args = append(args, filter.IPHash)
		argCount++
	}
	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at >= $%d", argCount))
		args = append(args, filter.Since)
		argCount++
	}
	if !filter.Until.IsZero() {
		whereClauses = append(whereClauses, fmt.Sprintf("created_at < $%d", argCount))
		args = append(args, filter.Until)
		argCount++
	}

	query := `
		SELECT id, event_type, source, severity, payload, user_id, ip_hash, created_at
		FROM security_events
	`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventListLimit
	}
	if limit > MaxEventListLimit {
		limit = MaxEventListLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	return query, args
}
