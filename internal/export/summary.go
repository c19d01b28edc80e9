// Package export builds downstream snapshots of stored security events and
// writes them to a local file or an S3 bucket.
package export

import (
	"sort"
	"time"

	"sentinel/internal/models"
)

// Summary aggregates a set of security events for downstream consumers.
type Summary struct {
	Total      int                      `json:"total"`
	ByType     map[models.EventType]int `json:"by_type"`
	BySeverity map[models.Severity]int  `json:"by_severity"`
	BySource   map[string]int           `json:"by_source"`
	First      *time.Time               `json:"first_event_at,omitempty"`
	Last       *time.Time               `json:"last_event_at,omitempty"`
	TopTypes   []TypeCount              `json:"top_types,omitempty"`
}

// TypeCount is one entry of Summary.TopTypes.
type TypeCount struct {
	EventType models.EventType `json:"event_type"`
	Count     int              `json:"count"`
}

// Snapshot is the document written by a Writer.
type Snapshot struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Filter      models.EventFilter      `json:"filter"`
	Summary     Summary                 `json:"summary"`
	Events      []*models.SecurityEvent `json:"events"`
}

// Summarize counts events by type, severity and source and records the
// time range they cover. Nil entries are skipped.
func Summarize(events []*models.SecurityEvent) Summary {
	s := Summary{
		ByType:     make(map[models.EventType]int),
		BySeverity: make(map[models.Severity]int),
		BySource:   make(map[string]int),
	}

	for _, e := range events {
		if e == nil {
			continue
		}
		s.Total++
		s.ByType[e.EventType]++
		s.BySeverity[e.Severity]++
		s.BySource[e.Source]++

		at := e.CreatedAt
		if s.First == nil || at.Before(*s.First) {
			s.First = &at
		}
		if s.Last == nil || at.After(*s.Last) {
			last := at
			s.Last = &last
		}
	}

	for t, n := range s.ByType {
		s.TopTypes = append(s.TopTypes, TypeCount{EventType: t, Count: n})
	}
	sort.Slice(s.TopTypes, func(i, j int) bool {
		if s.TopTypes[i].Count != s.TopTypes[j].Count {
			return s.TopTypes[i].Count > s.TopTypes[j].Count
		}
		return s.TopTypes[i].EventType < s.TopTypes[j].EventType
	})

	return s
}

// NewSnapshot summarizes events and stamps the snapshot with now.
func NewSnapshot(filter models.EventFilter, events []*models.SecurityEvent, now time.Time) *Snapshot {
	if events == nil {
		events = []*models.SecurityEvent{}
	}
	return &Snapshot{
		GeneratedAt: now.UTC(),
		Filter:      filter,
		Summary:     Summarize(events),
		Events:      events,
	}
}
