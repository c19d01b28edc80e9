package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sentinel/internal/models"
	"sentinel/internal/storage"
)

var errStoreDown = errors.New("connection refused")

type fakeUsageStore struct {
	entries []*models.UsageLogEntry
	err     error
}

func (f *fakeUsageStore) ListBetween(ctx context.Context, start, end time.Time) ([]*models.UsageLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.UsageLogEntry
	for _, e := range f.entries {
		if !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeUsageStore) ListSince(ctx context.Context, since time.Time, keyID *uuid.UUID) ([]*models.UsageLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.UsageLogEntry
	for _, e := range f.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		if keyID != nil && e.KeyID != *keyID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.CostAnalysisRecord
	err     error
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[string]*models.CostAnalysisRecord{}}
}

func (f *fakeRecordStore) Upsert(ctx context.Context, record *models.CostAnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := record.AnalysisDate.Format("2006-01-02") + "/" + string(record.PeriodType)
	if existing, ok := f.records[key]; ok {
		record.ID = existing.ID
	} else if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records[key] = record
	return nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []*models.SecurityEvent
	err    error
}

func (f *fakeEventStore) Create(ctx context.Context, event *models.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

// fakeAlertStore enforces the unique alert hash like the database does
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts []*models.Alert
	hashes map[string]bool
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{hashes: map[string]bool{}}
}

func (f *fakeAlertStore) Insert(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[alert.AlertHash] {
		return storage.ErrDuplicateAlert
	}
	f.hashes[alert.AlertHash] = true
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAlertStore) Acknowledge(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeAlertStore) Deactivate(ctx context.Context, id uuid.UUID) error  { return nil }
func (f *fakeAlertStore) ListActive(ctx context.Context, limit int) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Alert(nil), f.alerts...), nil
}

func usageEntry(keyID uuid.UUID, provider string, ts time.Time, cost string, success bool, ip string) *models.UsageLogEntry {
	e := &models.UsageLogEntry{
		ID:              uuid.New(),
		KeyID:           keyID,
		ServiceProvider: provider,
		Timestamp:       ts,
		Success:         success,
		CostAmount:      decimal.RequireFromString(cost),
		ResponseTimeMS:  100,
	}
	if ip != "" {
		e.SourceIP = &ip
	}
	return e
}
