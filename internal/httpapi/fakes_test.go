package httpapi

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"sentinel/internal/jobs"
	"sentinel/internal/models"
	"sentinel/internal/storage"
)

type fakeQueue struct {
	mu     sync.Mutex
	events []*models.SecurityEvent
	err    error
}

func (q *fakeQueue) Enqueue(ctx context.Context, event *models.SecurityEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, event)
	return nil
}

func (q *fakeQueue) last() *models.SecurityEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	return q.events[len(q.events)-1]
}

type fakeEvents struct {
	events  []*models.SecurityEvent
	filters []models.EventFilter
	err     error
}

func (f *fakeEvents) List(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error) {
	f.filters = append(f.filters, filter)
	return f.events, f.err
}

type fakeAlerts struct {
	alerts  []*models.Alert
	acked   []uuid.UUID
	resolve []uuid.UUID
	limit   int
}

func (f *fakeAlerts) ListActive(ctx context.Context, limit int) ([]*models.Alert, error) {
	f.limit = limit
	return f.alerts, nil
}

func (f *fakeAlerts) find(id uuid.UUID) bool {
	for _, a := range f.alerts {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeAlerts) Acknowledge(ctx context.Context, id uuid.UUID) error {
	if !f.find(id) {
		return storage.ErrAlertNotFound
	}
	f.acked = append(f.acked, id)
	return nil
}

func (f *fakeAlerts) Deactivate(ctx context.Context, id uuid.UUID) error {
	if !f.find(id) {
		return storage.ErrAlertNotFound
	}
	f.resolve = append(f.resolve, id)
	return nil
}

type fakeDispatcher struct {
	requests []jobs.Request
	result   any
	err      error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req jobs.Request) (any, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

var errDatastore = errors.New("connection refused")
