package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/models"
	"sentinel/internal/storage"
)

// memoryStore mimics the alerts table, including the unique hash constraint
type memoryStore struct {
	mu      sync.Mutex
	alerts  map[uuid.UUID]*models.Alert
	hashes  map[string]bool
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{alerts: map[uuid.UUID]*models.Alert{}, hashes: map[string]bool{}}
}

func (s *memoryStore) Insert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if s.hashes[alert.AlertHash] {
		return storage.ErrDuplicateAlert
	}
	s.hashes[alert.AlertHash] = true
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *memoryStore) Acknowledge(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	a.IsAcknowledged = true
	return nil
}

func (s *memoryStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return storage.ErrAlertNotFound
	}
	a.IsActive = false
	return nil
}

func (s *memoryStore) ListActive(ctx context.Context, limit int) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Alert
	for _, a := range s.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type fakeKeyStore struct {
	keys []*models.APIKey
	err  error
}

func (f *fakeKeyStore) ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.APIKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.APIKey
	for _, k := range f.keys {
		if k.IsActive && k.ExpiresAt != nil && !k.ExpiresAt.After(cutoff) {
			out = append(out, k)
		}
	}
	return out, nil
}

var errStoreDown = errors.New("connection refused")
