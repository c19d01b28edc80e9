package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/models"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items  chan *models.SecurityEvent
	mu     sync.RWMutex
	closed bool
	config *Config
}

// NewMemoryQueue creates a new in-memory queue buffering ten batches
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		items:  make(chan *models.SecurityEvent, config.BatchSize*10),
		config: config,
	}
}

// Enqueue adds an event without blocking. A full buffer is reported as
// ErrQueueFull so the ingest handler can shed load.
func (q *MemoryQueue) Enqueue(ctx context.Context, event *models.SecurityEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// DequeueWithTimeout retrieves events with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.SecurityEvent, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed && len(q.items) == 0 {
		return nil, ErrQueueClosed
	}

	var events []*models.SecurityEvent
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event, ok := <-q.items:
		if !ok {
			return nil, ErrQueueClosed
		}
		events = append(events, event)
	case <-timer.C:
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(events) < maxItems {
		select {
		case event, ok := <-q.items:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		default:
			return events, nil
		}
	}

	return events, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	return len(q.items), nil
}

// Close stops accepting events. Buffered events remain dequeueable.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.items)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue using in-memory storage
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add adds a failed event to the dead letter queue
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, event *models.SecurityEvent, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetterItem(event, err))
	return nil
}

// List returns up to maxItems dead letter items in insertion order
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove removes an item from the dead letter queue
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func newDeadLetterItem(event *models.SecurityEvent, err error) DeadLetterItem {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DeadLetterItem{
		ID:        uuid.NewString(),
		Event:     event,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}
