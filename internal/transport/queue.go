// Package transport delivers captured events to the ingest endpoint.
//
// Delivery is best effort: a single drain goroutine posts one event at a
// time, pausing SendInterval after each post returns, and drops events that
// fail. Nothing is
// retried, so failures while reporting cannot feed back into more reports.
package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/utils"
)

const (
	// DefaultSendInterval is the pause between one post returning and the next starting.
	DefaultSendInterval = 100 * time.Millisecond

	// DefaultMaxPending bounds the number of undelivered events kept in memory.
	DefaultMaxPending = 1000
)

// Config holds queue configuration
type Config struct {
	SendInterval time.Duration
	PostTimeout  time.Duration
	MaxPending   int
}

// DefaultConfig returns the default delivery settings.
func DefaultConfig() Config {
	return Config{
		SendInterval: DefaultSendInterval,
		PostTimeout:  5 * time.Second,
		MaxPending:   DefaultMaxPending,
	}
}

// Queue is an in-memory FIFO with a single consumer. It implements
// capture.Emitter.
type Queue struct {
	mu      sync.Mutex
	pending []*models.SecurityEvent

	processing atomic.Bool
	sent       atomic.Uint64
	dropped    atomic.Uint64

	poster Poster
	cfg    Config
	logger *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue creates a queue that hands events to poster.
func NewQueue(poster Poster, cfg Config) *Queue {
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = DefaultSendInterval
	}
	if cfg.PostTimeout <= 0 {
		cfg.PostTimeout = 5 * time.Second
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		poster: poster,
		cfg:    cfg,
		logger: utils.NewLogger("transport"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Emit appends event and starts the drain loop unless one is already running.
// It never blocks on delivery.
func (q *Queue) Emit(event *models.SecurityEvent) {
	if event == nil || q.ctx.Err() != nil {
		return
	}

	q.mu.Lock()
	if len(q.pending) >= q.cfg.MaxPending {
		q.mu.Unlock()
		q.dropped.Add(1)
		q.logger.Debug("Transport queue full, dropping event", "event_type", event.EventType)
		return
	}
	q.pending = append(q.pending, event)
	q.mu.Unlock()

	if q.processing.CompareAndSwap(false, true) {
		go q.drain()
	}
}

func (q *Queue) drain() {
	for {
		for event := q.pop(); event != nil; event = q.pop() {
			q.send(event)
		}

		q.processing.Store(false)

		// An Emit that raced with the final pop lost the CAS; pick its event up here.
		if q.Len() == 0 || !q.processing.CompareAndSwap(false, true) {
			return
		}
	}
}

func (q *Queue) pop() *models.SecurityEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	event := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return event
}

func (q *Queue) send(event *models.SecurityEvent) {
	defer q.pause()

	ctx, cancel := context.WithTimeout(q.ctx, q.cfg.PostTimeout)
	defer cancel()

	if err := q.poster.Post(ctx, event); err != nil {
		q.dropped.Add(1)
		q.logger.Debug("Failed to deliver event, dropping", "event_type", event.EventType, "error", err)
		return
	}
	q.sent.Add(1)
}

// pause waits SendInterval, or until the queue is closed.
func (q *Queue) pause() {
	timer := time.NewTimer(q.cfg.SendInterval)
	defer timer.Stop()

	select {
	case <-q.ctx.Done():
	case <-timer.C:
	}
}

// Len returns the number of events waiting to be posted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Processing reports whether a drain loop is running.
func (q *Queue) Processing() bool {
	return q.processing.Load()
}

// Stats returns how many events were delivered and dropped so far.
func (q *Queue) Stats() (sent, dropped uint64) {
	return q.sent.Load(), q.dropped.Load()
}

// Flush waits until the queue is empty and no drain is running, or ctx ends.
func (q *Queue) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if q.Len() == 0 && !q.Processing() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops delivery. Pending events are discarded.
func (q *Queue) Close() {
	q.cancel()
	q.mu.Lock()
	q.dropped.Add(uint64(len(q.pending)))
	q.pending = nil
	q.mu.Unlock()
}
