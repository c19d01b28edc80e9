package storage

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/queue"
	"sentinel/internal/utils"
)

const drainTimeout = 10 * time.Second

// EventWriter is the persistence side of the event worker
type EventWriter interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
	CreateBatch(ctx context.Context, events []*models.SecurityEvent) error
}

// EventQueueWorker drains the ingest queue into the database in batches
type EventQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	writer      EventWriter
	config      *queue.Config
	logger      *utils.Logger
	onPersisted func(n int)
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewEventQueueWorker creates a new event queue worker
func NewEventQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, writer EventWriter, config *queue.Config) *EventQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("security-events")
	}

	return &EventQueueWorker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      utils.NewLogger("event-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// OnPersisted registers a callback invoked with the number of rows written
func (w *EventQueueWorker) OnPersisted(fn func(n int)) {
	w.onPersisted = fn
}

// Start starts the worker goroutine
func (w *EventQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker
func (w *EventQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds an event to the queue
func (w *EventQueueWorker) Enqueue(ctx context.Context, event *models.SecurityEvent) error {
	return w.queue.Enqueue(ctx, event)
}

func (w *EventQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Event worker stopping")
			w.drain()
			return
		case <-ctx.Done():
			w.logger.Info("Event worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// drain flushes whatever is still buffered, bounded by drainTimeout
func (w *EventQueueWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		n, err := w.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		w.processBatch(ctx)
	}
	w.logger.Warn("Event worker stopped before the queue was drained")
}

// processBatch writes one batch. A failed batch insert falls back to per-event
// inserts so one bad row does not sink its neighbours.
func (w *EventQueueWorker) processBatch(ctx context.Context) {
	events, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Failed to dequeue security events", "error", err)
		w.sleep(ctx, time.Second)
		return
	}

	if len(events) == 0 {
		return
	}

	w.logger.Debug("Processing event batch", "count", len(events))

	if err := w.writer.CreateBatch(ctx, events); err != nil {
		w.logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
		written := 0
		for _, event := range events {
			if err := w.processItem(ctx, event); err != nil {
				w.logger.Error("Failed to process security event", "error", err)
				continue
			}
			written++
		}
		w.persisted(written)
		return
	}

	w.persisted(len(events))
}

// processItem inserts one event with exponential backoff, then parks it in the DLQ
func (w *EventQueueWorker) processItem(ctx context.Context, event *models.SecurityEvent) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying security event", "attempt", attempt, "backoff", backoff)
			if !w.sleep(ctx, backoff) {
				break
			}
		}

		if err := w.writer.Create(ctx, event); err != nil {
			lastErr = err
			w.logger.Warn("Failed to insert security event", "attempt", attempt, "error", err)
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(context.WithoutCancel(ctx), event, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Security event moved to DLQ", "event_id", event.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (w *EventQueueWorker) persisted(n int) {
	if n > 0 && w.onPersisted != nil {
		w.onPersisted(n)
	}
}

func (w *EventQueueWorker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.stopChan:
		return false
	}
}

// GetQueueLength returns the current queue length
func (w *EventQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue
func (w *EventQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a failed event and removes it from the DLQ
func (w *EventQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, item := range items {
		if item.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, item.Event); err != nil {
			return fmt.Errorf("failed to re-enqueue event: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
