package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/models"
)

func testEvent(eventType models.EventType) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Source:    "test",
		Severity:  models.SeverityLow,
		Payload:   models.JSONB{"message": "boom"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, q.Enqueue(ctx, testEvent(models.EventRuntimeError)))
	}

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, length)

	events, err := q.DequeueWithTimeout(ctx, config.BatchSize, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, events, 5)

	events, err = q.DequeueWithTimeout(ctx, config.BatchSize, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMemoryQueue_TimeoutReturnsEmpty(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	start := time.Now()
	events, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestMemoryQueue_Full(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 1
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, testEvent(models.EventCSPViolation)))
	}
	err := q.Enqueue(ctx, testEvent(models.EventCSPViolation))
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestMemoryQueue_CloseDrainsBuffered(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testEvent(models.EventRuntimeError)))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, testEvent(models.EventRuntimeError)), ErrQueueClosed)

	events, err := q.DequeueWithTimeout(ctx, 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = q.DequeueWithTimeout(ctx, 10, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueClosed)

	// double close is harmless
	assert.NoError(t, q.Close())
}

func TestMemoryQueue_ContextCancelled(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.DequeueWithTimeout(ctx, 10, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	ctx := context.Background()

	first := testEvent(models.EventRuntimeError)
	second := testEvent(models.EventErrorBurst)
	require.NoError(t, dlq.Add(ctx, first, errors.New("insert failed")))
	require.NoError(t, dlq.Add(ctx, second, errors.New("insert failed again")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].Event.ID)
	assert.Equal(t, "insert failed", items[0].Error)

	limited, err := dlq.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	assert.ErrorIs(t, dlq.Remove(ctx, items[0].ID), ErrItemNotFound)

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].Event.ID)

	require.NoError(t, dlq.Close())
	assert.ErrorIs(t, dlq.Add(ctx, first, nil), ErrQueueClosed)
}

func TestNew_SelectsBackend(t *testing.T) {
	q, dlq := New(DefaultConfig("test"), nil)
	assert.IsType(t, &MemoryQueue{}, q)
	assert.IsType(t, &MemoryDeadLetterQueue{}, dlq)

	config := DefaultConfig("test")
	config.UseRedis = true
	// no client falls back to memory
	q, _ = New(config, nil)
	assert.IsType(t, &MemoryQueue{}, q)
}
