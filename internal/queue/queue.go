// Package queue buffers ingested security events between the HTTP handler
// and the database writer. Two backends are available:
//
// 1. Memory queue (channel-based): no persistence, no external dependencies.
// Suitable for single-instance and development deployments.
//
// 2. Redis queue (list-based): survives restarts and lets several ingest
// replicas feed one writer.
//
//	POST /v1/security-events
//	        │
//	        ▼
//	┌──────────────┐     ┌──────────────┐     ┌──────────────┐
//	│ Event queue  │────▶│ Event worker │────▶│ Postgres     │
//	└──────────────┘     │ (batches)    │     └──────────────┘
//	                     └──────┬───────┘
//	                            │ retries exhausted
//	                            ▼
//	                      ┌───────────┐
//	                      │    DLQ    │
//	                      └───────────┘
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"sentinel/internal/models"
)

// Queue defines the interface for event queuing
type Queue interface {
	// Enqueue adds an event to the queue
	Enqueue(ctx context.Context, event *models.SecurityEvent) error

	// DequeueWithTimeout returns up to maxItems events. It waits at most
	// timeout for the first one and returns an empty slice if none arrives.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.SecurityEvent, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// DeadLetterQueue holds events that could not be persisted
type DeadLetterQueue interface {
	Add(ctx context.Context, event *models.SecurityEvent, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem represents an event in the dead letter queue
type DeadLetterItem struct {
	ID        string                `json:"id"`
	Event     *models.SecurityEvent `json:"event"`
	Error     string                `json:"error"`
	Timestamp time.Time             `json:"timestamp"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of events written per batch
	BatchSize int

	// BatchTimeout is how long the worker waits for the first event of a batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per event
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend
	UseRedis bool

	// QueueName is the key suffix used by the Redis backend
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// New builds the queue and dead letter queue selected by config. client is
// only used when config.UseRedis is set.
func New(config *Config, client *redis.Client) (Queue, DeadLetterQueue) {
	if config == nil {
		config = DefaultConfig("security-events")
	}
	if config.UseRedis && client != nil {
		return NewRedisQueue(client, config), NewRedisDeadLetterQueue(client, config)
	}
	return NewMemoryQueue(config), NewMemoryDeadLetterQueue()
}
