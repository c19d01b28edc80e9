package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"sentinel/internal/models"
)

// DB wraps the database connection and provides health checks
type DB struct {
	conn *sqlx.DB

	// API keys change rarely; alert enrichment reads them often
	apiKeyCache *LRUCache[uuid.UUID, *models.APIKey]
}

// DBConfig holds database configuration
type DBConfig struct {
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	APIKeyCacheSize int
	APIKeyCacheTTL  time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN:             "postgres://postgres@localhost:5432/sentinel?sslmode=disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		APIKeyCacheSize: 1000,
		APIKeyCacheTTL:  5 * time.Minute,
	}
}

// NewDB connects to Postgres and configures the pool.
func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return NewDBFromConn(conn, cfg), nil
}

// NewDBFromConn wraps an existing connection, e.g. one opened by a test harness.
func NewDBFromConn(conn *sqlx.DB, cfg DBConfig) *DB {
	if cfg.APIKeyCacheSize <= 0 {
		cfg.APIKeyCacheSize = 1000
	}
	if cfg.APIKeyCacheTTL <= 0 {
		cfg.APIKeyCacheTTL = 5 * time.Minute
	}
	return &DB{
		conn:        conn,
		apiKeyCache: NewLRUCache[uuid.UUID, *models.APIKey](cfg.APIKeyCacheSize, cfg.APIKeyCacheTTL),
	}
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.apiKeyCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return db.conn.BeginTxx(ctx, opts)
}

// Conn returns the underlying sqlx connection
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}

// Repository factory methods

func (db *DB) NewEventRepository() *EventRepository {
	return NewEventRepository(db)
}

func (db *DB) NewUsageRepository() *UsageRepository {
	return NewUsageRepository(db)
}

func (db *DB) NewAPIKeyRepository() *APIKeyRepository {
	return NewAPIKeyRepository(db)
}

func (db *DB) NewCostAnalysisRepository() *CostAnalysisRepository {
	return NewCostAnalysisRepository(db)
}

func (db *DB) NewAlertRepository() *AlertRepository {
	return NewAlertRepository(db)
}
