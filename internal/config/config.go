package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for the sentinel service.
type Config struct {
	HTTP     HTTPConfig
	LogLevel string
	Database DatabaseConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Ingest   IngestConfig
	Jobs     JobsConfig
	Export   ExportConfig
}

// HTTPConfig holds listener settings
type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// CacheConfig holds cache settings
type CacheConfig struct {
	APIKeyCacheSize int
	APIKeyCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings. An empty Address disables Redis.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// IngestConfig controls the security event endpoint
type IngestConfig struct {
	QueueBackend   string // "memory" or "redis"
	QueueName      string
	BatchSize      int
	BatchTimeout   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RateLimit      int // events per minute per client IP hash; 0 disables
	IPHashSalt     string
	TrustProxy     bool // take the client IP from X-Forwarded-For
	DefaultSource  string
	MaxPayloadKeys int
}

// JobsConfig controls scheduled analysis
type JobsConfig struct {
	JWTSecret           []byte
	MonthlyBudget       float64
	ScheduleEnabled     bool
	AnalyzeInterval     time.Duration
	DetectInterval      time.Duration
	AlertInterval       time.Duration
	ForecastInterval    time.Duration
	ExpiryInterval      time.Duration
	LookbackHours       int
	ForecastHorizon     int
	ExpiryLookaheadDays int
}

// ExportConfig holds snapshot export settings
type ExportConfig struct {
	S3Bucket string
	S3Region string
	S3Prefix string
	PodName  string
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are given. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	backend := strings.ToLower(getEnvString("INGEST_QUEUE_BACKEND", "memory"))
	if backend != "memory" && backend != "redis" {
		return nil, fmt.Errorf("INGEST_QUEUE_BACKEND must be memory or redis, got %q", backend)
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            getEnvString("HTTP_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Cache: CacheConfig{
			APIKeyCacheSize: getEnvInt("CACHE_API_KEY_SIZE", 1000),
			APIKeyCacheTTL:  getEnvDuration("CACHE_API_KEY_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Ingest: IngestConfig{
			QueueBackend:   backend,
			QueueName:      getEnvString("INGEST_QUEUE_NAME", "security-events"),
			BatchSize:      getEnvInt("INGEST_BATCH_SIZE", 100),
			BatchTimeout:   getEnvDuration("INGEST_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:     getEnvInt("INGEST_MAX_RETRIES", 3),
			RetryBackoff:   getEnvDuration("INGEST_RETRY_BACKOFF", 1*time.Second),
			RateLimit:      getEnvInt("INGEST_RATE_LIMIT_PER_MINUTE", 600),
			IPHashSalt:     getEnvString("INGEST_IP_HASH_SALT", ""),
			TrustProxy:     getEnvBool("INGEST_TRUST_PROXY", false),
			DefaultSource:  getEnvString("INGEST_DEFAULT_SOURCE", "web"),
			MaxPayloadKeys: getEnvInt("INGEST_MAX_PAYLOAD_KEYS", 64),
		},
		Jobs: JobsConfig{
			JWTSecret:           []byte(getEnvString("JWT_SECRET", "")),
			MonthlyBudget:       getEnvFloat("MONTHLY_BUDGET_USD", 0),
			ScheduleEnabled:     getEnvBool("JOBS_SCHEDULE_ENABLED", false),
			AnalyzeInterval:     getEnvDuration("JOBS_ANALYZE_INTERVAL", 1*time.Hour),
			DetectInterval:      getEnvDuration("JOBS_DETECT_INTERVAL", 15*time.Minute),
			AlertInterval:       getEnvDuration("JOBS_ALERT_INTERVAL", 1*time.Hour),
			ForecastInterval:    getEnvDuration("JOBS_FORECAST_INTERVAL", 24*time.Hour),
			ExpiryInterval:      getEnvDuration("JOBS_EXPIRY_INTERVAL", 24*time.Hour),
			LookbackHours:       getEnvInt("JOBS_LOOKBACK_HOURS", 24),
			ForecastHorizon:     getEnvInt("JOBS_FORECAST_HORIZON_DAYS", 30),
			ExpiryLookaheadDays: getEnvInt("JOBS_EXPIRY_LOOKAHEAD_DAYS", 30),
		},
		Export: ExportConfig{
			S3Bucket: getEnvString("EXPORT_S3_BUCKET", ""),
			S3Region: getEnvString("EXPORT_S3_REGION", "us-east-1"),
			S3Prefix: getEnvString("EXPORT_S3_PREFIX", "exports/"),
			PodName:  getEnvString("POD_NAME", "sentinel-0"),
		},
	}

	if cfg.Ingest.QueueBackend == "redis" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("REDIS_ADDRESS is required when INGEST_QUEUE_BACKEND=redis")
	}
	return cfg, nil
}

// ValidateServer checks the settings only the HTTP service needs. Offline
// tools such as the event exporter skip it.
func (c *Config) ValidateServer() error {
	if c.Ingest.IPHashSalt == "" {
		return fmt.Errorf("INGEST_IP_HASH_SALT is required")
	}
	if len(c.Jobs.JWTSecret) == 0 {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}
