package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"sentinel/internal/alerting"
	"sentinel/internal/analysis"
	"sentinel/internal/config"
	"sentinel/internal/forecast"
	"sentinel/internal/httpapi"
	"sentinel/internal/jobs"
	"sentinel/internal/metrics"
	"sentinel/internal/models"
	"sentinel/internal/queue"
	"sentinel/internal/ratelimit"
	"sentinel/internal/storage"
)

// app holds everything main starts and stops
type app struct {
	handler   http.Handler
	db        *storage.DB
	redis     *storage.RedisClient
	worker    *storage.EventQueueWorker
	scheduler *jobs.Scheduler
}

func buildApp(cfg *config.Config) (*app, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		APIKeyCacheSize: cfg.Cache.APIKeyCacheSize,
		APIKeyCacheTTL:  cfg.Cache.APIKeyCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	a := &app{db: db}

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		a.redis, err = storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			MaxRetries:   3,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		redisClient = a.redis.Client()
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Ingest queue
	queueCfg := queue.DefaultConfig(cfg.Ingest.QueueName)
	queueCfg.UseRedis = cfg.Ingest.QueueBackend == "redis"
	queueCfg.BatchSize = cfg.Ingest.BatchSize
	queueCfg.BatchTimeout = cfg.Ingest.BatchTimeout
	queueCfg.MaxRetries = cfg.Ingest.MaxRetries
	queueCfg.RetryBackoff = cfg.Ingest.RetryBackoff

	q, dlq := queue.New(queueCfg, redisClient)
	events := db.NewEventRepository()
	a.worker = storage.NewEventQueueWorker(q, dlq, events, queueCfg)
	a.worker.OnPersisted(collector.EventsPersisted)

	// Analysis components
	alertRepo := db.NewAlertRepository()
	records := db.NewCostAnalysisRepository()
	usage := db.NewUsageRepository()

	alerts := alerting.NewManager(alertRepo, collector)
	dispatcher := jobs.NewDispatcher(jobs.Components{
		Aggregator:    analysis.NewAggregator(usage, records),
		Analyzer:      analysis.NewAnalyzer(usage, events, alerts, analysis.DefaultRules(), collector),
		Alerts:        alerts,
		ExpiryScanner: alerting.NewExpiryScanner(db.NewAPIKeyRepository(), alerts),
		Forecaster:    forecast.NewForecaster(records),
		Records:       records,
		MonthlyBudget: cfg.Jobs.MonthlyBudget,
		Metrics:       collector,
	})

	if cfg.Jobs.ScheduleEnabled {
		a.scheduler = jobs.NewScheduler(dispatcher, schedules(cfg.Jobs))
	}

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if redisClient != nil {
		limiter = ratelimit.NewRateLimiter(redisClient)
	} else if cfg.Ingest.RateLimit > 0 {
		log.Printf("REDIS_ADDRESS not set; ingest rate limiting is per instance")
		limiter = ratelimit.NewLocalLimiter()
	}

	health := []httpapi.HealthCheck{{Name: "database", Check: db.Health}}
	if a.redis != nil {
		health = append(health, httpapi.HealthCheck{Name: "redis", Check: a.redis.Health})
	}

	a.handler, err = httpapi.NewRouter(&httpapi.Dependencies{
		Queue:     a.worker,
		Events:    events,
		Alerts:    alerts,
		Jobs:      dispatcher,
		RateLimit: limiter,
		Metrics:   collector,
		Health:    health,
		JWTSecret: cfg.Jobs.JWTSecret,
		Ingest: httpapi.IngestOptions{
			IPHashSalt:     cfg.Ingest.IPHashSalt,
			RateLimit:      cfg.Ingest.RateLimit,
			TrustProxy:     cfg.Ingest.TrustProxy,
			DefaultSource:  cfg.Ingest.DefaultSource,
			MaxPayloadKeys: cfg.Ingest.MaxPayloadKeys,
		},
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	return a, nil
}

func (a *app) start(ctx context.Context) {
	a.worker.Start(ctx)
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}
}

func (a *app) stop() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if err := a.worker.Stop(); err != nil {
		log.Printf("Failed to stop ingest worker: %v", err)
	}
	a.close()
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}

// schedules maps the configured intervals onto dispatcher requests
func schedules(cfg config.JobsConfig) []jobs.Schedule {
	params := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	return []jobs.Schedule{
		{
			Request:  jobs.Request{Operation: jobs.OpAnalyzeCosts, Params: params(jobs.AnalyzeCostsParams{PeriodType: models.PeriodDaily})},
			Interval: cfg.AnalyzeInterval,
		},
		{
			Request:  jobs.Request{Operation: jobs.OpDetectAnomalies, Params: params(jobs.DetectAnomaliesParams{LookbackHours: cfg.LookbackHours})},
			Interval: cfg.DetectInterval,
		},
		{
			Request:  jobs.Request{Operation: jobs.OpCheckAlerts},
			Interval: cfg.AlertInterval,
		},
		{
			Request:  jobs.Request{Operation: jobs.OpForecastCosts, Params: params(jobs.ForecastCostsParams{Days: cfg.ForecastHorizon})},
			Interval: cfg.ForecastInterval,
		},
		{
			Request:  jobs.Request{Operation: jobs.OpScanKeyExpiry, Params: params(jobs.ScanKeyExpiryParams{DaysAhead: cfg.ExpiryLookaheadDays})},
			Interval: cfg.ExpiryInterval,
		},
	}
}
