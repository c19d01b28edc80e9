package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"sentinel/internal/auth"
	"sentinel/internal/jobs"
	"sentinel/internal/metrics"
	"sentinel/internal/middleware"
	"sentinel/internal/models"
	"sentinel/internal/ratelimit"
	"sentinel/internal/utils"
)

// EventQueue accepts events for asynchronous persistence.
type EventQueue interface {
	Enqueue(ctx context.Context, event *models.SecurityEvent) error
}

// EventReader serves downstream queries over stored events.
type EventReader interface {
	List(ctx context.Context, filter models.EventFilter) ([]*models.SecurityEvent, error)
}

// AlertService lists and updates alerts.
type AlertService interface {
	ListActive(ctx context.Context, limit int) ([]*models.Alert, error)
	Acknowledge(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// JobDispatcher runs scheduler-triggered analysis jobs.
type JobDispatcher interface {
	Dispatch(ctx context.Context, req jobs.Request) (any, error)
}

// HealthCheck is one named dependency check for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// IngestOptions configure the security event endpoint.
type IngestOptions struct {
	IPHashSalt     string
	RateLimit      int // per minute per IP hash; 0 disables
	TrustProxy     bool
	DefaultSource  string
	MaxPayloadKeys int
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Queue     EventQueue
	Events    EventReader
	Alerts    AlertService
	Jobs      JobDispatcher
	RateLimit ratelimit.Limiter
	Metrics   *metrics.Collector
	Health    []HealthCheck
	JWTSecret []byte
	Ingest    IngestOptions
}

// NewRouter registers all routes and wraps them with request metrics.
func NewRouter(deps *Dependencies) (http.Handler, error) {
	if len(deps.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if deps.Queue == nil || deps.Events == nil || deps.Alerts == nil || deps.Jobs == nil {
		return nil, errors.New("queue, events, alerts and jobs dependencies are required")
	}
	if deps.RateLimit == nil {
		deps.RateLimit = ratelimit.NewNoopLimiter()
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return deps.Metrics.InstrumentHandler(mux), nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	ingest := newIngestHandler(deps)
	events := &eventsHandler{events: deps.Events}
	alerts := &alertsHandler{alerts: deps.Alerts}
	jobsH := newJobsHandler(deps.Jobs)

	reader := middleware.JWTMiddleware(deps.JWTSecret, auth.RoleReader)
	scheduler := middleware.JWTMiddleware(deps.JWTSecret, auth.RoleScheduler)
	operator := middleware.JWTMiddleware(deps.JWTSecret, auth.RoleOperator)

	// Browser telemetry - public, rate limited per client
	mux.Handle("POST /v1/security-events", ingest)

	// Downstream readers
	mux.Handle("GET /v1/security-events", reader(http.HandlerFunc(events.List)))
	mux.Handle("GET /v1/security-events/summary", reader(http.HandlerFunc(events.Summary)))
	mux.Handle("GET /v1/alerts", reader(http.HandlerFunc(alerts.List)))

	// Scheduler trigger
	mux.Handle("POST /v1/jobs", scheduler(jobsH))

	// Operator actions
	mux.Handle("POST /v1/alerts/{id}/acknowledge", operator(http.HandlerFunc(alerts.Acknowledge)))
	mux.Handle("POST /v1/alerts/{id}/resolve", operator(http.HandlerFunc(alerts.Resolve)))

	mux.HandleFunc("GET /healthz", healthHandler(deps.Health))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	})
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				status[c.Name] = err.Error()
				healthy = false
				continue
			}
			status[c.Name] = "ok"
		}

		code := http.StatusOK
		overall := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
		utils.RespondWithJSON(w, code, map[string]any{"status": overall, "checks": status})
	}
}
