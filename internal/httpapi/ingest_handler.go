package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/metrics"
	"sentinel/internal/models"
	"sentinel/internal/queue"
	"sentinel/internal/ratelimit"
	"sentinel/internal/sanitize"
	"sentinel/internal/utils"
)

// Rejection reasons recorded in metrics
const (
	rejectInvalidBody  = "invalid_body"
	rejectInvalidEvent = "invalid_event"
	rejectRateLimited  = "rate_limited"
	rejectQueueFull    = "queue_full"
	rejectQueueError   = "queue_error"
)

// serverOnlyTypes are written by the anomaly analyzer and never accepted from clients.
var serverOnlyTypes = map[models.EventType]struct{}{
	models.EventFrequencyAnomaly:   {},
	models.EventErrorRateAnomaly:   {},
	models.EventIPDiversityAnomaly: {},
	models.EventCostAnomaly:        {},
}

// IncomingEvent is the client-supplied shape of a SecurityEvent.
type IncomingEvent struct {
	EventType models.EventType `json:"event_type"`
	Source    string           `json:"source"`
	Severity  models.Severity  `json:"severity"`
	Payload   map[string]any   `json:"payload"`
	UserID    *string          `json:"user_id"`
}

// IngestResponse is returned with 202 Accepted
type IngestResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type ingestHandler struct {
	queue   EventQueue
	limiter ratelimit.Limiter
	metrics *metrics.Collector
	opts    IngestOptions
	now     func() time.Time
	logger  *utils.Logger
}

func newIngestHandler(deps *Dependencies) *ingestHandler {
	opts := deps.Ingest
	if opts.DefaultSource == "" {
		opts.DefaultSource = "web"
	}
	return &ingestHandler{
		queue:   deps.Queue,
		limiter: deps.RateLimit,
		metrics: deps.Metrics,
		opts:    opts,
		now:     time.Now,
		logger:  utils.NewLogger("ingest"),
	}
}

func (h *ingestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ipHash := sanitize.HashIP(clientIP(r, h.opts.TrustProxy), h.opts.IPHashSalt)

	if h.opts.RateLimit > 0 {
		key := "ingest:" + ipHash
		if ipHash == "" {
			key = "ingest:unknown"
		}
		allowed, remaining, resetAt, err := h.limiter.AllowWithDetails(ctx, key, h.opts.RateLimit)
		if err != nil {
			// fail open
			h.logger.Warn("Rate limit check failed", "error", err)
		} else {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.opts.RateLimit))
			if remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
			if !allowed {
				retry := int(time.Until(resetAt).Seconds()) + 1
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				h.metrics.EventRejected(rejectRateLimited)
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, utils.MaxRequestBodyBytes+1))
	if err != nil || len(body) == 0 {
		h.metrics.EventRejected(rejectInvalidBody)
		utils.RespondWithError(w, http.StatusBadRequest, "Request body is required")
		return
	}
	if len(body) > utils.MaxRequestBodyBytes {
		h.metrics.EventRejected(rejectInvalidBody)
		utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	incoming, err := decodeIncoming(body)
	if err != nil {
		h.metrics.EventRejected(rejectInvalidBody)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	event, msg := h.buildEvent(incoming, ipHash)
	if msg != "" {
		h.metrics.EventRejected(rejectInvalidEvent)
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.queue.Enqueue(ctx, event); err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			h.metrics.EventRejected(rejectQueueFull)
			w.Header().Set("Retry-After", "1")
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Ingest queue unavailable")
			return
		}
		h.logger.Error("Failed to enqueue event", "event_type", event.EventType, "error", err)
		h.metrics.EventRejected(rejectQueueError)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to accept event")
		return
	}

	h.metrics.EventIngested(string(event.EventType))
	utils.RespondWithJSON(w, http.StatusAccepted, IngestResponse{ID: event.ID, Status: "accepted"})
}

// decodeIncoming accepts either {"csp-report": {...}} or a bare event. A
// csp-report without event_type is a native browser violation report and
// becomes the payload of a csp_violation event.
func decodeIncoming(body []byte) (*IncomingEvent, error) {
	var envelope struct {
		CSPReport json.RawMessage `json:"csp-report"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	raw := body
	legacy := len(envelope.CSPReport) > 0 && string(envelope.CSPReport) != "null"
	if legacy {
		raw = envelope.CSPReport
	}

	var incoming IncomingEvent
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return nil, err
	}

	if legacy && incoming.EventType == "" {
		var report map[string]any
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, err
		}
		return &IncomingEvent{
			EventType: models.EventCSPViolation,
			Severity:  models.SeverityMedium,
			Payload:   report,
		}, nil
	}

	return &incoming, nil
}

// buildEvent validates incoming and returns the event to persist, or a
// client-facing message describing why it was rejected.
func (h *ingestHandler) buildEvent(in *IncomingEvent, ipHash string) (*models.SecurityEvent, string) {
	if !in.EventType.IsValid() {
		return nil, "Invalid event_type"
	}
	if _, reserved := serverOnlyTypes[in.EventType]; reserved {
		return nil, "event_type is reserved for server-side analysis"
	}

	severity := in.Severity
	if severity == "" {
		severity = models.SeverityLow
	}
	if !severity.IsValid() {
		return nil, "Invalid severity"
	}

	if h.opts.MaxPayloadKeys > 0 && len(in.Payload) > h.opts.MaxPayloadKeys {
		return nil, "Payload has too many keys"
	}

	source := sanitize.Text(strings.TrimSpace(in.Source))
	if source == "" {
		source = h.opts.DefaultSource
	}

	event := &models.SecurityEvent{
		ID:        uuid.New(),
		EventType: in.EventType,
		Source:    source,
		Severity:  severity,
		Payload:   models.JSONB(sanitize.Payload(in.Payload)),
		CreatedAt: h.now().UTC(),
	}
	if in.UserID != nil && strings.TrimSpace(*in.UserID) != "" {
		uid := sanitize.Text(strings.TrimSpace(*in.UserID))
		event.UserID = &uid
	}
	if ipHash != "" {
		event.IPHash = &ipHash
	}

	return event, ""
}

// clientIP returns the caller address, preferring the first X-Forwarded-For
// hop when the service runs behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
