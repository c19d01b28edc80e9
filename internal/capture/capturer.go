package capture

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"

	"sentinel/internal/models"
	"sentinel/internal/sanitize"
	"sentinel/internal/utils"
)

// Emitter accepts sanitized events for delivery. Emit must not block.
type Emitter interface {
	Emit(event *models.SecurityEvent)
}

// ErrorSignal describes one runtime error as seen by the emitting process.
type ErrorSignal struct {
	Message   string
	Filename  string
	Line      int
	Column    int
	Stack     string
	PageURL   string
	UserAgent string
}

// CSPReport carries the fields of a content-security-policy violation report.
type CSPReport struct {
	DocumentURI        string `json:"document-uri"`
	Referrer           string `json:"referrer,omitempty"`
	BlockedURI         string `json:"blocked-uri"`
	ViolatedDirective  string `json:"violated-directive"`
	EffectiveDirective string `json:"effective-directive,omitempty"`
	OriginalPolicy     string `json:"original-policy,omitempty"`
	SourceFile         string `json:"source-file,omitempty"`
	LineNumber         int    `json:"line-number,omitempty"`
	ColumnNumber       int    `json:"column-number,omitempty"`
	Disposition        string `json:"disposition,omitempty"`
	StatusCode         int    `json:"status-code,omitempty"`
}

// RoleEscalation is the auth anomaly kind that is always reported as critical.
const RoleEscalation = "role_escalation"

// Capturer turns raw client signals into sanitized SecurityEvents.
type Capturer struct {
	source  string
	tracker *BurstTracker
	emitter Emitter
	clock   Clock
	logger  *utils.Logger
}

// NewCapturer wires a capturer to its own tracker and emitter.
func NewCapturer(source string, tracker *BurstTracker, emitter Emitter) *Capturer {
	if tracker == nil {
		tracker = NewBurstTracker(DefaultBurstConfig(), nil)
	}
	return &Capturer{
		source:  source,
		tracker: tracker,
		emitter: emitter,
		clock:   tracker.clock,
		logger:  utils.NewLogger("capture"),
	}
}

// ReportError counts a runtime error. The first occurrence in a window is
// emitted as runtime_error, repeats are only counted, and reaching the burst
// threshold emits a single error_burst.
func (c *Capturer) ReportError(sig ErrorSignal) {
	c.reportRepeating(models.EventRuntimeError, sig)
}

// ReportRejection counts an unhandled promise rejection or failed async task.
func (c *Capturer) ReportRejection(reason, pageURL string) {
	c.reportRepeating(models.EventUnhandledRejection, ErrorSignal{
		Message:  reason,
		Filename: pageURL,
		PageURL:  pageURL,
	})
}

func (c *Capturer) reportRepeating(eventType models.EventType, sig ErrorSignal) {
	key := ErrorKey(sig.Message, sig.Filename, sig.Line, sig.Column)
	obs := c.tracker.Observe(key)

	payload := map[string]any{
		"message":  sig.Message,
		"filename": sig.Filename,
		"line":     sig.Line,
		"column":   sig.Column,
	}
	if sig.PageURL != "" {
		payload["url"] = sig.PageURL
	}

	switch {
	case obs.Burst:
		payload["count"] = obs.Count
		payload["window_ms"] = c.tracker.cfg.WindowSize.Milliseconds()
		payload["signal"] = string(eventType)
		c.emit(models.EventErrorBurst, models.SeverityHigh, payload)
	case obs.First:
		if sig.Stack != "" {
			payload["stack"] = sig.Stack
		}
		if sig.UserAgent != "" {
			payload["user_agent"] = sig.UserAgent
		}
		c.emit(eventType, models.SeverityLow, payload)
	}
}

// ReportCSPViolation emits one medium csp_violation per report; there is no batching.
func (c *Capturer) ReportCSPViolation(r CSPReport) {
	payload := map[string]any{
		"document_uri":        r.DocumentURI,
		"blocked_uri":         r.BlockedURI,
		"violated_directive":  r.ViolatedDirective,
		"effective_directive": r.EffectiveDirective,
		"original_policy":     r.OriginalPolicy,
		"source_file":         r.SourceFile,
		"line":                r.LineNumber,
		"column":              r.ColumnNumber,
		"disposition":         r.Disposition,
		"status_code":         r.StatusCode,
	}
	if r.Referrer != "" {
		payload["referrer"] = r.Referrer
	}
	c.emit(models.EventCSPViolation, models.SeverityMedium, payload)
}

// ReportAuthAnomaly emits a role_escalation as critical and any other kind as
// a medium auth_anomaly.
func (c *Capturer) ReportAuthAnomaly(kind string, details map[string]any) {
	payload := make(map[string]any, len(details)+1)
	for k, v := range details {
		payload[k] = v
	}
	payload["kind"] = kind

	if kind == RoleEscalation {
		c.emit(models.EventRoleEscalation, models.SeverityCritical, payload)
		return
	}
	c.emit(models.EventAuthAnomaly, models.SeverityMedium, payload)
}

// Middleware recovers panics from next, reports them as runtime errors and
// answers 500 so a crashing handler never takes the process down.
func (c *Capturer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			c.ReportError(ErrorSignal{
				Message:   fmt.Sprint(rec),
				Filename:  r.URL.Path,
				Stack:     string(debug.Stack()),
				PageURL:   r.URL.String(),
				UserAgent: r.UserAgent(),
			})
			utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}

func (c *Capturer) emit(eventType models.EventType, severity models.Severity, payload map[string]any) {
	if c.emitter == nil {
		c.logger.Debug("No emitter configured, dropping event", "event_type", eventType)
		return
	}
	c.emitter.Emit(&models.SecurityEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Source:    c.source,
		Severity:  severity,
		Payload:   models.JSONB(sanitize.Payload(payload)),
		CreatedAt: c.clock.Now().UTC(),
	})
}
