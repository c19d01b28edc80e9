package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sentinel"

// Collector owns the Prometheus registry for the service. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	eventsIngested  *prometheus.CounterVec
	eventsRejected  *prometheus.CounterVec
	eventsPersisted prometheus.Counter
	jobDuration     *prometheus.HistogramVec
	alerts          *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "route", "status"}),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Security events accepted by the ingest endpoint.",
		}, []string{"event_type"}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rejected_total",
			Help:      "Security events refused by the ingest endpoint.",
		}, []string{"reason"}),
		eventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "persisted_total",
			Help:      "Security events written to the database.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of scheduled analysis jobs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "total",
			Help:      "Alert creation attempts by type and result.",
		}, []string{"alert_type", "result"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "anomalies_total",
			Help:      "Usage anomalies detected by type.",
		}, []string{"anomaly_type"}),
	}

	for _, collector := range []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.eventsIngested, c.eventsRejected, c.eventsPersisted,
		c.jobDuration, c.alerts, c.anomalies,
	} {
		if err := c.registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics. The
// route label is the matched ServeMux pattern so path parameters do not
// explode cardinality.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(rw.status)

		c.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// EventIngested counts an accepted event.
func (c *Collector) EventIngested(eventType string) {
	if c == nil {
		return
	}
	c.eventsIngested.WithLabelValues(eventType).Inc()
}

// EventRejected counts a refused event.
func (c *Collector) EventRejected(reason string) {
	if c == nil {
		return
	}
	c.eventsRejected.WithLabelValues(reason).Inc()
}

// EventsPersisted counts rows written by the event worker.
func (c *Collector) EventsPersisted(n int) {
	if c == nil {
		return
	}
	c.eventsPersisted.Add(float64(n))
}

// ObserveJob records a job run. outcome is "ok" or "error".
func (c *Collector) ObserveJob(operation, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// AlertCreated counts a newly inserted alert.
func (c *Collector) AlertCreated(alertType string) {
	if c == nil {
		return
	}
	c.alerts.WithLabelValues(alertType, "created").Inc()
}

// AlertDeduplicated counts an alert suppressed by its hash.
func (c *Collector) AlertDeduplicated(alertType string) {
	if c == nil {
		return
	}
	c.alerts.WithLabelValues(alertType, "duplicate").Inc()
}

// AnomalyDetected counts an anomaly.
func (c *Collector) AnomalyDetected(anomalyType string) {
	if c == nil {
		return
	}
	c.anomalies.WithLabelValues(anomalyType).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
