package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenda_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Agenda metrics
	appointmentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_appointment_writes_total",
			Help: "Successful appointment writes by operation",
		},
		[]string{"op"},
	)

	slotConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_slot_conflicts_total",
			Help: "Writes rejected because the slot was occupied",
		},
		[]string{"op"},
	)

	statusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_status_changes_total",
			Help: "Appointment status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	patientResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_patient_resolutions_total",
			Help: "Patient reference resolutions by outcome",
		},
		[]string{"outcome"},
	)

	enrichmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agenda_enrichment_failures_total",
			Help: "Display name lookups that degraded to a blank name",
		},
	)
)

func RecordWrite(op string) {
	appointmentWrites.WithLabelValues(op).Inc()
}

func RecordConflict(op string) {
	slotConflicts.WithLabelValues(op).Inc()
}

func RecordStatusChange(from, to string) {
	statusChanges.WithLabelValues(from, to).Inc()
}

func RecordResolution(outcome string) {
	patientResolutions.WithLabelValues(outcome).Inc()
}

func RecordEnrichmentFailure() {
	enrichmentFailures.Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
