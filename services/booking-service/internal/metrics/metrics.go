package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commit results.
const (
	ResultCreated    = "created"
	ResultReplayed   = "replayed"
	ResultConflict   = "conflict"
	ResultValidation = "validation"
	ResultError      = "error"
)

// Resolution sources.
const (
	SourceCache = "cache"
	SourceDB    = "db"
)

// Metrics holds the booking-service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	commits        *prometheus.CounterVec
	commitDuration prometheus.Histogram
	resolutions    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_booking_commits_total",
			Help: "create_booking attempts by result.",
		}, []string{"result"}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_booking_commit_duration_seconds",
			Help:    "Duration of the create_booking transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_slot_resolutions_total",
			Help: "Annotated slot lookups by source.",
		}, []string{"source"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.commits, m.commitDuration, m.resolutions, m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCommit(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(result).Inc()
	m.commitDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveResolution(source string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by the matched mux pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
