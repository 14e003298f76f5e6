// Package metrics provides Prometheus instrumentation for the vault engine.
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
	// OptionsCreated counts writer deposits by vault kind.
	OptionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_options_created_total",
		Help: "Total number of option positions written",
	}, []string{"vault"})

	// OptionsBought counts successful buys by vault kind.
	OptionsBought = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_options_bought_total",
		Help: "Total number of option purchases",
	}, []string{"vault"})

	// OptionsExecuted counts settlements, partitioned by path (exercise or expiry).
	OptionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_options_executed_total",
		Help: "Total number of options settled",
	}, []string{"vault", "path"})

	// OperationFailures counts reverted vault operations by error code.
	OperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_operation_failures_total",
		Help: "Vault operations that reverted",
	}, []string{"vault", "op", "code"})

	// OperationLatency tracks vault operation latency.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_operation_latency_seconds",
		Help:    "Vault operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"vault", "op"})

	// OpenPositions tracks live option records per vault.
	OpenPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vault_open_positions",
		Help: "Number of unexecuted option positions",
	}, []string{"vault"})

	// OracleReads counts price conversions by result (stable, oracle, stale, invalid, missing, error).
	OracleReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_oracle_reads_total",
		Help: "Oracle manager price conversions",
	}, []string{"result"})

	// DepositLimitRejections counts deposits rejected by the exposure limiter.
	DepositLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_deposit_limit_rejections_total",
		Help: "Deposits rejected by the exposure limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// EventsPublished counts events committed to the journal by kind.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_events_published_total",
		Help: "Events emitted by committed transactions",
	}, []string{"kind"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveSince records the latency of a vault operation started at start.
func ObserveSince(vault, op string, start time.Time) {
	OperationLatency.WithLabelValues(vault, op).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps addresses and ids out of the label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
