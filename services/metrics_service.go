package services

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mm-swarm/internal/models"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_swarm_http_requests_total",
			Help: "Total status API requests",
		},
		[]string{"route"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_swarm_http_request_errors_total",
			Help: "Status API requests answered with a 4xx or 5xx status",
		},
		[]string{"route"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mm_swarm_http_request_duration_seconds",
			Help:    "Duration of status API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_swarm_process_starts_total",
			Help: "Successful process starts",
		},
		[]string{"process"},
	)

	processStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_swarm_process_start_failures_total",
			Help: "Failed process start attempts",
		},
		[]string{"process"},
	)

	processUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mm_swarm_process_up",
			Help: "1 while the process is running",
		},
		[]string{"process"},
	)

	processRestarts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mm_swarm_process_restarts",
			Help: "Restarts of the process since the supervisor started",
		},
		[]string{"process"},
	)

	bridgedLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_swarm_log_lines_total",
			Help: "Lines forwarded by the log bridge",
		},
		[]string{"process", "level"},
	)

	rewrittenFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mm_swarm_rewritten_files_total",
			Help: "Configuration files rewritten with instance ports and hosts",
		},
	)

	registeredPackages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mm_swarm_registered_packages_total",
			Help: "Local modules appended to the MMPM external packages",
		},
	)

	totalRequests int64
	totalErrors   int64
)

func init() {
	prometheus.MustRegister(
		requestCount,
		requestErrors,
		requestDuration,
		processStarts,
		processStartFailures,
		processUp,
		processRestarts,
		bridgedLines,
		rewrittenFiles,
		registeredPackages,
	)
}

func IncrementRequestCount(route string) {
	requestCount.WithLabelValues(route).Inc()
	atomic.AddInt64(&totalRequests, 1)
}

func IncrementErrorCount(route string) {
	requestErrors.WithLabelValues(route).Inc()
	atomic.AddInt64(&totalErrors, 1)
}

func RecordRequestDuration(route string, seconds float64) {
	requestDuration.WithLabelValues(route).Observe(seconds)
}

// GetTotalRequestCount returns the requests served since start, for /healthz.
func GetTotalRequestCount() int64 {
	return atomic.LoadInt64(&totalRequests)
}

func GetTotalErrorCount() int64 {
	return atomic.LoadInt64(&totalErrors)
}

func RecordProcessStart(process string) {
	processStarts.WithLabelValues(process).Inc()
}

func RecordProcessStartFailure(process string) {
	processStartFailures.WithLabelValues(process).Inc()
}

// RecordProcessState mirrors a process detail into the up and restart gauges.
func RecordProcessState(detail models.ProcessDetail) {
	up := 0.0
	if detail.Status == models.StatusRunning {
		up = 1
	}
	processUp.WithLabelValues(detail.Name).Set(up)
	processRestarts.WithLabelValues(detail.Name).Set(float64(detail.RestartCount))
}

func RecordBridgedLine(process, level string) {
	bridgedLines.WithLabelValues(process, level).Inc()
}

func RecordRewrittenFiles(n int) {
	rewrittenFiles.Add(float64(n))
}

func RecordRegisteredPackages(n int) {
	registeredPackages.Add(float64(n))
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
