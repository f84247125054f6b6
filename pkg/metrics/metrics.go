package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	FetchAttemptsTotal *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	ValidationScore    *prometheus.HistogramVec
	URLsInFlight       prometheus.Gauge

	ArchiveOperationsTotal *prometheus.CounterVec
	ProgressClaimedTotal   prometheus.Counter
	DiscoveredURLsTotal    *prometheus.CounterVec

	StageRowsTotal *prometheus.CounterVec
	LLMCallsTotal  *prometheus.CounterVec

	once sync.Once
)

// Init registers every collector once. It is safe to call from tests.
func Init() {
	once.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Acquisition attempts by method and outcome.",
		},
		[]string{"method", "outcome"}, // outcome: success, invalid, timeout, transport, http_5xx, ...
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of a single acquisition method call.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 90},
		},
		[]string{"method", "vendor"},
	)

	ValidationScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_validation_score",
			Help:    "Content validation score of fetched pages.",
			Buckets: []float64{0, 0.17, 0.34, 0.5, 0.67, 0.75, 0.84, 1},
		},
		[]string{"vendor"},
	)

	URLsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetch_urls_in_flight",
			Help: "URLs currently being acquired.",
		},
	)

	ArchiveOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_operations_total",
			Help: "Object archive operations.",
		},
		[]string{"operation", "status"}, // operation: put, get, stat, list, presign
	)

	ProgressClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_claimed_total",
			Help: "Rows claimed from the progress store.",
		},
	)

	DiscoveredURLsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_urls_total",
			Help: "Product URLs found by discovery.",
		},
		[]string{"vendor", "result"}, // result: inserted, duplicate, rejected
	)

	StageRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleaner_stage_rows_total",
			Help: "Rows in and out of each cleaner stage.",
		},
		[]string{"stage", "direction"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_calls_total",
			Help: "Calls to the external validation model.",
		},
		[]string{"status"},
	)
}
