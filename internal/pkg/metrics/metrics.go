// Package metrics exposes Prometheus collectors for the lottery.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lottery"

// Play results.
const (
	ResultSaint   = "saint"
	ResultDevil   = "devil"
	ResultNoPrize = "no_prize"
)

// Rejection reasons.
const (
	ReasonAlreadyPlayed = "already_played"
	ReasonInvalidInput  = "invalid_input"
	ReasonError         = "error"
)

var (
	// Registry holds the lottery Prometheus collectors.
	Registry = prometheus.NewRegistry()

	plays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plays_total",
			Help:      "Total number of accepted plays by result.",
		},
		[]string{"result"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of rejected plays by reason.",
		},
		[]string{"reason"},
	)

	playDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "play_duration_seconds",
			Help:      "Duration of play processing including storage.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)

	adminOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_operations_total",
			Help:      "Total number of admin operations.",
		},
		[]string{"operation"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(
		plays,
		rejections,
		playDuration,
		adminOperations,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordPlay records an accepted play.
func RecordPlay(result string, duration time.Duration) {
	plays.WithLabelValues(result).Inc()
	playDuration.Observe(duration.Seconds())
}

// RecordRejection records a rejected play.
func RecordRejection(reason string) {
	rejections.WithLabelValues(reason).Inc()
}

// RecordAdminOperation records an admin operation.
func RecordAdminOperation(operation string) {
	adminOperations.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records a handled HTTP request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func RecordHTTPRequest(method, path string, status int) {
	if path == "" {
		path = "unmatched"
	}
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
