package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "enisi"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the status server.",
		},
		[]string{"rank", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"rank", "method", "path", "status"},
	)
	moves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agents",
			Name:      "moves_total",
			Help:      "Validated agent moves by outcome.",
		},
		[]string{"compartment", "outcome"},
	)
	localAgents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agents",
			Name:      "local",
			Help:      "Agents owned by a rank after the last cell synchronization.",
		},
		[]string{"rank", "compartment"},
	)
	syncPackages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "packages_total",
			Help:      "Packages sent during synchronization rounds.",
		},
		[]string{"compartment", "kind"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each step phase in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"phase"},
	)
	stepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "completed_total",
			Help:      "Completed simulation steps.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, moves, localAgents, syncPackages, stepDuration, stepsTotal)
	})
}

func RecordHTTPRequest(rank int, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	rankLabel := strconv.Itoa(rank)
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(rankLabel, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(rankLabel, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMove(compartment, outcome string) {
	RegisterMetrics()
	moves.WithLabelValues(compartment, outcome).Inc()
}

func SetLocalAgents(rank int, compartment string, n int) {
	RegisterMetrics()
	localAgents.WithLabelValues(strconv.Itoa(rank), compartment).Set(float64(n))
}

func RecordSyncPackages(compartment, kind string, n int) {
	RegisterMetrics()
	syncPackages.WithLabelValues(compartment, kind).Add(float64(n))
}

func ObservePhase(phase string, duration time.Duration) {
	RegisterMetrics()
	stepDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

func RecordStep() {
	RegisterMetrics()
	stepsTotal.Inc()
}
