package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chopsticks"

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0}

var sizeBuckets = []float64{1024, 10240, 102400, 1048576, 10485760, 104857600, 1073741824}

// Aggregator maintains cumulative Prometheus observations over ingested
// records. It owns a private registry (rather than the global
// prometheus.DefaultRegisterer) so multiple independent aggregators can
// coexist within a process, e.g. one per test in this package's own tests.
//
// It is not the system of record: it is a live read-through of whatever
// records the daemon has ingested so far. All observation updates are
// goroutine-safe — client_golang's Vec types serialize internally.
type Aggregator struct {
	registry *prometheus.Registry

	duration   *prometheus.HistogramVec
	size       *prometheus.HistogramVec
	throughput *prometheus.GaugeVec
	total      *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

// NewAggregator constructs an Aggregator with its own private registry and
// registers all four core families plus the supplemental error-category
// counter.
func NewAggregator() *Aggregator {
	labels := []string{"operation", "workload", "driver", "success"}

	a := &Aggregator{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of a workload operation, in seconds.",
			Buckets:   durationBuckets,
		}, labels),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_size_bytes",
			Help:      "Size of the object involved in a workload operation, in bytes.",
			Buckets:   sizeBuckets,
		}, labels),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operation_throughput_mbps",
			Help:      "Most recent observed throughput for a label set, in MiB/s.",
		}, labels),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_total",
			Help:      "Total number of completed operations.",
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total number of failed operations by error category (supplemental, not part of the core contract).",
		}, []string{"category"}),
	}

	a.registry.MustRegister(a.duration, a.size, a.throughput, a.total, a.errors)
	return a
}

// Observe records one completed operation against all four families, plus
// the supplemental error-category counter when the record failed.
func (a *Aggregator) Observe(r Record) {
	labels := prometheus.Labels{
		"operation": string(r.OperationType),
		"workload":  string(r.WorkloadType),
		"driver":    r.Driver,
		"success":   successLabel(r.Success),
	}

	a.duration.With(labels).Observe(r.DurationMS() / 1000)
	a.size.With(labels).Observe(float64(r.ObjectSizeBytes))
	a.throughput.With(labels).Set(r.ThroughputMBPS())
	a.total.With(labels).Inc()

	if !r.Success {
		category := ClassifyError(r.ErrorCode, r.ErrorMessage)
		a.errors.WithLabelValues(string(category)).Inc()
	}
}

// Handler returns an http.Handler serving the aggregator's families in
// Prometheus text exposition format. Render order (HELP/TYPE/buckets/sum
// and count lines, sorted label keys) is promhttp's own, which conforms to
// the text exposition format the spec requires.
func (a *Aggregator) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}
