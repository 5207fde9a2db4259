package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionAppendDuration times writeTransaction calls from the
	// coalescer's outermost-scope append through the underlying Stream.
	TransactionAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storagecore_transaction_append_duration_seconds",
			Help:    "Time taken to append a coalesced transaction to the log",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransactionOpsPerAppend = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storagecore_transaction_ops_per_append",
			Help:    "Number of ops coalesced into a single appended transaction",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storagecore_snapshot_duration_seconds",
			Help:    "Time taken for createSnapshot + writeSnapshot + truncateBefore",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storagecore_snapshot_failures_total",
			Help: "Total number of snapshot attempts that failed, periodic or on demand",
		},
	)

	ReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storagecore_replay_duration_seconds",
			Help:    "Time taken to replay the transaction log on startup",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	ReplayRecordsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagecore_replay_records_total",
			Help: "Number of records applied during the most recent replay",
		},
	)

	LogEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storagecore_log_entries_total",
			Help: "Current number of physical entries in the transaction log",
		},
	)
)

func init() {
	prometheus.MustRegister(TransactionAppendDuration)
	prometheus.MustRegister(TransactionOpsPerAppend)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(SnapshotFailuresTotal)
	prometheus.MustRegister(ReplayDuration)
	prometheus.MustRegister(ReplayRecordsTotal)
	prometheus.MustRegister(LogEntriesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
