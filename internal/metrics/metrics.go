package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// Hydrations counts remote bulk loads of the test store.
	Hydrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_store_hydrations_total",
			Help: "Total number of test store hydrations from the remote table",
		},
		[]string{"status"}, // status: success/failure
	)

	// Mutations counts write-through operations of the test store.
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_store_mutations_total",
			Help: "Total number of test store write-through mutations",
		},
		[]string{"op", "status"}, // op: add/update/delete
	)

	// RemoteLatency observes remote table round-trips.
	RemoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_store_remote_duration_seconds",
			Help:    "Time spent waiting on the remote tests table",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// CachedTests is the number of tests currently held in memory.
	CachedTests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "test_store_cached_tests",
			Help: "Current number of tests held by the test store",
		},
	)

	// SubscriberPanics counts subscriber callbacks that panicked during notification.
	SubscriberPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "test_store_subscriber_panics_total",
			Help: "Total number of subscriber callbacks that panicked",
		},
	)
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
