// Package metrics records Prometheus metrics for codec, store, and lookup
// activity. Registration is lazy so library consumers that never call
// InitMetrics pay nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Codec metrics
	codecOperationsTotal *prometheus.CounterVec

	// Lookup metrics
	lookupsTotal   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec

	// Store metrics
	storeMutationsTotal *prometheus.CounterVec

	// Policy metrics
	policyUpdatesTotal *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Recorder provides methods to record credential-subsystem metrics.
type Recorder struct{}

// NewRecorder creates a new Recorder instance.
// Metrics are lazily registered on first use.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// InitMetrics initializes all Prometheus metrics.
// This should be called once at startup if Prometheus metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		codecOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credops_codec_operations_total",
				Help: "Total number of codec operations by outcome",
			},
			[]string{"operation", "outcome"},
		)

		lookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credops_lookups_total",
				Help: "Total number of credential lookups",
			},
			[]string{"provider"},
		)

		lookupDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credops_lookup_duration_seconds",
				Help:    "Duration of credential lookups in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"provider"},
		)

		storeMutationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credops_store_mutations_total",
				Help: "Total number of store mutations by outcome",
			},
			[]string{"store", "operation", "outcome"},
		)

		policyUpdatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credops_policy_updates_total",
				Help: "Total number of provider policy changes",
			},
			[]string{"setting"},
		)

		metricsRegistered = true
	})
}

// RecordCodecOperation records an encrypt or decrypt with its outcome.
func (r *Recorder) RecordCodecOperation(operation, outcome string) {
	if !metricsRegistered || codecOperationsTotal == nil {
		return
	}
	codecOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordLookup records one credential lookup against a provider.
func (r *Recorder) RecordLookup(provider string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	if lookupsTotal != nil {
		lookupsTotal.WithLabelValues(provider).Inc()
	}

	if lookupDuration != nil {
		lookupDuration.WithLabelValues(provider).Observe(durationSeconds)
	}
}

// RecordStoreMutation records an add, update, or remove with its outcome.
func (r *Recorder) RecordStoreMutation(store, operation, outcome string) {
	if !metricsRegistered || storeMutationsTotal == nil {
		return
	}
	storeMutationsTotal.WithLabelValues(store, operation, outcome).Inc()
}

// RecordPolicyUpdate records a change to a provider policy setting.
func (r *Recorder) RecordPolicyUpdate(setting string) {
	if !metricsRegistered || policyUpdatesTotal == nil {
		return
	}
	policyUpdatesTotal.WithLabelValues(setting).Inc()
}

// GetCodecOperationsTotal returns the codec counter for testing.
func GetCodecOperationsTotal() *prometheus.CounterVec {
	return codecOperationsTotal
}

// GetLookupsTotal returns the lookup counter for testing.
func GetLookupsTotal() *prometheus.CounterVec {
	return lookupsTotal
}

// GetLookupDuration returns the lookup duration histogram for testing.
func GetLookupDuration() *prometheus.HistogramVec {
	return lookupDuration
}

// GetStoreMutationsTotal returns the store mutation counter for testing.
func GetStoreMutationsTotal() *prometheus.CounterVec {
	return storeMutationsTotal
}

// GetPolicyUpdatesTotal returns the policy update counter for testing.
func GetPolicyUpdatesTotal() *prometheus.CounterVec {
	return policyUpdatesTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
