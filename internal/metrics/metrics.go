// Package metrics provides Prometheus metrics for chronostore
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for chronostore
type Metrics struct {
	// Write path
	ObservationsTotal prometheus.Counter

	// All engine operations
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Search path
	SearchQueriesTotal prometheus.Counter
	SearchHitsTotal    prometheus.Counter

	// Index rebuilds
	IndexBuildsTotal prometheus.Counter
	IndexValuesLast  prometheus.Gauge

	// Underlying engine
	StoreLSMBytes  prometheus.Gauge
	StoreVLogBytes prometheus.Gauge
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering every collector with the
// default registry on first use. A singleton keeps repeated store opens (and
// tests opening many handles) from tripping duplicate registration.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			ObservationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chronostore_observations_total",
				Help: "Total number of observations folded into the primary table",
			}),
			OperationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chronostore_operations_total",
					Help: "Total number of engine operations",
				},
				[]string{"operation", "status"},
			),
			OperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chronostore_operation_duration_seconds",
					Help:    "Duration of engine operations in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
				},
				[]string{"operation"},
			),
			SearchQueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chronostore_search_queries_total",
				Help: "Total number of index searches",
			}),
			SearchHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chronostore_search_hits_total",
				Help: "Total number of searches that matched at least one entity",
			}),
			IndexBuildsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chronostore_index_builds_total",
				Help: "Total number of completed index rebuilds",
			}),
			IndexValuesLast: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chronostore_index_values_last",
				Help: "Distinct normalized values written by the most recent index rebuild",
			}),
			StoreLSMBytes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chronostore_store_lsm_bytes",
				Help: "Size of the engine's LSM tree in bytes",
			}),
			StoreVLogBytes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chronostore_store_vlog_bytes",
				Help: "Size of the engine's value log in bytes",
			}),
		}
	})
	return instance
}

// RecordOperation tracks one engine operation's outcome and latency.
func (m *Metrics) RecordOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UpdateStoreSize publishes the engine's on-disk footprint.
func (m *Metrics) UpdateStoreSize(lsm, vlog int64) {
	m.StoreLSMBytes.Set(float64(lsm))
	m.StoreVLogBytes.Set(float64(vlog))
}
