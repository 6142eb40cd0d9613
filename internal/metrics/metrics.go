// Package metrics holds Prometheus instruments used across docpress. All
// collectors are registered with the global registry, so importing this
// package is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docpress"

// Result labels shared by lookup and cache counters.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

var (
	IDMapLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idmap_lookups_total",
			Help:      "Identifier map lookups by result (hit, miss).",
		}, []string{"result"})

	IDMapQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idmap_queries_total",
			Help:      "Batched documentId lookup queries issued to the row store.",
		})

	DocumentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_operations_total",
			Help:      "Document service calls by action and outcome.",
		}, []string{"action", "outcome"})

	DocumentOperationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_operation_seconds",
			Help:      "Latency of document service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"})

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_results_total",
			Help:      "Published document cache lookups by result (hit, miss, error).",
		}, []string{"result"})

	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_invalidations_total",
			Help:      "Cache keys removed after document writes.",
		})
)

func init() {
	prometheus.MustRegister(
		IDMapLookups,
		IDMapQueries,
		DocumentOperations,
		DocumentOperationSeconds,
		CacheResults,
		CacheInvalidations,
	)
}

// Outcome maps an operation error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
