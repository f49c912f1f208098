// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_cache_hits_total",
		Help: "Cache lookups answered from the translation memory, by bucket.",
	}, []string{"bucket"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_cache_misses_total",
		Help: "Cache lookups that required fresh translation, by bucket.",
	}, []string{"bucket"})

	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_backend_requests_total",
		Help: "Translation backend attempts, by model and outcome.",
	}, []string{"model", "outcome"})

	FragmentsTranslated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translation_fragments_total",
		Help: "Fragments sent to the translation backend.",
	})

	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_job_transitions_total",
		Help: "Job status transitions applied, by resulting status.",
	}, []string{"status"})
)
