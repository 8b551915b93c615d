// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FastPathExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodlog_fastpath_extractions_total",
			Help: "Fast-path extraction attempts by outcome (accepted, declined)",
		},
		[]string{"outcome"},
	)

	LLMAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodlog_llm_attempts_total",
			Help: "Language-model extraction attempts by outcome (ok, retry, failed)",
		},
		[]string{"outcome"},
	)

	ProviderLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodlog_provider_lookups_total",
			Help: "Nutrition provider lookups by provider, request type, and outcome",
		},
		[]string{"provider", "type", "outcome"},
	)

	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodlog_cache_events_total",
			Help: "Cache hits and misses by cache name",
		},
		[]string{"cache", "event"},
	)

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "foodlog_resolve_duration_seconds",
			Help: "Duration of per-item nutrition resolution by strategy",
		},
		[]string{"strategy"},
	)
)
