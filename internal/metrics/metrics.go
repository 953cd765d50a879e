// Package metrics holds the Prometheus collectors for the resolver pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

var (
	ProductLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allergenlens_product_lookups_total",
			Help: "OpenFoodFacts lookups by kind (barcode, search) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allergenlens_llm_calls_total",
			Help: "Chat completion calls by purpose (terms, relevance) and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allergenlens_cache_lookups_total",
			Help: "Cache lookups by cache (terms, url, resolution) and outcome",
		},
		[]string{"cache", "outcome"},
	)

	RelevanceVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allergenlens_relevance_verdicts_total",
			Help: "Relevance validator verdicts (yes, no, undecided, error)",
		},
		[]string{"verdict"},
	)

	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "allergenlens_resolution_duration_seconds",
			Help:    "Time to resolve a query into grounding context",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)
