package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_analyses_total",
			Help: "Total number of property analyses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estimator_analysis_duration_seconds",
			Help:    "Duration of a full property analysis in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		},
		[]string{"company"},
	)

	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_estimates_total",
			Help: "Service estimates produced by service type",
		},
		[]string{"service_type"},
	)

	EstimateValue = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estimator_estimate_total_dollars",
			Help:    "Total dollar value of completed analyses",
			Buckets: prometheus.ExponentialBuckets(100, 2, 8),
		},
		[]string{"company"},
	)

	PropertyLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_property_lookups_total",
			Help: "Property lookups by result source",
		},
		[]string{"source"},
	)

	LLMParseTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_llm_parse_tier_total",
			Help: "LLM responses by the tier that produced metrics",
		},
		[]string{"tier"},
	)

	RefreshQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estimator_refresh_dropped_total",
			Help: "Background property refreshes dropped because the queue was full",
		},
	)
)
