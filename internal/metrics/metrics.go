// Package metrics provides Prometheus metrics for the news pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsbriefing"

var (
	// LLMCallsTotal counts provider calls by outcome.
	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of LLM provider calls",
		},
		[]string{"provider", "outcome"},
	)

	// LLMCallDuration measures provider latency.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Duration of LLM provider calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"provider"},
	)

	// PrimaryUsage tracks the primary provider's calls for the current day.
	PrimaryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_primary_daily_calls",
			Help:      "Primary provider calls recorded for the current UTC day",
		},
	)

	// SummariesTotal counts summarisation outcomes by status.
	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Total number of summarised articles by resulting status",
		},
		[]string{"status"},
	)

	// ArticlesIngestedTotal counts inserted and skipped articles per source.
	ArticlesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_ingested_total",
			Help:      "Total number of fetched articles by insert result",
		},
		[]string{"source", "result"},
	)

	// DigestRunsTotal counts digest generation runs by outcome.
	DigestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_runs_total",
			Help:      "Total number of daily digest runs",
		},
		[]string{"outcome"},
	)

	// ErrorsTotal counts errors by operation.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"operation", "error_type"},
	)
)
