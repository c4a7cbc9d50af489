package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 取得メトリクス
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowql_fetch_attempts_total",
			Help: "Total number of HTTP fetch attempts",
		},
		[]string{"result"},
	)

	PagesResolved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowql_pages_resolved",
			Help:    "Number of pages merged into a composite page",
			Buckets: []float64{1, 2, 3},
		},
	)

	// LLM メトリクス
	EngineQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowql_engine_queries_total",
			Help: "Total number of answer engine queries",
		},
		[]string{"engine", "status"},
	)

	EngineLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowql_engine_latency_seconds",
			Help:    "Answer engine response latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)

	CitationMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowql_citation_matches_total",
			Help: "Number of engine answers that mentioned the company",
		},
		[]string{"engine"},
	)

	SummaryDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowql_summary_degraded_total",
			Help: "Number of summaries that fell back to the not-found profile",
		},
	)

	// パイプラインメトリクス
	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowql_analyses_completed_total",
			Help: "Total number of analyses completed",
		},
		[]string{"status"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowql_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// キャッシュメトリクス
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowql_cache_lookups_total",
			Help: "Report cache lookups",
		},
		[]string{"backend", "result"},
	)
)
