package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters and gauges. Quota exhaustion and fatal auth errors show
// up here as the absence of fetches and alerts, so the status surface is not
// just logs.
var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nichewatch_fetch_total",
		Help: "Source fetches by endpoint and outcome (ok, rate_limited, transient, fatal).",
	}, []string{"endpoint", "outcome"})

	QuotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nichewatch_quota_remaining",
		Help: "Most recently tracked remaining quota per endpoint.",
	}, []string{"endpoint"})

	ItemsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nichewatch_items_fetched_total",
		Help: "Raw content items returned by the source, by acquisition path.",
	}, []string{"source"})

	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nichewatch_dedup_hits_total",
		Help: "Items skipped because they were already processed.",
	})

	Opportunities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nichewatch_opportunities_total",
		Help: "Scored items by alert tier (including discard).",
	}, []string{"tier"})

	AlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nichewatch_alerts_dispatched_total",
		Help: "Dispatch attempts by result (sent, skipped, failed, dropped).",
	}, []string{"result"})

	FeedbackRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nichewatch_feedback_recorded_total",
		Help: "Feedback records accepted.",
	})

	WeightRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nichewatch_weight_recomputes_total",
		Help: "Scoring-weight recompute runs by outcome (updated, skipped, error).",
	}, []string{"outcome"})
)
