package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketview"

var (
	// FetchTotal counts gateway outcomes by kind (ok, failed, rate_limited, cancelled).
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Upstream fetches by outcome",
	}, []string{"outcome"})

	// FetchDuration observes upstream latency for requests that got a response.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Upstream fetch latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// PollDelay is the most recently scheduled poll delay.
	PollDelay = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poll_delay_seconds",
		Help:      "Most recently scheduled poll delay",
	})

	// RateLimitedTotal counts poll cycles that ended throttled.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Poll cycles that ended rate limited",
	})

	// CollectionSize is the canonical collection size of the recorder tracker.
	CollectionSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "collection_size",
		Help:      "Records in the recorder's canonical collection",
	})

	// Sessions is the number of live websocket view sessions.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Live websocket view sessions",
	})

	// HistoryInserts counts rows written to market_ticks.
	HistoryInserts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_inserts_total",
		Help:      "Rows inserted into market_ticks",
	})

	// HistoryErrors counts failed history flushes.
	HistoryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_errors_total",
		Help:      "Failed history batch inserts",
	})
)
