// Package metrics holds the curator's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Orchestration
	OrchestrationIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_orchestration_iterations",
			Help:    "Number of quality iterations used per orchestration run",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	OrchestrationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_orchestration_runs_total",
			Help: "Orchestration runs by terminal status",
		},
		[]string{"status"}, // "accepted", "exhausted", "failed", "cancelled"
	)

	RepairsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_repairs_applied_total",
			Help: "Repair strategies applied by the orchestrator",
		},
		[]string{"strategy"},
	)

	AdvisoryFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_advisory_fallbacks_total",
			Help: "Advisory call sites that fell back to deterministic rules",
		},
		[]string{"task"},
	)

	// Engine
	StrategyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_engine_strategy_failures_total",
			Help: "Generation strategies that failed and contributed no tracks",
		},
		[]string{"strategy"},
	)

	// Ordering
	OrderingStrategies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_ordering_strategy_total",
			Help: "Energy-arc strategies chosen by the orderer",
		},
		[]string{"strategy", "advised"},
	)

	// Catalog rate gate
	GateWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_catalog_gate_wait_seconds",
			Help:    "Time callers spent waiting on the catalog rate gate",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Journal
	JournalDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_journal_dropped_total",
			Help: "Run records dropped because the journal queue was full",
		},
	)
)

// RecordOrchestration records the outcome of one orchestration run.
func RecordOrchestration(status string, iterations int) {
	OrchestrationRuns.WithLabelValues(status).Inc()
	if iterations > 0 {
		OrchestrationIterations.Observe(float64(iterations))
	}
}

// RecordRepair counts one applied repair strategy.
func RecordRepair(strategy string) {
	RepairsApplied.WithLabelValues(strategy).Inc()
}

// RecordAdvisoryFallback counts a call site that used its fallback.
func RecordAdvisoryFallback(task string) {
	AdvisoryFallbacks.WithLabelValues(task).Inc()
}

// RecordStrategyFailure counts a failed generation strategy.
func RecordStrategyFailure(strategy string) {
	StrategyFailures.WithLabelValues(strategy).Inc()
}

// RecordOrderingStrategy counts the chosen energy arc.
func RecordOrderingStrategy(strategy string, advised bool) {
	label := "false"
	if advised {
		label = "true"
	}
	OrderingStrategies.WithLabelValues(strategy, label).Inc()
}

// ObserveGateWait records time spent blocked on the rate gate.
func ObserveGateWait(d time.Duration) {
	GateWait.Observe(d.Seconds())
}
