package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntentsCollected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solver_intents_collected",
		Help: "Live escrow intents seen in the last solver cycle",
	})

	IntentsRouted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "solver_intents_routed",
		Help: "Intents with a viable route in the last solver cycle",
	})

	BatchesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_batches_total",
		Help: "Settlement batches by outcome",
	}, []string{"outcome"})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_batch_size",
		Help:    "Intents per settlement batch",
		Buckets: prometheus.LinearBuckets(1, 1, 15),
	})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "solver_job_duration_seconds",
		Help:    "Time taken by one job tick",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms up to ~100s
	}, []string{"job"})

	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "solver_ticks_skipped_total",
		Help: "Ticks skipped because the previous tick was still running or the job was paused",
	}, []string{"job", "reason"})

	KeeperActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_actions_total",
		Help: "Keeper transactions by kind and outcome",
	}, []string{"kind", "outcome"})

	ItemsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_items_expired_total",
		Help: "Intents and orders marked expired",
	}, []string{"kind"})

	JournalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_errors_total",
		Help: "Failed best-effort event journal writes",
	}, []string{"journal"})
)

// WatchLeases exports count as the number of held escrow leases.
// Call it once per process.
func WatchLeases(count func() int) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "solver_leases_held",
		Help: "Escrow outputs currently leased by an in-flight batch",
	}, func() float64 { return float64(count()) })
}

// Outcome labels
const (
	OutcomeConfirmed = "confirmed"
	OutcomePending   = "pending"
	OutcomeFailed    = "failed"
)
