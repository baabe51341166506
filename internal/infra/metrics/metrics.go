// Package metrics provides Prometheus metrics for Agora — counters,
// gauges, and histograms for tasks, auctions, and agent learning.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agora-network/agora/internal/domain"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksCreated tracks created tasks.
var TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "tasks_created_total",
	Help:      "Total tasks created.",
})

// TaskTransitions tracks lifecycle transitions by resulting status.
var TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "task_transitions_total",
	Help:      "Total task lifecycle transitions by resulting status.",
}, []string{"status"})

// TaskScores tracks final evaluation scores on the 0-100 scale.
var TaskScores = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "agora",
	Name:      "task_score",
	Help:      "Final task evaluation scores.",
	Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
})

// ─── Auctions ───────────────────────────────────────────────────────────────

// BidsPlaced tracks placed bids.
var BidsPlaced = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "bids_placed_total",
	Help:      "Total bids placed.",
})

// AuctionsClosed tracks resolved auctions.
var AuctionsClosed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "auctions_closed_total",
	Help:      "Total auctions closed with a winner.",
})

// ─── Learning ───────────────────────────────────────────────────────────────

// ReputationUpdates tracks reputation changes by direction.
var ReputationUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "reputation_updates_total",
	Help:      "Total reputation updates by direction.",
}, []string{"direction"})

// WeightUpdates tracks capability-weight changes by tag.
var WeightUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "capability_weight_updates_total",
	Help:      "Total capability-weight updates by tag.",
}, []string{"tag"})

// Penalties tracks underperformance penalties.
var Penalties = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "penalties_total",
	Help:      "Total underperformance penalties applied.",
})

// StrategyUpdates tracks bidding-strategy adaptations.
var StrategyUpdates = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "strategy_updates_total",
	Help:      "Total bidding-strategy adaptations.",
})

// ─── Event collection ───────────────────────────────────────────────────────

// Observe pumps bus events into the collectors until the channel closes.
// Run it in its own goroutine.
func Observe(events <-chan domain.Event) {
	for ev := range events {
		switch ev.Type {
		case domain.EvTaskCreated:
			TasksCreated.Inc()
		case domain.EvTaskAssigned, domain.EvTaskStatusUpdated, domain.EvTaskCompleted,
			domain.EvTaskFailed, domain.EvTaskCancelled:
			TaskTransitions.WithLabelValues(string(ev.NewStatus)).Inc()
		case domain.EvTaskEvaluated:
			TaskScores.Observe(float64(ev.NewValue))
		case domain.EvBidPlaced:
			BidsPlaced.Inc()
		case domain.EvBiddingClosed:
			AuctionsClosed.Inc()
		case domain.EvReputationUpdated:
			direction := "up"
			if ev.NewValue < ev.OldValue {
				direction = "down"
			}
			ReputationUpdates.WithLabelValues(direction).Inc()
		case domain.EvCapabilityWeightUpdated:
			WeightUpdates.WithLabelValues(ev.Tag).Inc()
		case domain.EvAgentPenalized:
			Penalties.Inc()
		case domain.EvStrategyUpdated:
			StrategyUpdates.Inc()
		}
	}
}
