package domain

import "time"

// Fixed-point convention: reputation, capability weights, confidence, risk
// tolerance, utility, and task scores are all integers in [0, 100].

// History capacities for the bounded per-agent logs.
const (
	RecentTaskCap        = 10  // task-id/score pairs for the learning curve
	ScoreSeriesCap       = 100 // pure score series
	WeightEvolutionCap   = 50
	StrategyEvolutionCap = 20
)

// Agent is a market participant's learned model: reputation, skills,
// workload, and bidding posture.
type Agent struct {
	ID           string          `json:"id"`
	Active       bool            `json:"active"`
	Reputation   int             `json:"reputation"` // 0-100, starts at 50
	Capabilities map[string]int  `json:"capabilities"`
	Workload     int             `json:"workload"` // open assignments, never negative
	Strategy     BiddingStrategy `json:"strategy"`
	RegisteredAt time.Time       `json:"registered_at"`
}

// BiddingStrategy is the agent's adaptive bidding posture.
type BiddingStrategy struct {
	Confidence    int       `json:"confidence"`     // 0-100
	RiskTolerance int       `json:"risk_tolerance"` // 0-100
	LastUpdated   time.Time `json:"last_updated"`
}

// TaskScore is one entry in an agent's recent-task history.
type TaskScore struct {
	TaskID     string    `json:"task_id"`
	Score      int       `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// WeightChange records one capability-weight update.
type WeightChange struct {
	Tag       string    `json:"tag"`
	OldWeight int       `json:"old_weight"`
	NewWeight int       `json:"new_weight"`
	TaskID    string    `json:"task_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// StrategyChange records one bidding-strategy adaptation.
type StrategyChange struct {
	OldConfidence int       `json:"old_confidence"`
	NewConfidence int       `json:"new_confidence"`
	OldRisk       int       `json:"old_risk"`
	NewRisk       int       `json:"new_risk"`
	Reason        string    `json:"reason"`
	ChangedAt     time.Time `json:"changed_at"`
}

// LearningState is a read-only snapshot of everything the market has
// learned about an agent.
type LearningState struct {
	Agent             Agent            `json:"agent"`
	RecentTasks       []TaskScore      `json:"recent_tasks"`
	ScoreSeries       []int            `json:"score_series"`
	LearningCurve     int              `json:"learning_curve"` // rolling average of recent scores
	AssignedTasks     []string         `json:"assigned_tasks"`
	WeightEvolution   []WeightChange   `json:"weight_evolution"`
	StrategyEvolution []StrategyChange `json:"strategy_evolution"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
