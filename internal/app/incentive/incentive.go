// Package incentive implements the marketplace learning loop: utility
// scoring for bids, task outcome scoring, EMA reputation and
// capability-weight updates, underperformance penalties, and bidding
// strategy adaptation.
//
// All arithmetic is integer with truncating division on the 0-100
// fixed-point scale. Multiplication always happens before division so that
// outputs are bit-for-bit reproducible for the same inputs.
package incentive

import (
	"fmt"
	"sort"
	"time"

	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds the tunable weights of the learning loop.
type Config struct {
	QualityWeight       int // α: share of quality in the task score (default 60)
	DelayWeight         int // δ: share of timeliness, α+δ = 100 (default 40)
	MismatchGamma       int // γ: capability-mismatch penalty weight (default 20)
	WorkloadBeta        int // β: workload penalty weight (default 10)
	ReputationLambda    int // λ: reputation EMA smoothing (default 80)
	WeightMu            int // μ: capability-weight EMA smoothing (default 70)
	AdaptationFactor    int // adaptive boost per point of surprise (default 25)
	DecayFactor         int // accelerated decay for scores below weight (default 35)
	MaxReputationChange int // per-step reputation change cap (default 10)
	WinNudge            int // reputation bump for winning an auction (default 1)
	PenaltyThreshold    int // scores below this trigger a penalty (default 30)
	PenaltyFactor       int // percent shaved off every weight on penalty (default 10)
	ConfidenceRate      int // percent of (S-70)/(50-S) applied to confidence (default 50)
	RiskStep            int // fixed risk-tolerance step (default 5)
	MinConfidence       int // default 10
	MaxConfidence       int // default 95
	MinRisk             int // default 10
	MaxRisk             int // default 90
}

// DefaultConfig returns production learning-loop defaults.
func DefaultConfig() Config {
	return Config{
		QualityWeight:       60,
		DelayWeight:         40,
		MismatchGamma:       20,
		WorkloadBeta:        10,
		ReputationLambda:    80,
		WeightMu:            70,
		AdaptationFactor:    25,
		DecayFactor:         35,
		MaxReputationChange: 10,
		WinNudge:            1,
		PenaltyThreshold:    30,
		PenaltyFactor:       10,
		ConfidenceRate:      50,
		RiskStep:            5,
		MinConfidence:       10,
		MaxConfidence:       95,
		MinRisk:             10,
		MaxRisk:             90,
	}
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine drives every agent-model mutation. It is the only writer of
// reputation, capability weights, workload, and strategy — always through
// the directory store.
type Engine struct {
	config  Config
	agents  *directory.Store
	journal domain.LearningJournal // optional
	events  domain.Publisher       // optional
	now     func() time.Time
}

// NewEngine creates an incentive engine over the given agent store.
// journal and events may be nil.
func NewEngine(cfg Config, agents *directory.Store, journal domain.LearningJournal, events domain.Publisher) *Engine {
	return &Engine{
		config:  cfg,
		agents:  agents,
		journal: journal,
		events:  events,
		now:     time.Now,
	}
}

// SetClock replaces the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// ─── Utility function ───────────────────────────────────────────────────────

// Utility estimates how well-suited and profitable a task is for an agent:
// the reward net of a workload penalty and a capability-mismatch penalty,
// clamped to [0, 100]. Implements domain.UtilityScorer.
func (e *Engine) Utility(agentID string, capabilities []string, reward int) (int, error) {
	caps, err := e.agents.Capabilities(agentID)
	if err != nil {
		return 0, err
	}
	workload, err := e.agents.Workload(agentID)
	if err != nil {
		return 0, err
	}

	mismatch := 0
	if len(capabilities) > 0 {
		if len(caps) == 0 {
			// No capabilities at all: flat penalty per required tag.
			mismatch = e.config.MismatchGamma * len(capabilities)
		} else {
			gap := 0
			for _, tag := range capabilities {
				w, ok := caps[tag]
				if !ok {
					w = 0 // missing tag contributes the maximum gap
				}
				gap += 100 - w
			}
			mismatch = e.config.MismatchGamma * gap / (100 * len(capabilities))
		}
	}

	workloadPenalty := workload * e.config.WorkloadBeta / 10

	return domain.Clamp(reward-workloadPenalty-mismatch, 0, 100), nil
}

// ─── Task scoring ───────────────────────────────────────────────────────────

// TaskScore blends quality and timeliness into a single 0-100 score:
// S = (α·quality + δ·(100−delayRatio)) / 100.
func (e *Engine) TaskScore(quality, delayRatio int) int {
	return (e.config.QualityWeight*quality + e.config.DelayWeight*(100-delayRatio)) / 100
}

// ─── Assignment hooks ───────────────────────────────────────────────────────

// RecordAssignment bumps the agent's workload and task list after an
// assignment (manual or auction-won).
func (e *Engine) RecordAssignment(agentID, taskID string) error {
	if err := e.agents.IncrementWorkload(agentID); err != nil {
		return err
	}
	return e.agents.AppendAssignedTask(agentID, taskID)
}

// RecordWin records an auction win: the assignment side effects plus a
// reputation nudge of at most WinNudge points, independent of the EMA path.
func (e *Engine) RecordWin(agentID, taskID string) error {
	if err := e.RecordAssignment(agentID, taskID); err != nil {
		return err
	}

	old, err := e.agents.Reputation(agentID)
	if err != nil {
		return err
	}
	nudged := domain.Clamp(old+e.config.WinNudge, 0, 100)
	if nudged != old {
		if err := e.agents.SetReputation(agentID, nudged); err != nil {
			return err
		}
		e.publish(domain.Event{
			Type: domain.EvReputationUpdated, TaskID: taskID, AgentID: agentID,
			OldValue: old, NewValue: nudged, Detail: "auction win",
		})
	}
	return nil
}

// ─── Outcome recording ──────────────────────────────────────────────────────

// RecordOutcome feeds a task evaluation back into the agent model: final
// score, reputation EMA, capability weights (uniform or selective via
// tagScores), underperformance penalty, and strategy adaptation. Returns
// the final score. Workload is released by the registry when the task
// completes or fails, not here.
func (e *Engine) RecordOutcome(agentID, taskID string, quality, delayRatio int, tags []string, tagScores map[string]int) (int, error) {
	if quality < 0 || quality > 100 || delayRatio < 0 || delayRatio > 100 {
		return 0, fmt.Errorf("%w: quality and delay ratio must be in [0,100]", domain.ErrInvalidInput)
	}
	for tag, s := range tagScores {
		if s < 0 || s > 100 {
			return 0, fmt.Errorf("%w: tag score for %q out of range", domain.ErrInvalidInput, tag)
		}
	}

	score := e.TaskScore(quality, delayRatio)

	if err := e.agents.RecordTaskScore(agentID, taskID, score); err != nil {
		return 0, err
	}
	e.record(domain.LearningEvent{Kind: "task_score", AgentID: agentID, TaskID: taskID, NewValue: score})

	if err := e.updateReputation(agentID, taskID, score); err != nil {
		return 0, err
	}
	if err := e.updateWeights(agentID, taskID, score, tags, tagScores); err != nil {
		return 0, err
	}
	if score < e.config.PenaltyThreshold {
		if err := e.applyPenalty(agentID, taskID, score); err != nil {
			return 0, err
		}
	}
	if err := e.adaptStrategy(agentID, taskID, score); err != nil {
		return 0, err
	}

	return score, nil
}

// updateReputation applies the EMA with adaptive step and clamp:
// ema = (λ·old + (100−λ)·S)/100, then a boost/penalty proportional to the
// surprise |S − old| is added, the single-step change is capped at
// MaxReputationChange, and the result is clamped to [1, 100].
func (e *Engine) updateReputation(agentID, taskID string, score int) error {
	old, err := e.agents.Reputation(agentID)
	if err != nil {
		return err
	}

	lambda := e.config.ReputationLambda
	ema := (lambda*old + (100-lambda)*score) / 100

	surprise := score - old
	if surprise < 0 {
		surprise = -surprise
	}
	adaptive := surprise * e.config.AdaptationFactor / 100
	target := ema
	if score > old {
		target += adaptive
	} else if score < old {
		target -= adaptive
	}

	change := target - old
	if change > e.config.MaxReputationChange {
		change = e.config.MaxReputationChange
	}
	if change < -e.config.MaxReputationChange {
		change = -e.config.MaxReputationChange
	}

	updated := domain.Clamp(old+change, 1, 100)
	if err := e.agents.SetReputation(agentID, updated); err != nil {
		return err
	}

	e.publish(domain.Event{
		Type: domain.EvReputationUpdated, TaskID: taskID, AgentID: agentID,
		OldValue: old, NewValue: updated,
	})
	e.record(domain.LearningEvent{Kind: "reputation", AgentID: agentID, TaskID: taskID, OldValue: old, NewValue: updated})
	return nil
}

// updateWeights runs the capability EMA per tag. The uniform task score
// applies to every tag the agent holds; an entry in tagScores overrides the
// score for that tag. Rising scores get an extra learning-rate boost,
// falling scores an accelerated decay.
func (e *Engine) updateWeights(agentID, taskID string, score int, tags []string, tagScores map[string]int) error {
	caps, err := e.agents.Capabilities(agentID)
	if err != nil {
		return err
	}

	sorted := make([]string, 0, len(caps))
	for tag := range caps {
		sorted = append(sorted, tag)
	}
	sort.Strings(sorted)

	mu := e.config.WeightMu
	for _, tag := range sorted {
		old := caps[tag]
		s := score
		if override, ok := tagScores[tag]; ok {
			s = override
		}

		next := (mu*old + (100-mu)*s) / 100
		if s > old {
			next += (s - old) * e.config.AdaptationFactor / 100
		} else if s < old {
			next -= (old - s) * e.config.DecayFactor / 100
		}
		next = domain.Clamp(next, 1, 100)

		if err := e.agents.SetCapabilityWeight(agentID, tag, next, taskID); err != nil {
			return err
		}
		e.publish(domain.Event{
			Type: domain.EvCapabilityWeightUpdated, TaskID: taskID, AgentID: agentID,
			Tag: tag, OldValue: old, NewValue: next,
		})
		e.record(domain.LearningEvent{Kind: "capability_weight", AgentID: agentID, TaskID: taskID, Tag: tag, OldValue: old, NewValue: next})
	}
	return nil
}

// applyPenalty shaves PenaltyFactor percent off every capability weight
// (floor 1) when the final score falls below the penalty threshold.
func (e *Engine) applyPenalty(agentID, taskID string, score int) error {
	caps, err := e.agents.Capabilities(agentID)
	if err != nil {
		return err
	}

	sorted := make([]string, 0, len(caps))
	for tag := range caps {
		sorted = append(sorted, tag)
	}
	sort.Strings(sorted)

	for _, tag := range sorted {
		old := caps[tag]
		reduced := old - old*e.config.PenaltyFactor/100
		if reduced < 1 {
			reduced = 1
		}
		if reduced == old {
			continue
		}
		if err := e.agents.SetCapabilityWeight(agentID, tag, reduced, taskID); err != nil {
			return err
		}
		e.record(domain.LearningEvent{Kind: "penalty", AgentID: agentID, TaskID: taskID, Tag: tag, OldValue: old, NewValue: reduced})
	}

	e.publish(domain.Event{
		Type: domain.EvAgentPenalized, TaskID: taskID, AgentID: agentID,
		NewValue: score, Detail: "score below penalty threshold",
	})
	return nil
}

// adaptStrategy adjusts the agent's bidding posture from the outcome:
// confidence follows the score, risk tolerance follows score and
// reputation together. No-op changes are not logged.
func (e *Engine) adaptStrategy(agentID, taskID string, score int) error {
	strat, err := e.agents.Strategy(agentID)
	if err != nil {
		return err
	}
	rep, err := e.agents.Reputation(agentID)
	if err != nil {
		return err
	}

	conf := strat.Confidence
	switch {
	case score >= 70:
		conf += (score - 70) * e.config.ConfidenceRate / 100
	case score <= 50:
		conf -= (50 - score) * e.config.ConfidenceRate / 100
	}
	conf = domain.Clamp(conf, e.config.MinConfidence, e.config.MaxConfidence)

	risk := strat.RiskTolerance
	if rep >= 70 && score >= 70 {
		risk += e.config.RiskStep
	} else if rep <= 40 || score <= 40 {
		risk -= e.config.RiskStep
	}
	risk = domain.Clamp(risk, e.config.MinRisk, e.config.MaxRisk)

	if conf == strat.Confidence && risk == strat.RiskTolerance {
		return nil
	}

	change := domain.StrategyChange{
		OldConfidence: strat.Confidence,
		NewConfidence: conf,
		OldRisk:       strat.RiskTolerance,
		NewRisk:       risk,
		Reason:        fmt.Sprintf("task %s scored %d", taskID, score),
	}
	next := domain.BiddingStrategy{Confidence: conf, RiskTolerance: risk}
	if err := e.agents.SetStrategy(agentID, next, change); err != nil {
		return err
	}

	e.publish(domain.Event{
		Type: domain.EvStrategyUpdated, TaskID: taskID, AgentID: agentID,
		OldValue: strat.Confidence, NewValue: conf,
	})
	e.record(domain.LearningEvent{Kind: "strategy", AgentID: agentID, TaskID: taskID, OldValue: strat.Confidence, NewValue: conf})
	return nil
}

// ─── Internal ───────────────────────────────────────────────────────────────

func (e *Engine) publish(ev domain.Event) {
	if e.events == nil {
		return
	}
	ev.At = e.now()
	e.events.Publish(ev)
}

func (e *Engine) record(ev domain.LearningEvent) {
	if e.journal == nil {
		return
	}
	ev.At = e.now()
	e.journal.RecordLearning(ev)
}
