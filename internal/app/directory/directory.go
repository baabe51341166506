// Package directory implements the agent model store: per-agent reputation,
// capability weights, workload, bounded score histories, and bidding
// strategy. It is the single writer for all of those fields — other
// components mutate them only through this store.
package directory

import (
	"sort"
	"sync"
	"time"

	"github.com/agora-network/agora/internal/domain"
)

// record holds one agent's model. Each record carries its own lock so
// updates for different agents never block each other.
type record struct {
	mu            sync.Mutex
	agent         domain.Agent
	recentTasks   *domain.History[domain.TaskScore]
	scoreSeries   *domain.History[int]
	assignedTasks []string
	weightLog     *domain.History[domain.WeightChange]
	strategyLog   *domain.History[domain.StrategyChange]
}

// Store manages all agent records. Implements domain.Directory.
type Store struct {
	mu     sync.RWMutex
	agents map[string]*record
	now    func() time.Time // injectable clock for testing
}

// NewStore creates an empty agent store.
func NewStore() *Store {
	return &Store{
		agents: make(map[string]*record),
		now:    time.Now,
	}
}

// SetClock replaces the store's clock. Test hook.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Register adds a new agent with the given capability weights.
// Reputation starts at 50; confidence and risk tolerance start at 50.
func (s *Store) Register(agentID string, caps map[string]int) error {
	if agentID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agentID]; exists {
		return domain.ErrAgentExists
	}

	clamped := make(map[string]int, len(caps))
	for tag, w := range caps {
		clamped[tag] = domain.Clamp(w, 0, 100)
	}

	now := s.now()
	s.agents[agentID] = &record{
		agent: domain.Agent{
			ID:           agentID,
			Active:       true,
			Reputation:   50,
			Capabilities: clamped,
			Strategy: domain.BiddingStrategy{
				Confidence:    50,
				RiskTolerance: 50,
				LastUpdated:   now,
			},
			RegisteredAt: now,
		},
		recentTasks: domain.NewHistory[domain.TaskScore](domain.RecentTaskCap),
		scoreSeries: domain.NewHistory[int](domain.ScoreSeriesCap),
		weightLog:   domain.NewHistory[domain.WeightChange](domain.WeightEvolutionCap),
		strategyLog: domain.NewHistory[domain.StrategyChange](domain.StrategyEvolutionCap),
	}
	return nil
}

func (s *Store) get(agentID string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.agents[agentID]
	return r, ok
}

// Get returns a copy of the agent's public model.
func (s *Store) Get(agentID string) (domain.Agent, error) {
	r, ok := s.get(agentID)
	if !ok {
		return domain.Agent{}, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyAgent(r.agent), nil
}

// Deactivate marks an agent inactive. Inactive agents cannot bid or be
// assigned work.
func (s *Store) Deactivate(agentID string) error {
	return s.update(agentID, func(a *domain.Agent) { a.Active = false })
}

// Activate marks an agent active again.
func (s *Store) Activate(agentID string) error {
	return s.update(agentID, func(a *domain.Agent) { a.Active = true })
}

func (s *Store) update(agentID string, fn func(*domain.Agent)) error {
	r, ok := s.get(agentID)
	if !ok {
		return domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.agent)
	return nil
}

// ─── domain.Directory implementation ────────────────────────────────────────

// IsActive reports whether the agent exists and is active.
func (s *Store) IsActive(agentID string) bool {
	r, ok := s.get(agentID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agent.Active
}

// Capabilities returns a copy of the agent's capability-weight map.
func (s *Store) Capabilities(agentID string) (map[string]int, error) {
	r, ok := s.get(agentID)
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	caps := make(map[string]int, len(r.agent.Capabilities))
	for tag, w := range r.agent.Capabilities {
		caps[tag] = w
	}
	return caps, nil
}

// SetCapabilities replaces the agent's capability weights (clamped to [0,100]).
func (s *Store) SetCapabilities(agentID string, caps map[string]int) error {
	return s.update(agentID, func(a *domain.Agent) {
		clamped := make(map[string]int, len(caps))
		for tag, w := range caps {
			clamped[tag] = domain.Clamp(w, 0, 100)
		}
		a.Capabilities = clamped
	})
}

// Reputation returns the agent's current reputation.
func (s *Store) Reputation(agentID string) (int, error) {
	r, ok := s.get(agentID)
	if !ok {
		return 0, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agent.Reputation, nil
}

// SetReputation sets the agent's reputation (clamped to [0,100]).
func (s *Store) SetReputation(agentID string, rep int) error {
	return s.update(agentID, func(a *domain.Agent) {
		a.Reputation = domain.Clamp(rep, 0, 100)
	})
}

// Workload returns the agent's open-assignment count.
func (s *Store) Workload(agentID string) (int, error) {
	r, ok := s.get(agentID)
	if !ok {
		return 0, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agent.Workload, nil
}

// IncrementWorkload bumps the agent's workload by one.
func (s *Store) IncrementWorkload(agentID string) error {
	return s.update(agentID, func(a *domain.Agent) { a.Workload++ })
}

// DecrementWorkload lowers the agent's workload by one, floored at zero.
func (s *Store) DecrementWorkload(agentID string) error {
	return s.update(agentID, func(a *domain.Agent) {
		if a.Workload > 0 {
			a.Workload--
		}
	})
}

// ResetWorkload zeroes the agent's workload.
func (s *Store) ResetWorkload(agentID string) error {
	return s.update(agentID, func(a *domain.Agent) { a.Workload = 0 })
}

// ─── Learning state ─────────────────────────────────────────────────────────

// RecordTaskScore appends a task outcome to the agent's bounded histories.
func (s *Store) RecordTaskScore(agentID, taskID string, score int) error {
	r, ok := s.get(agentID)
	if !ok {
		return domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentTasks.Append(domain.TaskScore{
		TaskID:     taskID,
		Score:      score,
		RecordedAt: s.now(),
	})
	r.scoreSeries.Append(score)
	return nil
}

// AppendAssignedTask adds a task to the agent's assignment list.
func (s *Store) AppendAssignedTask(agentID, taskID string) error {
	r, ok := s.get(agentID)
	if !ok {
		return domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignedTasks = append(r.assignedTasks, taskID)
	return nil
}

// Strategy returns the agent's current bidding strategy.
func (s *Store) Strategy(agentID string) (domain.BiddingStrategy, error) {
	r, ok := s.get(agentID)
	if !ok {
		return domain.BiddingStrategy{}, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agent.Strategy, nil
}

// SetStrategy replaces the bidding strategy and logs the change.
func (s *Store) SetStrategy(agentID string, strat domain.BiddingStrategy, change domain.StrategyChange) error {
	r, ok := s.get(agentID)
	if !ok {
		return domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	strat.LastUpdated = s.now()
	r.agent.Strategy = strat
	change.ChangedAt = strat.LastUpdated
	r.strategyLog.Append(change)
	return nil
}

// SetCapabilityWeight updates a single tag weight and logs the evolution.
func (s *Store) SetCapabilityWeight(agentID, tag string, weight int, taskID string) error {
	r, ok := s.get(agentID)
	if !ok {
		return domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.agent.Capabilities[tag]
	w := domain.Clamp(weight, 0, 100)
	if r.agent.Capabilities == nil {
		r.agent.Capabilities = make(map[string]int)
	}
	r.agent.Capabilities[tag] = w
	r.weightLog.Append(domain.WeightChange{
		Tag:       tag,
		OldWeight: old,
		NewWeight: w,
		TaskID:    taskID,
		ChangedAt: s.now(),
	})
	return nil
}

// LearningCurve returns the rolling average of the agent's recent task
// scores (0 when the history is empty).
func (s *Store) LearningCurve(agentID string) (int, error) {
	r, ok := s.get(agentID)
	if !ok {
		return 0, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return learningCurveLocked(r), nil
}

func learningCurveLocked(r *record) int {
	scores := r.recentTasks.Items()
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, ts := range scores {
		sum += ts.Score
	}
	return sum / len(scores)
}

// Snapshot returns the agent's full learning state as copies.
func (s *Store) Snapshot(agentID string) (domain.LearningState, error) {
	r, ok := s.get(agentID)
	if !ok {
		return domain.LearningState{}, domain.ErrAgentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.LearningState{
		Agent:             copyAgent(r.agent),
		RecentTasks:       r.recentTasks.Items(),
		ScoreSeries:       r.scoreSeries.Items(),
		LearningCurve:     learningCurveLocked(r),
		AssignedTasks:     append([]string(nil), r.assignedTasks...),
		WeightEvolution:   r.weightLog.Items(),
		StrategyEvolution: r.strategyLog.Items(),
	}, nil
}

// List returns copies of all agents, unordered.
func (s *Store) List() []domain.Agent {
	s.mu.RLock()
	records := make([]*record, 0, len(s.agents))
	for _, r := range s.agents {
		records = append(records, r)
	}
	s.mu.RUnlock()

	out := make([]domain.Agent, 0, len(records))
	for _, r := range records {
		r.mu.Lock()
		out = append(out, copyAgent(r.agent))
		r.mu.Unlock()
	}
	return out
}

// ListByReputation returns all agents sorted by reputation, highest first.
// Ties break by ID for a stable order.
func (s *Store) ListByReputation() []domain.Agent {
	agents := s.List()
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Reputation != agents[j].Reputation {
			return agents[i].Reputation > agents[j].Reputation
		}
		return agents[i].ID < agents[j].ID
	})
	return agents
}

func copyAgent(a domain.Agent) domain.Agent {
	cp := a
	cp.Capabilities = make(map[string]int, len(a.Capabilities))
	for tag, w := range a.Capabilities {
		cp.Capabilities[tag] = w
	}
	return cp
}
