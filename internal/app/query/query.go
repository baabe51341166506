// Package query is the read-side façade over the marketplace: task
// listings, the agent leaderboard, and per-agent learning snapshots,
// memoized behind a short TTL cache so hot dashboard polling does not
// hammer the stores.
//
// Writes never go through this package, so entries are only ever
// invalidated by expiry. The TTL bounds staleness; callers that need a
// read-your-write view query the owning store directly.
package query

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/agora-network/agora/internal/app/auction"
	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/registry"
	"github.com/agora-network/agora/internal/domain"
)

// Config configures the read cache.
type Config struct {
	// TTL is how long a memoized listing stays fresh.
	TTL time.Duration

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
}

// DefaultConfig returns production cache defaults.
func DefaultConfig() Config {
	return Config{
		TTL:             2 * time.Second,
		CleanupInterval: time.Minute,
	}
}

// Service answers read queries over the registry, directory, and auction
// engine.
type Service struct {
	tasks  *registry.Registry
	agents *directory.Store
	market *auction.Engine
	cache  *cache.Cache
}

// New creates a query service.
func New(cfg Config, tasks *registry.Registry, agents *directory.Store, market *auction.Engine) *Service {
	if cfg.TTL <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		tasks:  tasks,
		agents: agents,
		market: market,
		cache:  cache.New(cfg.TTL, cfg.CleanupInterval),
	}
}

// ─── Task queries ───────────────────────────────────────────────────────────

// Tasks lists tasks matching the filters. Empty filters match everything.
func (s *Service) Tasks(status domain.TaskStatus, creator, capability string) []domain.Task {
	key := fmt.Sprintf("tasks/%s/%s/%s", status, creator, capability)
	if v, ok := s.cache.Get(key); ok {
		return v.([]domain.Task)
	}
	out := s.tasks.List(status, creator, capability)
	s.cache.Set(key, out, cache.DefaultExpiration)
	return out
}

// Task returns a single task with its bids and auction state attached.
func (s *Service) Task(taskID string) (TaskView, error) {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		return TaskView{}, err
	}
	return TaskView{
		Task:    task,
		Auction: s.market.AuctionState(taskID),
		Bids:    s.market.Bids(taskID),
	}, nil
}

// TaskView is a task joined with its bidding state.
type TaskView struct {
	Task    domain.Task
	Auction domain.Auction
	Bids    []domain.Bid
}

// ─── Agent queries ──────────────────────────────────────────────────────────

// Leaderboard lists all agents ordered by reputation, highest first.
func (s *Service) Leaderboard() []domain.Agent {
	const key = "agents/leaderboard"
	if v, ok := s.cache.Get(key); ok {
		return v.([]domain.Agent)
	}
	out := s.agents.ListByReputation()
	s.cache.Set(key, out, cache.DefaultExpiration)
	return out
}

// Agent returns one agent's record.
func (s *Service) Agent(agentID string) (domain.Agent, error) {
	return s.agents.Get(agentID)
}

// LearningSnapshot returns the agent's full learning state: score series,
// learning curve, weight evolution, and strategy evolution. Snapshots are
// not cached; they are per-agent and already cheap copies.
func (s *Service) LearningSnapshot(agentID string) (domain.LearningState, error) {
	return s.agents.Snapshot(agentID)
}

// ─── Cache control ──────────────────────────────────────────────────────────

// Flush drops every memoized listing. Used by tests and by the daemon on
// administrative resets.
func (s *Service) Flush() {
	s.cache.Flush()
}
