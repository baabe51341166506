package domain

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Directory is the agent directory the core consumes: per-agent identity,
// capability weights, reputation, and workload. The directory owns these
// fields; the core mutates them only through this interface.
type Directory interface {
	IsActive(agentID string) bool
	Capabilities(agentID string) (map[string]int, error)
	SetCapabilities(agentID string, caps map[string]int) error
	Reputation(agentID string) (int, error)
	SetReputation(agentID string, rep int) error
	Workload(agentID string) (int, error)
	IncrementWorkload(agentID string) error
	DecrementWorkload(agentID string) error
	ResetWorkload(agentID string) error
}

// UtilityScorer computes how well-suited a task is for an agent. The auction
// engine substitutes a computed utility for the bid's self-reported one
// whenever a scorer is wired in.
type UtilityScorer interface {
	Utility(agentID string, capabilities []string, reward int) (int, error)
}

// AuditSink is the append-only audit-log collaborator. Record is
// fire-and-forget: a failed write must never fail the core transition.
type AuditSink interface {
	Record(action, taskID, agentID, detail string)
}

// LearningJournal records learning-loop events for later inspection.
type LearningJournal interface {
	RecordLearning(ev LearningEvent)
}

// Publisher emits observability events. Publishing never blocks.
type Publisher interface {
	Publish(ev Event)
}

// PeerChannel is the coordination channel agents use outside the scheduler.
// The core only ever fires notifications into it.
type PeerChannel interface {
	Announce(topic string, payload any)
}
