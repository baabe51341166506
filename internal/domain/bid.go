package domain

import "time"

// Bid is one agent's offer on a task. Multiple bids per (agent, task) are
// retained; the most recent is the active one at auction close.
type Bid struct {
	ID       string    `json:"id"`
	TaskID   string    `json:"task_id"`
	AgentID  string    `json:"agent_id"`
	Utility  int       `json:"utility"` // self-reported, 0-100
	Amount   int64     `json:"amount"`  // micro-credit units
	PlacedAt time.Time `json:"placed_at"`
	Selected bool      `json:"selected"`
}

// Auction tracks a task's bidding window.
// A zero Deadline means bidding was never opened.
type Auction struct {
	TaskID   string    `json:"task_id"`
	Deadline time.Time `json:"deadline"`
	Resolved bool      `json:"resolved"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}

// Open reports whether bidding is currently open at the given instant.
func (a *Auction) Open(now time.Time) bool {
	return !a.Deadline.IsZero() && now.Before(a.Deadline)
}
