package domain

import "time"

// EventType names an observability event. Events are advisory — losing one
// never affects core correctness.
type EventType string

const (
	EvTaskCreated       EventType = "TASK_CREATED"
	EvTaskStatusUpdated EventType = "TASK_STATUS_UPDATED"
	EvTaskAssigned      EventType = "TASK_ASSIGNED"
	EvTaskCompleted     EventType = "TASK_COMPLETED"
	EvTaskFailed        EventType = "TASK_FAILED"
	EvTaskCancelled     EventType = "TASK_CANCELLED"
	EvTaskEvaluated     EventType = "TASK_EVALUATED"

	EvBidPlaced     EventType = "BID_PLACED"
	EvBiddingOpened EventType = "BIDDING_OPENED"
	EvBiddingClosed EventType = "BIDDING_CLOSED"

	EvReputationUpdated       EventType = "REPUTATION_UPDATED"
	EvCapabilityWeightUpdated EventType = "CAPABILITY_WEIGHT_UPDATED"
	EvAgentPenalized          EventType = "AGENT_PENALIZED"
	EvStrategyUpdated         EventType = "BIDDING_STRATEGY_UPDATED"
)

// Event carries enough state to reconstruct the delta it describes.
type Event struct {
	Type      EventType  `json:"type"`
	At        time.Time  `json:"at"`
	TaskID    string     `json:"task_id,omitempty"`
	AgentID   string     `json:"agent_id,omitempty"`
	Tag       string     `json:"tag,omitempty"` // capability tag, when relevant
	OldValue  int        `json:"old_value,omitempty"`
	NewValue  int        `json:"new_value,omitempty"`
	OldStatus TaskStatus `json:"old_status,omitempty"`
	NewStatus TaskStatus `json:"new_status,omitempty"`
	Amount    int64      `json:"amount,omitempty"` // bid amount, when relevant
	Detail    string     `json:"detail,omitempty"`
}

// LearningEvent is a generic journal record of one learning-loop update.
type LearningEvent struct {
	Kind     string    `json:"kind"` // reputation | capability_weight | penalty | strategy | task_score
	AgentID  string    `json:"agent_id"`
	TaskID   string    `json:"task_id,omitempty"`
	Tag      string    `json:"tag,omitempty"`
	OldValue int       `json:"old_value"`
	NewValue int       `json:"new_value"`
	At       time.Time `json:"at"`
}
