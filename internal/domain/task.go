// Package domain — core marketplace types.
// A Task flows through the market:
// create → open bidding → bid → assign → execute → evaluate → learn.
package domain

import "time"

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskCreated    TaskStatus = "CREATED"
	TaskOpen       TaskStatus = "OPEN"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Task is a unit of work auctioned to agents.
type Task struct {
	ID            string          `json:"id"`
	Creator       string          `json:"creator"`
	Capabilities  []string        `json:"capabilities"`
	MinReputation int             `json:"min_reputation"`
	Reward        int             `json:"reward"`
	Deadline      time.Time       `json:"deadline"`
	Status        TaskStatus      `json:"status"`
	AssignedAgent string          `json:"assigned_agent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	AssignedAt    time.Time       `json:"assigned_at,omitempty"`
	CompletedAt   time.Time       `json:"completed_at,omitempty"`
	Result        string          `json:"result,omitempty"`
	FailReason    string          `json:"fail_reason,omitempty"`
	Evaluated     bool            `json:"evaluated"`
	Evaluation    *TaskEvaluation `json:"evaluation,omitempty"`
}

// IsTerminal returns true if the task has reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed || t.Status == TaskCancelled
}

// RequiresCapability reports whether the task names the given capability tag.
func (t *Task) RequiresCapability(tag string) bool {
	for _, c := range t.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// TaskEvaluation records the evaluator's verdict on a completed task.
// Written at most once per task.
type TaskEvaluation struct {
	Quality     int            `json:"quality"`     // 0-100
	DelayRatio  int            `json:"delay_ratio"` // 0-100, 0 = on time
	FinalScore  int            `json:"final_score"`
	TagScores   map[string]int `json:"tag_scores,omitempty"` // per-capability performance
	EvaluatedAt time.Time      `json:"evaluated_at"`
}
