// Package registry implements the task registry: task records, the
// lifecycle state machine, and the authorization rules for who may drive
// each transition.
//
// Lifecycle: Created → Open → Assigned → InProgress → {Completed | Failed},
// with Cancelled reachable unless the task is already Completed or
// Cancelled. create() lands directly in Open — callers never see Created.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/incentive"
	"github.com/agora-network/agora/internal/domain"
)

// CreateTask is the input to Create.
type CreateTask struct {
	Capabilities  []string
	MinReputation int
	Reward        int
	Deadline      time.Time
}

// taskRecord pairs a task with its own lock so transitions on different
// tasks never serialize against each other.
type taskRecord struct {
	mu   sync.Mutex
	task domain.Task
}

// Registry owns all task records. Implements the lifecycle state machine.
type Registry struct {
	mu        sync.RWMutex
	tasks     map[string]*taskRecord
	agents    *directory.Store
	incentive *incentive.Engine
	events    domain.Publisher // optional
	audit     domain.AuditSink // optional
	now       func() time.Time
}

// New creates a task registry. events and audit may be nil.
func New(agents *directory.Store, inc *incentive.Engine, events domain.Publisher, audit domain.AuditSink) *Registry {
	return &Registry{
		tasks:     make(map[string]*taskRecord),
		agents:    agents,
		incentive: inc,
		events:    events,
		audit:     audit,
		now:       time.Now,
	}
}

// SetClock replaces the registry's clock. Test hook.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// ─── Create ─────────────────────────────────────────────────────────────────

// Create registers a new task and opens it immediately.
func (r *Registry) Create(auth domain.AuthContext, spec CreateTask) (domain.Task, error) {
	if len(spec.Capabilities) == 0 {
		return domain.Task{}, fmt.Errorf("%w: required capability set is empty", domain.ErrInvalidInput)
	}
	now := r.now()
	if !spec.Deadline.After(now) {
		return domain.Task{}, fmt.Errorf("%w: deadline must be in the future", domain.ErrInvalidInput)
	}
	if spec.MinReputation < 0 || spec.MinReputation > 100 {
		return domain.Task{}, fmt.Errorf("%w: minimum reputation must be in [0,100]", domain.ErrInvalidInput)
	}
	if spec.Reward < 0 {
		return domain.Task{}, fmt.Errorf("%w: reward must be non-negative", domain.ErrInvalidInput)
	}

	task := domain.Task{
		ID:            uuid.New().String(),
		Creator:       auth.Caller,
		Capabilities:  append([]string(nil), spec.Capabilities...),
		MinReputation: spec.MinReputation,
		Reward:        spec.Reward,
		Deadline:      spec.Deadline,
		Status:        domain.TaskOpen,
		CreatedAt:     now,
	}

	r.mu.Lock()
	r.tasks[task.ID] = &taskRecord{task: task}
	r.mu.Unlock()

	r.publish(domain.Event{Type: domain.EvTaskCreated, TaskID: task.ID, AgentID: auth.Caller, NewStatus: domain.TaskOpen})
	r.log("task.create", task.ID, auth.Caller, fmt.Sprintf("reward=%d min_rep=%d", spec.Reward, spec.MinReputation))
	return task, nil
}

// ─── Lookup ─────────────────────────────────────────────────────────────────

func (r *Registry) get(taskID string) (*taskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return rec, nil
}

// Get returns a copy of the task.
func (r *Registry) Get(taskID string) (domain.Task, error) {
	rec, err := r.get(taskID)
	if err != nil {
		return domain.Task{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return copyTask(rec.task), nil
}

// List returns copies of all tasks matching the given filters. Empty
// filters match everything.
func (r *Registry) List(status domain.TaskStatus, creator, capability string) []domain.Task {
	r.mu.RLock()
	records := make([]*taskRecord, 0, len(r.tasks))
	for _, rec := range r.tasks {
		records = append(records, rec)
	}
	r.mu.RUnlock()

	var out []domain.Task
	for _, rec := range records {
		rec.mu.Lock()
		t := rec.task
		match := (status == "" || t.Status == status) &&
			(creator == "" || t.Creator == creator) &&
			(capability == "" || t.RequiresCapability(capability))
		if match {
			out = append(out, copyTask(t))
		}
		rec.mu.Unlock()
	}
	return out
}

// ─── Transitions ────────────────────────────────────────────────────────────

// Assign moves an Open task to Assigned. Only the auction engine (system
// auth) or an administrator may call it; the agent must be active and meet
// the task's reputation floor.
func (r *Registry) Assign(auth domain.AuthContext, taskID, agentID string) error {
	if !auth.System && !auth.Admin {
		return domain.ErrUnauthorized
	}

	rec, err := r.get(taskID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.task.Status != domain.TaskOpen {
		return domain.NewStateError("assign", domain.TaskOpen, rec.task.Status)
	}
	if !r.agents.IsActive(agentID) {
		return domain.ErrIneligibleAgent
	}
	rep, err := r.agents.Reputation(agentID)
	if err != nil {
		return err
	}
	if rep < rec.task.MinReputation {
		return fmt.Errorf("%w: reputation %d below floor %d", domain.ErrIneligibleAgent, rep, rec.task.MinReputation)
	}

	rec.task.Status = domain.TaskAssigned
	rec.task.AssignedAgent = agentID
	rec.task.AssignedAt = r.now()

	r.publish(domain.Event{
		Type: domain.EvTaskAssigned, TaskID: taskID, AgentID: agentID,
		OldStatus: domain.TaskOpen, NewStatus: domain.TaskAssigned,
	})
	r.log("task.assign", taskID, agentID, "caller="+auth.Caller)
	return nil
}

// Start moves an Assigned task to InProgress. Assigned agent only.
func (r *Registry) Start(auth domain.AuthContext, taskID string) error {
	rec, err := r.get(taskID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.task.Status != domain.TaskAssigned {
		return domain.NewStateError("start", domain.TaskAssigned, rec.task.Status)
	}
	if auth.Caller != rec.task.AssignedAgent {
		return domain.ErrUnauthorized
	}

	rec.task.Status = domain.TaskInProgress
	r.publish(domain.Event{
		Type: domain.EvTaskStatusUpdated, TaskID: taskID, AgentID: auth.Caller,
		OldStatus: domain.TaskAssigned, NewStatus: domain.TaskInProgress,
	})
	r.log("task.start", taskID, auth.Caller, "")
	return nil
}

// Complete moves an InProgress task to Completed, stamping the result and
// releasing the agent's workload slot. Assigned agent only.
func (r *Registry) Complete(auth domain.AuthContext, taskID, result string) error {
	rec, err := r.get(taskID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.task.Status != domain.TaskInProgress {
		return domain.NewStateError("complete", domain.TaskInProgress, rec.task.Status)
	}
	if auth.Caller != rec.task.AssignedAgent {
		return domain.ErrUnauthorized
	}
	if err := r.agents.DecrementWorkload(rec.task.AssignedAgent); err != nil {
		return err
	}

	rec.task.Status = domain.TaskCompleted
	rec.task.Result = result
	rec.task.CompletedAt = r.now()

	r.publish(domain.Event{
		Type: domain.EvTaskCompleted, TaskID: taskID, AgentID: auth.Caller,
		OldStatus: domain.TaskInProgress, NewStatus: domain.TaskCompleted,
	})
	r.log("task.complete", taskID, auth.Caller, "")
	return nil
}

// Fail moves an InProgress task to Failed, releasing the agent's workload
// slot. Assigned agent only.
func (r *Registry) Fail(auth domain.AuthContext, taskID, reason string) error {
	rec, err := r.get(taskID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.task.Status != domain.TaskInProgress {
		return domain.NewStateError("fail", domain.TaskInProgress, rec.task.Status)
	}
	if auth.Caller != rec.task.AssignedAgent {
		return domain.ErrUnauthorized
	}
	if err := r.agents.DecrementWorkload(rec.task.AssignedAgent); err != nil {
		return err
	}

	rec.task.Status = domain.TaskFailed
	rec.task.FailReason = reason

	r.publish(domain.Event{
		Type: domain.EvTaskFailed, TaskID: taskID, AgentID: auth.Caller,
		OldStatus: domain.TaskInProgress, NewStatus: domain.TaskFailed, Detail: reason,
	})
	r.log("task.fail", taskID, auth.Caller, reason)
	return nil
}

// Cancel freezes a task. Creator or administrator; disallowed once the
// task is Completed or Cancelled. An Assigned or InProgress task releases
// the agent's workload slot. Bids already placed are untouched.
func (r *Registry) Cancel(auth domain.AuthContext, taskID string) error {
	rec, err := r.get(taskID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if auth.Caller != rec.task.Creator && !auth.Admin {
		return domain.ErrUnauthorized
	}
	if rec.task.Status == domain.TaskCompleted || rec.task.Status == domain.TaskCancelled {
		return domain.NewStateError("cancel", domain.TaskOpen, rec.task.Status)
	}

	old := rec.task.Status
	if old == domain.TaskAssigned || old == domain.TaskInProgress {
		if err := r.agents.DecrementWorkload(rec.task.AssignedAgent); err != nil {
			return err
		}
	}
	rec.task.Status = domain.TaskCancelled

	r.publish(domain.Event{
		Type: domain.EvTaskCancelled, TaskID: taskID, AgentID: auth.Caller,
		OldStatus: old, NewStatus: domain.TaskCancelled,
	})
	r.log("task.cancel", taskID, auth.Caller, "from="+string(old))
	return nil
}

// Evaluate scores a Completed task exactly once. Administrator only.
// Scoring is delegated to the incentive engine, which updates the winner's
// reputation, capability weights, and bidding strategy.
func (r *Registry) Evaluate(auth domain.AuthContext, taskID string, quality, delayRatio int, tagScores map[string]int) (domain.TaskEvaluation, error) {
	if !auth.Admin {
		return domain.TaskEvaluation{}, domain.ErrUnauthorized
	}

	rec, err := r.get(taskID)
	if err != nil {
		return domain.TaskEvaluation{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.task.Status != domain.TaskCompleted {
		return domain.TaskEvaluation{}, domain.NewStateError("evaluate", domain.TaskCompleted, rec.task.Status)
	}
	if rec.task.Evaluated {
		return domain.TaskEvaluation{}, domain.ErrAlreadyEvaluated
	}

	score, err := r.incentive.RecordOutcome(rec.task.AssignedAgent, taskID, quality, delayRatio, rec.task.Capabilities, tagScores)
	if err != nil {
		return domain.TaskEvaluation{}, err
	}

	eval := domain.TaskEvaluation{
		Quality:     quality,
		DelayRatio:  delayRatio,
		FinalScore:  score,
		TagScores:   copyTagScores(tagScores),
		EvaluatedAt: r.now(),
	}
	rec.task.Evaluated = true
	rec.task.Evaluation = &eval

	r.publish(domain.Event{
		Type: domain.EvTaskEvaluated, TaskID: taskID, AgentID: rec.task.AssignedAgent,
		NewValue: score,
	})
	r.log("task.evaluate", taskID, rec.task.AssignedAgent, fmt.Sprintf("score=%d", score))
	return eval, nil
}

// ─── Internal ───────────────────────────────────────────────────────────────

func (r *Registry) publish(ev domain.Event) {
	if r.events == nil {
		return
	}
	ev.At = r.now()
	r.events.Publish(ev)
}

func (r *Registry) log(action, taskID, agentID, detail string) {
	if r.audit == nil {
		return
	}
	r.audit.Record(action, taskID, agentID, detail)
}

func copyTask(t domain.Task) domain.Task {
	cp := t
	cp.Capabilities = append([]string(nil), t.Capabilities...)
	if t.Evaluation != nil {
		ev := *t.Evaluation
		ev.TagScores = copyTagScores(t.Evaluation.TagScores)
		cp.Evaluation = &ev
	}
	return cp
}

func copyTagScores(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	cp := make(map[string]int, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
