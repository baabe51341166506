package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/incentive"
	"github.com/agora-network/agora/internal/domain"
)

var (
	creator = domain.AuthContext{Caller: "client-1"}
	admin   = domain.AuthContext{Caller: "operator", Admin: true}
	system  = domain.SystemAuth("auction-engine")
)

func newTestRegistry(t *testing.T) (*Registry, *directory.Store) {
	t.Helper()
	agents := directory.NewStore()
	if err := agents.Register("worker", map[string]int{"nlp": 60}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	inc := incentive.NewEngine(incentive.DefaultConfig(), agents, nil, nil)
	return New(agents, inc, nil, nil), agents
}

func createTask(t *testing.T, r *Registry) domain.Task {
	t.Helper()
	task, err := r.Create(creator, CreateTask{
		Capabilities:  []string{"nlp"},
		MinReputation: 40,
		Reward:        80,
		Deadline:      time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return task
}

// assignedTask walks a fresh task to Assigned.
func assignedTask(t *testing.T, r *Registry) domain.Task {
	t.Helper()
	task := createTask(t, r)
	if err := r.Assign(system, task.ID, "worker"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	return task
}

// ─── Create Tests ───────────────────────────────────────────────────────────

func TestCreate_OpensImmediately(t *testing.T) {
	r, _ := newTestRegistry(t)

	deadline := time.Now().Add(time.Hour)
	task, err := r.Create(creator, CreateTask{
		Capabilities:  []string{"nlp", "vision"},
		MinReputation: 30,
		Reward:        55,
		Deadline:      deadline,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != domain.TaskOpen {
		t.Errorf("status = %s, want OPEN", task.Status)
	}
	if task.Creator != "client-1" {
		t.Errorf("creator = %s", task.Creator)
	}
	if task.Reward != 55 || task.MinReputation != 30 {
		t.Errorf("reward/minRep = %d/%d", task.Reward, task.MinReputation)
	}
	if !task.Deadline.Equal(deadline) {
		t.Errorf("deadline not preserved verbatim")
	}
	if len(task.Capabilities) != 2 {
		t.Errorf("capabilities = %v", task.Capabilities)
	}
}

func TestCreate_EmptyCapabilities(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Create(creator, CreateTask{Deadline: time.Now().Add(time.Hour)})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreate_PastDeadline(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Create(creator, CreateTask{
		Capabilities: []string{"nlp"},
		Deadline:     time.Now().Add(-time.Minute),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

// ─── Assign Tests ───────────────────────────────────────────────────────────

func TestAssign_HappyPath(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)

	got, _ := r.Get(task.ID)
	if got.Status != domain.TaskAssigned {
		t.Errorf("status = %s, want ASSIGNED", got.Status)
	}
	if got.AssignedAgent != "worker" {
		t.Errorf("assigned agent = %s", got.AssignedAgent)
	}
	if got.AssignedAt.IsZero() {
		t.Error("assignedAt not stamped")
	}
}

func TestAssign_RequiresSystemOrAdmin(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := createTask(t, r)

	err := r.Assign(domain.AuthContext{Caller: "worker"}, task.ID, "worker")
	if err != domain.ErrUnauthorized {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}

	if err := r.Assign(admin, task.ID, "worker"); err != nil {
		t.Errorf("admin assign: %v", err)
	}
}

func TestAssign_ReputationFloor(t *testing.T) {
	r, agents := newTestRegistry(t)
	task := createTask(t, r) // minReputation 40

	agents.SetReputation("worker", 39)
	err := r.Assign(system, task.ID, "worker")
	if !errors.Is(err, domain.ErrIneligibleAgent) {
		t.Errorf("err = %v, want ErrIneligibleAgent", err)
	}
}

func TestAssign_InactiveAgent(t *testing.T) {
	r, agents := newTestRegistry(t)
	task := createTask(t, r)

	agents.Deactivate("worker")
	err := r.Assign(system, task.ID, "worker")
	if !errors.Is(err, domain.ErrIneligibleAgent) {
		t.Errorf("err = %v, want ErrIneligibleAgent", err)
	}
}

func TestAssign_OnlyFromOpen(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)

	err := r.Assign(system, task.ID, "worker")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}

	var se *domain.StateError
	if errors.As(err, &se) {
		if se.Want != domain.TaskOpen || se.Got != domain.TaskAssigned {
			t.Errorf("state error = want %s got %s", se.Want, se.Got)
		}
	} else {
		t.Error("expected *StateError")
	}
}

// ─── Start/Complete/Fail Tests ──────────────────────────────────────────────

func TestStart_OnlyAssignedAgent(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)

	if err := r.Start(domain.AuthContext{Caller: "other"}, task.ID); err != domain.ErrUnauthorized {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if err := r.Start(domain.AuthContext{Caller: "worker"}, task.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, _ := r.Get(task.ID)
	if got.Status != domain.TaskInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", got.Status)
	}
}

func TestComplete_FullPath(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)
	worker := domain.AuthContext{Caller: "worker"}

	r.Start(worker, task.ID)
	if err := r.Complete(worker, task.ID, `{"output": "done"}`); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, _ := r.Get(task.ID)
	if got.Status != domain.TaskCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if got.Result == "" || got.CompletedAt.IsZero() {
		t.Error("result/completedAt not stamped")
	}
}

func TestComplete_NotBeforeStart(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)

	err := r.Complete(domain.AuthContext{Caller: "worker"}, task.ID, "x")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestFail(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)
	worker := domain.AuthContext{Caller: "worker"}

	r.Start(worker, task.ID)
	if err := r.Fail(worker, task.ID, "dependency timeout"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, _ := r.Get(task.ID)
	if got.Status != domain.TaskFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.FailReason != "dependency timeout" {
		t.Errorf("reason = %s", got.FailReason)
	}
}

func TestComplete_ReleasesWorkload(t *testing.T) {
	r, agents := newTestRegistry(t)
	task := assignedTask(t, r)
	agents.IncrementWorkload("worker")
	worker := domain.AuthContext{Caller: "worker"}

	r.Start(worker, task.ID)
	if err := r.Complete(worker, task.ID, "x"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	w, _ := agents.Workload("worker")
	if w != 0 {
		t.Errorf("workload after Complete = %d, want 0", w)
	}
}

func TestFail_ReleasesWorkload(t *testing.T) {
	r, agents := newTestRegistry(t)
	task := assignedTask(t, r)
	agents.IncrementWorkload("worker")
	worker := domain.AuthContext{Caller: "worker"}

	r.Start(worker, task.ID)
	if err := r.Fail(worker, task.ID, "crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	w, _ := agents.Workload("worker")
	if w != 0 {
		t.Errorf("workload after Fail = %d, want 0", w)
	}
}

// ─── Cancel Tests ───────────────────────────────────────────────────────────

func TestCancel_ByCreator(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := createTask(t, r)

	if err := r.Cancel(creator, task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, _ := r.Get(task.ID)
	if got.Status != domain.TaskCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
}

func TestCancel_StrangerDenied(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := createTask(t, r)

	if err := r.Cancel(domain.AuthContext{Caller: "stranger"}, task.ID); err != domain.ErrUnauthorized {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestCancel_NotAfterCompleted(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)
	worker := domain.AuthContext{Caller: "worker"}
	r.Start(worker, task.ID)
	r.Complete(worker, task.ID, "x")

	err := r.Cancel(admin, task.ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestCancel_InFlightReleasesWorkload(t *testing.T) {
	r, agents := newTestRegistry(t)
	task := assignedTask(t, r)
	agents.IncrementWorkload("worker")
	r.Start(domain.AuthContext{Caller: "worker"}, task.ID)

	if err := r.Cancel(admin, task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	w, _ := agents.Workload("worker")
	if w != 0 {
		t.Errorf("workload after Cancel = %d, want 0", w)
	}
}

func TestCancel_Twice(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := createTask(t, r)

	r.Cancel(creator, task.ID)
	err := r.Cancel(creator, task.ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

// ─── Evaluate Tests ─────────────────────────────────────────────────────────

func completedTask(t *testing.T, r *Registry) domain.Task {
	t.Helper()
	task := assignedTask(t, r)
	worker := domain.AuthContext{Caller: "worker"}
	r.Start(worker, task.ID)
	r.Complete(worker, task.ID, "result")
	return task
}

func TestEvaluate(t *testing.T) {
	r, agents := newTestRegistry(t)
	task := completedTask(t, r)

	eval, err := r.Evaluate(admin, task.ID, 85, 20, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.FinalScore != 83 {
		t.Errorf("final score = %d, want 83", eval.FinalScore)
	}

	got, _ := r.Get(task.ID)
	if !got.Evaluated || got.Evaluation == nil {
		t.Fatal("task not marked evaluated")
	}

	// Learning loop ran: reputation moved off 50.
	rep, _ := agents.Reputation("worker")
	if rep == 50 {
		t.Error("reputation unchanged after evaluation")
	}
}

func TestEvaluate_AdminOnly(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := completedTask(t, r)

	if _, err := r.Evaluate(creator, task.ID, 80, 0, nil); err != domain.ErrUnauthorized {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestEvaluate_OnlyOnce(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := completedTask(t, r)

	first, err := r.Evaluate(admin, task.ID, 85, 20, nil)
	if err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}

	_, err = r.Evaluate(admin, task.ID, 10, 90, nil)
	if err != domain.ErrAlreadyEvaluated {
		t.Errorf("err = %v, want ErrAlreadyEvaluated", err)
	}

	// Stored evaluation unchanged.
	got, _ := r.Get(task.ID)
	if got.Evaluation.FinalScore != first.FinalScore {
		t.Errorf("stored score = %d, want %d", got.Evaluation.FinalScore, first.FinalScore)
	}
}

func TestEvaluate_OnlyFromCompleted(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := assignedTask(t, r)

	_, err := r.Evaluate(admin, task.ID, 80, 0, nil)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestEvaluate_InvalidScoresLeaveTaskUnchanged(t *testing.T) {
	r, _ := newTestRegistry(t)
	task := completedTask(t, r)

	_, err := r.Evaluate(admin, task.ID, 150, 0, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	got, _ := r.Get(task.ID)
	if got.Evaluated {
		t.Error("failed evaluation should not mark the task evaluated")
	}
}

// ─── Query Tests ────────────────────────────────────────────────────────────

func TestList_Filters(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Create(creator, CreateTask{Capabilities: []string{"nlp"}, Deadline: time.Now().Add(time.Hour)})
	r.Create(creator, CreateTask{Capabilities: []string{"vision"}, Deadline: time.Now().Add(time.Hour)})
	r.Create(domain.AuthContext{Caller: "client-2"}, CreateTask{Capabilities: []string{"nlp"}, Deadline: time.Now().Add(time.Hour)})

	if got := len(r.List(domain.TaskOpen, "", "")); got != 3 {
		t.Errorf("open tasks = %d, want 3", got)
	}
	if got := len(r.List("", "client-1", "")); got != 2 {
		t.Errorf("client-1 tasks = %d, want 2", got)
	}
	if got := len(r.List("", "", "nlp")); got != 2 {
		t.Errorf("nlp tasks = %d, want 2", got)
	}
	if got := len(r.List(domain.TaskCompleted, "", "")); got != 0 {
		t.Errorf("completed tasks = %d, want 0", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Get("nope"); err != domain.ErrTaskNotFound {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}
