package query

import (
	"testing"
	"time"

	"github.com/agora-network/agora/internal/app/auction"
	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/incentive"
	"github.com/agora-network/agora/internal/app/registry"
	"github.com/agora-network/agora/internal/domain"
)

func newTestService(t *testing.T) (*Service, *registry.Registry, *directory.Store) {
	t.Helper()
	agents := directory.NewStore()
	inc := incentive.NewEngine(incentive.DefaultConfig(), agents, nil, nil)
	tasks := registry.New(agents, inc, nil, nil)
	market := auction.New(auction.DefaultConfig(), tasks, agents, nil, inc, nil, nil)
	return New(DefaultConfig(), tasks, agents, market), tasks, agents
}

func TestTasks_Filters(t *testing.T) {
	svc, tasks, _ := newTestService(t)
	auth := domain.AuthContext{Caller: "client-1"}
	deadline := time.Now().Add(time.Hour)

	tasks.Create(auth, registry.CreateTask{Capabilities: []string{"nlp"}, Reward: 50, Deadline: deadline})
	tasks.Create(auth, registry.CreateTask{Capabilities: []string{"vision"}, Reward: 50, Deadline: deadline})
	tasks.Create(domain.AuthContext{Caller: "client-2"}, registry.CreateTask{Capabilities: []string{"nlp"}, Reward: 50, Deadline: deadline})

	if got := len(svc.Tasks("", "", "")); got != 3 {
		t.Errorf("all tasks = %d, want 3", got)
	}
	if got := len(svc.Tasks("", "client-1", "")); got != 2 {
		t.Errorf("client-1 tasks = %d, want 2", got)
	}
	if got := len(svc.Tasks("", "", "vision")); got != 1 {
		t.Errorf("vision tasks = %d, want 1", got)
	}
	if got := len(svc.Tasks(domain.TaskCompleted, "", "")); got != 0 {
		t.Errorf("completed tasks = %d, want 0", got)
	}
}

func TestTasks_CachedUntilExpiry(t *testing.T) {
	svc, tasks, _ := newTestService(t)
	auth := domain.AuthContext{Caller: "client-1"}
	deadline := time.Now().Add(time.Hour)

	tasks.Create(auth, registry.CreateTask{Capabilities: []string{"nlp"}, Reward: 50, Deadline: deadline})
	if got := len(svc.Tasks("", "", "")); got != 1 {
		t.Fatalf("tasks = %d, want 1", got)
	}

	// A create inside the TTL is invisible to the memoized listing.
	tasks.Create(auth, registry.CreateTask{Capabilities: []string{"nlp"}, Reward: 50, Deadline: deadline})
	if got := len(svc.Tasks("", "", "")); got != 1 {
		t.Errorf("cached tasks = %d, want stale 1", got)
	}

	svc.Flush()
	if got := len(svc.Tasks("", "", "")); got != 2 {
		t.Errorf("after flush tasks = %d, want 2", got)
	}
}

func TestTask_JoinsBiddingState(t *testing.T) {
	svc, tasks, agents := newTestService(t)
	auth := domain.AuthContext{Caller: "client-1"}

	agents.Register("a1", map[string]int{"nlp": 60})
	task, _ := tasks.Create(auth, registry.CreateTask{
		Capabilities: []string{"nlp"}, Reward: 50, Deadline: time.Now().Add(time.Hour),
	})

	view, err := svc.Task(task.ID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if view.Task.ID != task.ID {
		t.Errorf("task ID = %s, want %s", view.Task.ID, task.ID)
	}
	if len(view.Bids) != 0 || view.Auction.Resolved {
		t.Errorf("fresh task has bidding state: %+v", view)
	}

	if _, err := svc.Task("nope"); err != domain.ErrTaskNotFound {
		t.Errorf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestLeaderboard_Order(t *testing.T) {
	svc, _, agents := newTestService(t)
	agents.Register("low", map[string]int{"nlp": 50})
	agents.Register("high", map[string]int{"nlp": 50})
	agents.SetReputation("high", 90)
	agents.SetReputation("low", 20)

	board := svc.Leaderboard()
	if len(board) != 2 {
		t.Fatalf("leaderboard = %d agents, want 2", len(board))
	}
	if board[0].ID != "high" || board[1].ID != "low" {
		t.Errorf("order = %s,%s, want high,low", board[0].ID, board[1].ID)
	}
}

func TestLearningSnapshot(t *testing.T) {
	svc, _, agents := newTestService(t)
	agents.Register("a1", map[string]int{"nlp": 60})
	agents.RecordTaskScore("a1", "t-1", 75)

	snap, err := svc.LearningSnapshot("a1")
	if err != nil {
		t.Fatalf("LearningSnapshot: %v", err)
	}
	if snap.LearningCurve != 75 {
		t.Errorf("learning curve = %d, want 75", snap.LearningCurve)
	}
	if len(snap.RecentTasks) != 1 {
		t.Errorf("recent tasks = %d, want 1", len(snap.RecentTasks))
	}

	if _, err := svc.LearningSnapshot("nope"); err != domain.ErrAgentNotFound {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
}
