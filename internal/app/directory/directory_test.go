package directory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/agora-network/agora/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	if err := s.Register("a1", map[string]int{"nlp": 60, "vision": 40}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return s
}

func TestStore_RegisterDefaults(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Get("a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Reputation != 50 {
		t.Errorf("reputation = %d, want 50", a.Reputation)
	}
	if !a.Active {
		t.Error("new agent should be active")
	}
	if a.Workload != 0 {
		t.Errorf("workload = %d, want 0", a.Workload)
	}
	if a.Strategy.Confidence != 50 || a.Strategy.RiskTolerance != 50 {
		t.Errorf("strategy = %+v, want 50/50", a.Strategy)
	}
}

func TestStore_RegisterDuplicate(t *testing.T) {
	s := newTestStore(t)
	if err := s.Register("a1", nil); err != domain.ErrAgentExists {
		t.Errorf("err = %v, want ErrAgentExists", err)
	}
}

func TestStore_RegisterClampsWeights(t *testing.T) {
	s := NewStore()
	s.Register("a2", map[string]int{"nlp": 150, "vision": -10})

	caps, _ := s.Capabilities("a2")
	if caps["nlp"] != 100 {
		t.Errorf("nlp = %d, want 100", caps["nlp"])
	}
	if caps["vision"] != 0 {
		t.Errorf("vision = %d, want 0", caps["vision"])
	}
}

func TestStore_UnknownAgent(t *testing.T) {
	s := NewStore()
	if _, err := s.Reputation("ghost"); err != domain.ErrAgentNotFound {
		t.Errorf("err = %v, want ErrAgentNotFound", err)
	}
	if s.IsActive("ghost") {
		t.Error("unknown agent should not be active")
	}
}

func TestStore_WorkloadConservation(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		s.IncrementWorkload("a1")
	}
	for i := 0; i < 3; i++ {
		s.DecrementWorkload("a1")
	}

	w, _ := s.Workload("a1")
	if w != 2 {
		t.Errorf("workload = %d, want 2 (5 increments − 3 decrements)", w)
	}
}

func TestStore_WorkloadNeverNegative(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		s.DecrementWorkload("a1")
	}
	w, _ := s.Workload("a1")
	if w != 0 {
		t.Errorf("workload = %d, want 0", w)
	}
}

func TestStore_SetReputationClamps(t *testing.T) {
	s := newTestStore(t)

	s.SetReputation("a1", 250)
	rep, _ := s.Reputation("a1")
	if rep != 100 {
		t.Errorf("reputation = %d, want 100", rep)
	}

	s.SetReputation("a1", -7)
	rep, _ = s.Reputation("a1")
	if rep != 0 {
		t.Errorf("reputation = %d, want 0", rep)
	}
}

func TestStore_DeactivateActivate(t *testing.T) {
	s := newTestStore(t)

	s.Deactivate("a1")
	if s.IsActive("a1") {
		t.Error("deactivated agent should be inactive")
	}
	s.Activate("a1")
	if !s.IsActive("a1") {
		t.Error("reactivated agent should be active")
	}
}

func TestStore_RecentTaskHistoryBounded(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < domain.RecentTaskCap+15; i++ {
		s.RecordTaskScore("a1", fmt.Sprintf("t-%d", i), 70)
	}

	snap, _ := s.Snapshot("a1")
	if len(snap.RecentTasks) != domain.RecentTaskCap {
		t.Errorf("recent tasks = %d, want %d", len(snap.RecentTasks), domain.RecentTaskCap)
	}
	// Most-recent entries survive, in insertion order.
	first := snap.RecentTasks[0]
	if first.TaskID != "t-15" {
		t.Errorf("oldest retained = %s, want t-15", first.TaskID)
	}
	if len(snap.ScoreSeries) != domain.RecentTaskCap+15 {
		t.Errorf("score series = %d, want %d", len(snap.ScoreSeries), domain.RecentTaskCap+15)
	}
}

func TestStore_LearningCurve(t *testing.T) {
	s := newTestStore(t)

	s.RecordTaskScore("a1", "t1", 60)
	s.RecordTaskScore("a1", "t2", 80)
	s.RecordTaskScore("a1", "t3", 70)

	curve, _ := s.LearningCurve("a1")
	if curve != 70 {
		t.Errorf("learning curve = %d, want 70", curve)
	}
}

func TestStore_SetCapabilityWeightLogsEvolution(t *testing.T) {
	s := newTestStore(t)

	s.SetCapabilityWeight("a1", "nlp", 75, "task-9")

	caps, _ := s.Capabilities("a1")
	if caps["nlp"] != 75 {
		t.Errorf("nlp = %d, want 75", caps["nlp"])
	}

	snap, _ := s.Snapshot("a1")
	if len(snap.WeightEvolution) != 1 {
		t.Fatalf("weight evolution = %d entries, want 1", len(snap.WeightEvolution))
	}
	wc := snap.WeightEvolution[0]
	if wc.OldWeight != 60 || wc.NewWeight != 75 || wc.TaskID != "task-9" {
		t.Errorf("change = %+v", wc)
	}
}

func TestStore_WeightEvolutionBounded(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < domain.WeightEvolutionCap+10; i++ {
		s.SetCapabilityWeight("a1", "nlp", 50+i%40, fmt.Sprintf("t-%d", i))
	}

	snap, _ := s.Snapshot("a1")
	if len(snap.WeightEvolution) != domain.WeightEvolutionCap {
		t.Errorf("weight evolution = %d, want %d", len(snap.WeightEvolution), domain.WeightEvolutionCap)
	}
}

func TestStore_StrategyEvolutionBounded(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < domain.StrategyEvolutionCap+5; i++ {
		s.SetStrategy("a1", domain.BiddingStrategy{Confidence: 50 + i%30, RiskTolerance: 50},
			domain.StrategyChange{OldConfidence: 50, NewConfidence: 50 + i%30, Reason: "test"})
	}

	snap, _ := s.Snapshot("a1")
	if len(snap.StrategyEvolution) != domain.StrategyEvolutionCap {
		t.Errorf("strategy evolution = %d, want %d", len(snap.StrategyEvolution), domain.StrategyEvolutionCap)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newTestStore(t)

	snap, _ := s.Snapshot("a1")
	snap.Agent.Capabilities["nlp"] = 1

	caps, _ := s.Capabilities("a1")
	if caps["nlp"] != 60 {
		t.Errorf("store mutated through snapshot: nlp = %d, want 60", caps["nlp"])
	}
}

func TestStore_ListByReputation(t *testing.T) {
	s := NewStore()
	s.Register("low", nil)
	s.Register("high", nil)
	s.Register("mid", nil)
	s.SetReputation("low", 20)
	s.SetReputation("high", 90)
	s.SetReputation("mid", 55)

	agents := s.ListByReputation()
	if len(agents) != 3 {
		t.Fatalf("agents = %d, want 3", len(agents))
	}
	if agents[0].ID != "high" || agents[1].ID != "mid" || agents[2].ID != "low" {
		t.Errorf("order = %s, %s, %s", agents[0].ID, agents[1].ID, agents[2].ID)
	}
}

func TestStore_ConcurrentPerAgentUpdates(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		s.Register(fmt.Sprintf("agent-%d", i), map[string]int{"nlp": 50})
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("agent-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IncrementWorkload(id)
				s.RecordTaskScore(id, "t", 60)
				s.Reputation(id)
				s.DecrementWorkload(id)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		w, _ := s.Workload(fmt.Sprintf("agent-%d", i))
		if w != 0 {
			t.Errorf("agent-%d workload = %d, want 0", i, w)
		}
	}
}
