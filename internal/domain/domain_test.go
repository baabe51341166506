package domain

import (
	"errors"
	"fmt"
	"testing"
)

// ─── History (ring buffer) Tests ────────────────────────────────────────────

func TestHistory_AppendWithinCapacity(t *testing.T) {
	h := NewHistory[int](5)
	h.Append(1)
	h.Append(2)
	h.Append(3)

	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	items := h.Items()
	for i, want := range []int{1, 2, 3} {
		if items[i] != want {
			t.Errorf("items[%d] = %d, want %d", i, items[i], want)
		}
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory[int](3)
	for i := 1; i <= 7; i++ {
		h.Append(i)
	}

	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	items := h.Items()
	for i, want := range []int{5, 6, 7} {
		if items[i] != want {
			t.Errorf("items[%d] = %d, want %d", i, items[i], want)
		}
	}
}

func TestHistory_NeverExceedsCapacity(t *testing.T) {
	h := NewHistory[string](10)
	for i := 0; i < 500; i++ {
		h.Append(fmt.Sprintf("entry-%d", i))
	}
	if h.Len() != 10 {
		t.Errorf("len = %d, want 10", h.Len())
	}
	items := h.Items()
	if items[0] != "entry-490" || items[9] != "entry-499" {
		t.Errorf("window = [%s .. %s], want [entry-490 .. entry-499]", items[0], items[9])
	}
}

func TestHistory_Last(t *testing.T) {
	h := NewHistory[int](2)

	if _, ok := h.Last(); ok {
		t.Error("Last on empty history should report false")
	}

	h.Append(1)
	h.Append(2)
	h.Append(3) // wraps
	last, ok := h.Last()
	if !ok || last != 3 {
		t.Errorf("last = %d/%v, want 3/true", last, ok)
	}
}

// ─── Task Tests ─────────────────────────────────────────────────────────────

func TestTask_IsTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskCreated, false},
		{TaskOpen, false},
		{TaskAssigned, false},
		{TaskInProgress, false},
		{TaskCompleted, true},
		{TaskFailed, true},
		{TaskCancelled, true},
	}
	for _, tt := range tests {
		task := Task{Status: tt.status}
		if got := task.IsTerminal(); got != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTask_RequiresCapability(t *testing.T) {
	task := Task{Capabilities: []string{"nlp", "vision"}}
	if !task.RequiresCapability("nlp") {
		t.Error("nlp should be required")
	}
	if task.RequiresCapability("audio") {
		t.Error("audio should not be required")
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestStateError_MatchesSentinel(t *testing.T) {
	err := NewStateError("start", TaskAssigned, TaskOpen)
	if !errors.Is(err, ErrInvalidState) {
		t.Error("StateError should match ErrInvalidState")
	}

	var se *StateError
	if !errors.As(err, &se) {
		t.Fatal("errors.As should extract *StateError")
	}
	if se.Want != TaskAssigned || se.Got != TaskOpen {
		t.Errorf("want/got = %s/%s", se.Want, se.Got)
	}
}

// ─── Auth Tests ─────────────────────────────────────────────────────────────

func TestAuthContext_CanActFor(t *testing.T) {
	if !(AuthContext{Caller: "a1"}).CanActFor("a1") {
		t.Error("caller should act for itself")
	}
	if (AuthContext{Caller: "a1"}).CanActFor("a2") {
		t.Error("caller should not act for another agent")
	}
	if !(AuthContext{Caller: "op", Admin: true}).CanActFor("a2") {
		t.Error("admin should act for any agent")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ v, lo, hi, want int }{
		{-5, 0, 100, 0},
		{150, 0, 100, 100},
		{50, 0, 100, 50},
		{50, 1, 100, 50},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
