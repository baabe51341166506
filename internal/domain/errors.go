package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. All failures are
// local and synchronous; no partial state is ever committed.

var (
	// Input validation
	ErrInvalidInput = errors.New("invalid input")

	// Authorization
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// Lookup
	ErrTaskNotFound  = errors.New("task not found")
	ErrAgentNotFound = errors.New("agent not found")
	ErrBidNotFound   = errors.New("bid not found")
	ErrAgentExists   = errors.New("agent already registered")

	// Lifecycle
	ErrInvalidState     = errors.New("operation not allowed in current task state")
	ErrAlreadyAssigned  = errors.New("task already assigned")
	ErrAlreadyEvaluated = errors.New("task already evaluated")

	// Eligibility
	ErrIneligibleAgent = errors.New("agent inactive or below reputation floor")

	// Auction
	ErrAuctionNotOpen   = errors.New("bidding was never opened for this task")
	ErrAuctionClosed    = errors.New("bidding deadline has passed")
	ErrBiddingStillOpen = errors.New("bidding deadline has not passed yet")
	ErrNoBids           = errors.New("cannot close an auction with zero bids")
)

// StateError reports an illegal lifecycle transition, naming the state the
// operation requires and the state the task is actually in.
type StateError struct {
	Op   string
	Want TaskStatus
	Got  TaskStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: task must be %s, is %s", e.Op, e.Want, e.Got)
}

// Unwrap lets errors.Is(err, ErrInvalidState) match every StateError.
func (e *StateError) Unwrap() error { return ErrInvalidState }

// NewStateError builds a StateError for the given operation.
func NewStateError(op string, want, got TaskStatus) error {
	return &StateError{Op: op, Want: want, Got: got}
}
