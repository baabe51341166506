// Package auction implements the per-task bidding window: bid intake,
// winner selection by weighted score, and the manual-override assignment
// path.
//
// Winner selection is deterministic: bids are scored in submission order
// and a candidate replaces the current leader only on a strictly greater
// weighted score, so the earliest-submitted qualifying bid wins ties.
package auction

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/incentive"
	"github.com/agora-network/agora/internal/app/registry"
	"github.com/agora-network/agora/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the auction engine.
type Config struct {
	// DefaultWindow is the bidding window used when openBidding gets a
	// non-positive duration.
	DefaultWindow time.Duration

	// ScoreDivisor normalizes the utility × reputation × amount product.
	ScoreDivisor int64

	// ReplaceBids makes a repeat bid from the same agent replace the
	// earlier record instead of adding a new one. Default (false) retains
	// every bid and treats the most recent as active.
	ReplaceBids bool
}

// DefaultConfig returns production auction defaults.
func DefaultConfig() Config {
	return Config{
		DefaultWindow: time.Hour,
		ScoreDivisor:  100,
	}
}

// neutralUtility is recorded when a bidder reports no utility of its own.
const neutralUtility = 50

// ─── Engine ─────────────────────────────────────────────────────────────────

// auctionRecord pairs one task's bidding state with its own lock.
type auctionRecord struct {
	mu      sync.Mutex
	auction domain.Auction
	bids    []domain.Bid
}

// Engine runs auctions over tasks held in the registry.
type Engine struct {
	mu       sync.RWMutex
	config   Config
	auctions map[string]*auctionRecord

	tasks     *registry.Registry
	agents    *directory.Store
	scorer    domain.UtilityScorer // optional; self-reported utility is the fallback
	incentive *incentive.Engine
	events    domain.Publisher // optional
	audit     domain.AuditSink // optional
	now       func() time.Time
}

// New creates an auction engine. scorer, events, and audit may be nil.
func New(cfg Config, tasks *registry.Registry, agents *directory.Store, scorer domain.UtilityScorer, inc *incentive.Engine, events domain.Publisher, audit domain.AuditSink) *Engine {
	return &Engine{
		config:    cfg,
		auctions:  make(map[string]*auctionRecord),
		tasks:     tasks,
		agents:    agents,
		scorer:    scorer,
		incentive: inc,
		events:    events,
		audit:     audit,
		now:       time.Now,
	}
}

// SetClock replaces the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) record(taskID string) *auctionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.auctions[taskID]
	if !ok {
		rec = &auctionRecord{auction: domain.Auction{TaskID: taskID}}
		e.auctions[taskID] = rec
	}
	return rec
}

// lookup is the read-only counterpart of record: queries must not grow
// the auction map.
func (e *Engine) lookup(taskID string) (*auctionRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.auctions[taskID]
	return rec, ok
}

// ─── Bidding window ─────────────────────────────────────────────────────────

// OpenBidding opens (or re-opens) the bidding window for an Open task.
// Creator or administrator only. A non-positive duration falls back to the
// configured default window.
func (e *Engine) OpenBidding(auth domain.AuthContext, taskID string, duration time.Duration) error {
	task, err := e.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if auth.Caller != task.Creator && !auth.Admin {
		return domain.ErrUnauthorized
	}
	if task.Status != domain.TaskOpen {
		return domain.NewStateError("openBidding", domain.TaskOpen, task.Status)
	}
	if duration <= 0 {
		duration = e.config.DefaultWindow
	}

	rec := e.record(taskID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Resolved {
		return domain.ErrAlreadyAssigned
	}
	now := e.now()
	rec.auction.Deadline = now.Add(duration)
	rec.auction.OpenedAt = now

	e.publish(domain.Event{Type: domain.EvBiddingOpened, TaskID: taskID, AgentID: auth.Caller,
		Detail: fmt.Sprintf("deadline=%s", rec.auction.Deadline.Format(time.RFC3339))})
	e.log("auction.open", taskID, auth.Caller, duration.String())
	return nil
}

// PlaceBid records an agent's offer while the bidding window is open.
// utility may be nil, in which case a neutral 50 is recorded as
// self-reported utility.
func (e *Engine) PlaceBid(auth domain.AuthContext, taskID, agentID string, amount int64, utility *int) (domain.Bid, error) {
	if !auth.CanActFor(agentID) {
		return domain.Bid{}, domain.ErrUnauthorized
	}
	if amount <= 0 {
		return domain.Bid{}, fmt.Errorf("%w: bid amount must be positive", domain.ErrInvalidInput)
	}
	selfUtility := neutralUtility
	if utility != nil {
		if *utility < 0 || *utility > 100 {
			return domain.Bid{}, fmt.Errorf("%w: utility must be in [0,100]", domain.ErrInvalidInput)
		}
		selfUtility = *utility
	}

	task, err := e.tasks.Get(taskID)
	if err != nil {
		return domain.Bid{}, err
	}
	if task.Status != domain.TaskOpen {
		return domain.Bid{}, domain.NewStateError("placeBid", domain.TaskOpen, task.Status)
	}
	if !e.agents.IsActive(agentID) {
		return domain.Bid{}, domain.ErrIneligibleAgent
	}

	rec := e.record(taskID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := e.now()
	if rec.auction.Deadline.IsZero() {
		return domain.Bid{}, domain.ErrAuctionNotOpen
	}
	if !now.Before(rec.auction.Deadline) {
		return domain.Bid{}, domain.ErrAuctionClosed
	}
	if rec.auction.Resolved {
		return domain.Bid{}, domain.ErrAlreadyAssigned
	}

	bid := domain.Bid{
		ID:       uuid.New().String(),
		TaskID:   taskID,
		AgentID:  agentID,
		Utility:  selfUtility,
		Amount:   amount,
		PlacedAt: now,
	}

	if e.config.ReplaceBids {
		replaced := false
		for i := range rec.bids {
			if rec.bids[i].AgentID == agentID {
				rec.bids[i] = bid
				replaced = true
				break
			}
		}
		if !replaced {
			rec.bids = append(rec.bids, bid)
		}
	} else {
		rec.bids = append(rec.bids, bid)
	}

	e.publish(domain.Event{Type: domain.EvBidPlaced, TaskID: taskID, AgentID: agentID,
		Amount: amount, NewValue: selfUtility})
	e.log("auction.bid", taskID, agentID, fmt.Sprintf("amount=%d utility=%d", amount, selfUtility))
	return bid, nil
}

// ─── Close & selection ──────────────────────────────────────────────────────

// CloseBidding closes an expired auction and assigns the task to the
// highest weighted-score bid. Creator or administrator only; requires the
// deadline to have passed and at least one bid.
func (e *Engine) CloseBidding(auth domain.AuthContext, taskID string) (domain.Bid, error) {
	task, err := e.tasks.Get(taskID)
	if err != nil {
		return domain.Bid{}, err
	}
	if auth.Caller != task.Creator && !auth.Admin {
		return domain.Bid{}, domain.ErrUnauthorized
	}

	rec := e.record(taskID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Resolved || task.Status != domain.TaskOpen {
		return domain.Bid{}, domain.ErrAlreadyAssigned
	}
	if rec.auction.Deadline.IsZero() {
		return domain.Bid{}, domain.ErrAuctionNotOpen
	}
	if e.now().Before(rec.auction.Deadline) {
		return domain.Bid{}, domain.ErrBiddingStillOpen
	}
	if len(rec.bids) == 0 {
		return domain.Bid{}, domain.ErrNoBids
	}

	winnerIdx := e.selectWinnerLocked(rec, task)
	if winnerIdx < 0 {
		return domain.Bid{}, fmt.Errorf("%w: no qualifying bids", domain.ErrNoBids)
	}
	winner := rec.bids[winnerIdx]

	// Registry transition first — if it refuses, the auction stays open
	// and nothing is committed.
	if err := e.tasks.Assign(domain.SystemAuth("auction-engine"), taskID, winner.AgentID); err != nil {
		return domain.Bid{}, err
	}

	rec.bids[winnerIdx].Selected = true
	rec.auction.Resolved = true

	if err := e.incentive.RecordWin(winner.AgentID, taskID); err != nil {
		return domain.Bid{}, err
	}

	winner.Selected = true
	e.publish(domain.Event{Type: domain.EvBiddingClosed, TaskID: taskID, AgentID: winner.AgentID,
		Amount: winner.Amount})
	e.log("auction.close", taskID, winner.AgentID, fmt.Sprintf("bids=%d amount=%d", len(rec.bids), winner.Amount))
	return winner, nil
}

// selectWinnerLocked scores each agent's active (most recent) bid and
// returns the index of the winner, or -1 when no bid qualifies.
// weightedScore = utility × reputation × amount / ScoreDivisor, where
// utility is freshly computed when a scorer is wired and falls back to the
// bid's self-reported value otherwise.
func (e *Engine) selectWinnerLocked(rec *auctionRecord, task domain.Task) int {
	// Most recent bid per agent is the active one.
	active := make(map[string]int, len(rec.bids))
	for i, b := range rec.bids {
		active[b.AgentID] = i
	}

	best := -1
	var bestScore int64
	for i, b := range rec.bids {
		if active[b.AgentID] != i {
			continue // superseded by a later bid from the same agent
		}
		if !e.agents.IsActive(b.AgentID) {
			continue
		}
		rep, err := e.agents.Reputation(b.AgentID)
		if err != nil || rep < task.MinReputation {
			continue
		}

		utility := b.Utility
		if e.scorer != nil {
			if computed, err := e.scorer.Utility(b.AgentID, task.Capabilities, task.Reward); err == nil {
				utility = computed
			}
		}

		score := int64(utility) * int64(rep) * b.Amount / e.config.ScoreDivisor
		if best < 0 || score > bestScore { // strictly greater: first-seen wins ties
			best = i
			bestScore = score
		}
	}
	return best
}

// AssignManually bypasses bidding entirely. Administrator only; the same
// eligibility checks as a normal assignment apply.
func (e *Engine) AssignManually(auth domain.AuthContext, taskID, agentID string) error {
	if !auth.Admin {
		return domain.ErrUnauthorized
	}

	rec := e.record(taskID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.auction.Resolved {
		return domain.ErrAlreadyAssigned
	}

	if err := e.tasks.Assign(auth, taskID, agentID); err != nil {
		var se *domain.StateError
		if errors.As(err, &se) && se.Got == domain.TaskAssigned {
			return domain.ErrAlreadyAssigned
		}
		return err
	}
	rec.auction.Resolved = true

	if err := e.incentive.RecordAssignment(agentID, taskID); err != nil {
		return err
	}

	e.log("auction.assign_manual", taskID, agentID, "caller="+auth.Caller)
	return nil
}

// ─── Query surface ──────────────────────────────────────────────────────────

// Bids returns every bid placed on a task, in submission order.
func (e *Engine) Bids(taskID string) []domain.Bid {
	rec, ok := e.lookup(taskID)
	if !ok {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]domain.Bid(nil), rec.bids...)
}

// WinningBid returns the selected bid for a task.
func (e *Engine) WinningBid(taskID string) (domain.Bid, error) {
	rec, ok := e.lookup(taskID)
	if !ok {
		return domain.Bid{}, domain.ErrBidNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, b := range rec.bids {
		if b.Selected {
			return b, nil
		}
	}
	return domain.Bid{}, domain.ErrBidNotFound
}

// HasBid reports whether the agent has ever bid on the task.
func (e *Engine) HasBid(taskID, agentID string) bool {
	rec, ok := e.lookup(taskID)
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, b := range rec.bids {
		if b.AgentID == agentID {
			return true
		}
	}
	return false
}

// BiddingOpen reports whether the bidding window is open right now.
func (e *Engine) BiddingOpen(taskID string) bool {
	rec, ok := e.lookup(taskID)
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return !rec.auction.Resolved && rec.auction.Open(e.now())
}

// AuctionState returns a copy of the auction record for a task.
func (e *Engine) AuctionState(taskID string) domain.Auction {
	rec, ok := e.lookup(taskID)
	if !ok {
		return domain.Auction{TaskID: taskID}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.auction
}

// ─── Internal ───────────────────────────────────────────────────────────────

func (e *Engine) publish(ev domain.Event) {
	if e.events == nil {
		return
	}
	ev.At = e.now()
	e.events.Publish(ev)
}

func (e *Engine) log(action, taskID, agentID, detail string) {
	if e.audit == nil {
		return
	}
	e.audit.Record(action, taskID, agentID, detail)
}
