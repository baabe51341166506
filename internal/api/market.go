package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agora-network/agora/internal/app/registry"
	"github.com/agora-network/agora/internal/domain"
)

// ─── Agents ─────────────────────────────────────────────────────────────────

type registerAgentRequest struct {
	ID           string         `json:"id"`
	Capabilities map[string]int `json:"capabilities"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "agent id is required")
		return
	}
	auth := authFrom(r)
	if !auth.CanActFor(req.ID) {
		writeError(w, http.StatusForbidden, "callers may only register themselves")
		return
	}

	if err := s.agents.Register(req.ID, req.Capabilities); err != nil {
		writeDomainError(w, err)
		return
	}
	agent, err := s.agents.Get(req.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.queries.Leaderboard()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.queries.Agent(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleAgentLearning(w http.ResponseWriter, r *http.Request) {
	snap, err := s.queries.LearningSnapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleActivateAgent(w http.ResponseWriter, r *http.Request) {
	s.setAgentActive(w, r, true)
}

func (s *Server) handleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	s.setAgentActive(w, r, false)
}

func (s *Server) setAgentActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	auth := authFrom(r)
	if !auth.CanActFor(id) {
		writeError(w, http.StatusForbidden, "only the agent itself or an administrator may change activation")
		return
	}

	var err error
	if active {
		err = s.agents.Activate(id)
	} else {
		err = s.agents.Deactivate(id)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "active": active})
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

type createTaskRequest struct {
	Capabilities  []string  `json:"capabilities"`
	MinReputation int       `json:"min_reputation"`
	Reward        int       `json:"reward"`
	Deadline      time.Time `json:"deadline"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	auth := authFrom(r)
	if auth.Caller == "" {
		writeError(w, http.StatusForbidden, "X-Agora-Caller header is required")
		return
	}

	task, err := s.tasks.Create(auth, registry.CreateTask{
		Capabilities:  req.Capabilities,
		MinReputation: req.MinReputation,
		Reward:        req.Reward,
		Deadline:      req.Deadline,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks := s.queries.Tasks(domain.TaskStatus(q.Get("status")), q.Get("creator"), q.Get("capability"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	view, err := s.queries.Task(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ─── Bidding ────────────────────────────────────────────────────────────────

type openBiddingRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

func (s *Server) handleOpenBidding(w http.ResponseWriter, r *http.Request) {
	var req openBiddingRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	taskID := chi.URLParam(r, "id")

	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := s.market.OpenBidding(authFrom(r), taskID, duration); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.market.AuctionState(taskID))
}

type placeBidRequest struct {
	AgentID string `json:"agent_id"`
	Amount  int64  `json:"amount"`
	Utility *int   `json:"utility,omitempty"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bid, err := s.market.PlaceBid(authFrom(r), chi.URLParam(r, "id"), req.AgentID, req.Amount, req.Utility)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleCloseBidding(w http.ResponseWriter, r *http.Request) {
	winner, err := s.market.CloseBidding(authFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winner)
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	bids := s.market.Bids(taskID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id": taskID,
		"bids":    bids,
		"count":   len(bids),
	})
}

func (s *Server) handleWinningBid(w http.ResponseWriter, r *http.Request) {
	bid, err := s.market.WinningBid(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// ─── Lifecycle transitions ──────────────────────────────────────────────────

type assignTaskRequest struct {
	AgentID string `json:"agent_id"`
}

func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	var req assignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	taskID := chi.URLParam(r, "id")

	if err := s.market.AssignManually(authFrom(r), taskID, req.AgentID); err != nil {
		writeDomainError(w, err)
		return
	}
	task, err := s.tasks.Get(taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(auth domain.AuthContext, taskID string) error {
		return s.tasks.Start(auth, taskID)
	})
}

type completeTaskRequest struct {
	Result string `json:"result"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req completeTaskRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	s.transition(w, r, func(auth domain.AuthContext, taskID string) error {
		return s.tasks.Complete(auth, taskID, req.Result)
	})
}

type failTaskRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFailTask(w http.ResponseWriter, r *http.Request) {
	var req failTaskRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	s.transition(w, r, func(auth domain.AuthContext, taskID string) error {
		return s.tasks.Fail(auth, taskID, req.Reason)
	})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, func(auth domain.AuthContext, taskID string) error {
		return s.tasks.Cancel(auth, taskID)
	})
}

// transition runs one lifecycle transition and responds with the updated
// task.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(domain.AuthContext, string) error) {
	taskID := chi.URLParam(r, "id")
	if err := fn(authFrom(r), taskID); err != nil {
		writeDomainError(w, err)
		return
	}
	task, err := s.tasks.Get(taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ─── Evaluation ─────────────────────────────────────────────────────────────

type evaluateTaskRequest struct {
	Quality    int            `json:"quality"`
	DelayRatio int            `json:"delay_ratio"`
	TagScores  map[string]int `json:"tag_scores,omitempty"`
}

func (s *Server) handleEvaluateTask(w http.ResponseWriter, r *http.Request) {
	var req evaluateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eval, err := s.tasks.Evaluate(authFrom(r), chi.URLParam(r, "id"), req.Quality, req.DelayRatio, req.TagScores)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// ─── Audit ──────────────────────────────────────────────────────────────────

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit log is not enabled")
		return
	}

	q := r.URL.Query()
	if taskID := q.Get("task"); taskID != "" {
		entries, err := s.audit.ForTask(taskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
		return
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.audit.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}
