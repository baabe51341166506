// Package api provides the HTTP server for Agora: the marketplace REST
// API plus health and Prometheus endpoints.
//
// Authentication is header-based: X-Agora-Caller names the principal and
// X-Agora-Admin: true grants administrative rights. The daemon sits
// behind a fronting proxy that validates identity; this layer only maps
// headers onto the domain auth context.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agora-network/agora/internal/app/auction"
	"github.com/agora-network/agora/internal/app/directory"
	"github.com/agora-network/agora/internal/app/query"
	"github.com/agora-network/agora/internal/app/registry"
	"github.com/agora-network/agora/internal/domain"
	"github.com/agora-network/agora/internal/infra/audit"
)

// Server is the Agora HTTP API server.
type Server struct {
	agents         *directory.Store
	tasks          *registry.Registry
	market         *auction.Engine
	queries        *query.Service
	audit          *audit.Logger // nil when persistence is disabled
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(agents *directory.Store, tasks *registry.Registry, market *auction.Engine, queries *query.Service) *Server {
	return &Server{agents: agents, tasks: tasks, market: market, queries: queries}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetAuditLog exposes the persisted audit trail over the API.
func (s *Server) SetAuditLog(l *audit.Logger) { s.audit = l }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": "0.1.0",
		})
	})

	r.Route("/api/agents", func(r chi.Router) {
		r.Post("/", s.handleRegisterAgent)
		r.Get("/", s.handleListAgents)
		r.Get("/{id}", s.handleGetAgent)
		r.Get("/{id}/learning", s.handleAgentLearning)
		r.Post("/{id}/activate", s.handleActivateAgent)
		r.Post("/{id}/deactivate", s.handleDeactivateAgent)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreateTask)
		r.Get("/", s.handleListTasks)
		r.Get("/{id}", s.handleGetTask)
		r.Post("/{id}/bidding/open", s.handleOpenBidding)
		r.Post("/{id}/bidding/close", s.handleCloseBidding)
		r.Post("/{id}/bids", s.handlePlaceBid)
		r.Get("/{id}/bids", s.handleListBids)
		r.Get("/{id}/bids/winner", s.handleWinningBid)
		r.Post("/{id}/assign", s.handleAssignTask)
		r.Post("/{id}/start", s.handleStartTask)
		r.Post("/{id}/complete", s.handleCompleteTask)
		r.Post("/{id}/fail", s.handleFailTask)
		r.Post("/{id}/cancel", s.handleCancelTask)
		r.Post("/{id}/evaluate", s.handleEvaluateTask)
	})

	r.Get("/api/audit", s.handleAudit)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Auth ───────────────────────────────────────────────────────────────────

// authFrom maps the identity headers onto the domain auth context.
func authFrom(r *http.Request) domain.AuthContext {
	return domain.AuthContext{
		Caller: r.Header.Get("X-Agora-Caller"),
		Admin:  r.Header.Get("X-Agora-Admin") == "true",
	}
}

// ─── Response helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinels onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrAgentNotFound),
		errors.Is(err, domain.ErrBidNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAgentExists),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrAlreadyEvaluated),
		errors.Is(err, domain.ErrAuctionNotOpen),
		errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrBiddingStillOpen),
		errors.Is(err, domain.ErrNoBids):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrIneligibleAgent):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, err.Error())
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Agora-Caller, X-Agora-Admin")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
