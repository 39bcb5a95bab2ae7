// Package api provides the HTTP surface over the marketplace engine.
// Every command endpoint resolves the caller from the X-Clawhire-Account
// header (an opaque identifier — no authentication happens here) and maps
// typed engine errors to HTTP statuses.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
	"github.com/mrmrsevennine/clawhire-sub000/internal/health"
)

// callerHeader carries the opaque caller account identifier.
const callerHeader = "X-Clawhire-Account"

// Journal reads persisted ledger history.
type Journal interface {
	JournalEntries(account string, limit int) ([]domain.JournalEntry, error)
}

// Server is the marketplace HTTP API server.
type Server struct {
	engine         *market.Engine
	health         *health.Checker
	journal        Journal
	metricsEnabled bool
	clock          func() time.Time
}

// NewServer creates an API server over the engine.
func NewServer(e *market.Engine) *Server {
	return &Server{engine: e, clock: time.Now}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the daemon health checker to /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetJournal attaches persisted ledger history to the account queries.
func (s *Server) SetJournal(j Journal) { s.journal = j }

// SetClock overrides the time source (tests).
func (s *Server) SetClock(clock func() time.Time) { s.clock = clock }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Task lifecycle
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/bids", s.handleBid)
		r.Post("/tasks/{id}/accept", s.handleAcceptBid)
		r.Post("/tasks/{id}/claim", s.handleClaim)
		r.Post("/tasks/{id}/submit", s.handleSubmit)
		r.Post("/tasks/{id}/approve", s.handleApprove)
		r.Post("/tasks/{id}/dispute", s.handleDispute)
		r.Post("/tasks/{id}/resolve", s.handleResolve)
		r.Post("/tasks/{id}/cancel", s.handleCancel)
		r.Post("/tasks/{id}/subtasks", s.handleCreateSubtask)
		r.Post("/tasks/{id}/flash", s.handleCompleteFlash)

		// Economy
		r.Post("/staking/stake", s.handleStake)
		r.Post("/staking/unstake", s.handleUnstake)
		r.Post("/revenue/distribute", s.handleDistribute)
		r.Post("/revenue/claim", s.handleClaimRewards)
		r.Get("/revenue", s.handleRevenueTotals)
		r.Get("/mining", s.handleMiningState)

		// Dead-man's-switch
		r.Post("/deadman/heartbeat", s.handleHeartbeat)
		r.Post("/deadman/trigger", s.handleEmergency)
		r.Post("/deadman/claim", s.handleClaimEmergency)
		r.Post("/deadman/recover", s.handleRecover)
		r.Get("/deadman", s.handleDeadmanState)

		// Queries
		r.Get("/accounts/{account}/balances", s.handleBalances)
		r.Get("/accounts/{account}/position", s.handlePosition)
		r.Get("/accounts/{account}/ledger", s.handleLedgerHistory)

		// Dev surface, owner-gated and disabled by default
		r.Post("/admin/faucet", s.handleFaucet)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// caller extracts the opaque account identifier, or fails the request.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	acct := r.Header.Get(callerHeader)
	if acct == "" {
		writeError(w, http.StatusBadRequest, "missing "+callerHeader+" header")
		return "", false
	}
	return acct, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCommandError maps typed engine errors to HTTP statuses via their
// rejection reason.
func writeCommandError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch domain.Reason(err) {
	case "not_found":
		status = http.StatusNotFound
	case "conflict":
		status = http.StatusConflict
	case "insufficient_funds":
		status = http.StatusPaymentRequired
	case "forbidden":
		status = http.StatusForbidden
	}
	writeError(w, status, err.Error())
}
