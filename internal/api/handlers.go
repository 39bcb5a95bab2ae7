package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
	"github.com/mrmrsevennine/clawhire-sub000/internal/infra/metrics"
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// respond finishes a command request: it maps a rejection to its HTTP
// status and counts every command, success or failure, under one name.
func (s *Server) respond(w http.ResponseWriter, command string, res *market.Result, err error) {
	if err != nil {
		metrics.CommandErrors.WithLabelValues(command, domain.Reason(err)).Inc()
		writeCommandError(w, err)
		return
	}
	metrics.CommandsTotal.WithLabelValues(command).Inc()
	writeJSON(w, http.StatusOK, res)
}

// ─── Task lifecycle ─────────────────────────────────────────────────────────

type createTaskRequest struct {
	ID                 string `json:"id"`
	Type               string `json:"type,omitempty"` // STANDARD (default) or FLASH
	Description        string `json:"description,omitempty"`
	Bounty             int64  `json:"bounty"`
	ExpectedResultHash string `json:"expected_result_hash,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	taskType := domain.TaskStandard
	if req.Type == string(domain.TaskFlash) {
		taskType = domain.TaskFlash
	}
	res, err := s.engine.CreateTask(acct, req.ID, taskType, req.Description, req.Bounty, req.ExpectedResultHash, s.clock())
	s.respond(w, "createTask", res, err)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Task(chi.URLParam(r, "id"))
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := domain.TaskStatus(r.URL.Query().Get("status"))
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": s.engine.Tasks(status),
	})
}

type bidRequest struct {
	Price            int64 `json:"price"`
	EstimatedMinutes int64 `json:"estimated_minutes,omitempty"`
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if !decode(w, r, &req) {
		return
	}
	est := time.Duration(req.EstimatedMinutes) * time.Minute
	res, err := s.engine.BidOnTask(acct, chi.URLParam(r, "id"), req.Price, est, s.clock())
	s.respond(w, "bidOnTask", res, err)
}

type acceptBidRequest struct {
	Bidder string `json:"bidder"`
}

func (s *Server) handleAcceptBid(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req acceptBidRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.AcceptBid(acct, chi.URLParam(r, "id"), req.Bidder, s.clock())
	s.respond(w, "acceptBid", res, err)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ClaimTask(acct, chi.URLParam(r, "id"), s.clock())
	s.respond(w, "claimTask", res, err)
}

type submitRequest struct {
	DeliverableHash string `json:"deliverable_hash"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.SubmitDeliverable(acct, chi.URLParam(r, "id"), req.DeliverableHash, s.clock())
	s.respond(w, "submitDeliverable", res, err)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ApproveTask(acct, chi.URLParam(r, "id"), s.clock())
	s.respond(w, "approveTask", res, err)
}

func (s *Server) handleDispute(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.DisputeTask(acct, chi.URLParam(r, "id"), s.clock())
	s.respond(w, "disputeTask", res, err)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ResolveDispute(acct, chi.URLParam(r, "id"), s.clock())
	s.respond(w, "resolveDispute", res, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.CancelTask(acct, chi.URLParam(r, "id"), s.clock())
	s.respond(w, "cancelTask", res, err)
}

type createSubtaskRequest struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Bounty      int64  `json:"bounty"`
}

func (s *Server) handleCreateSubtask(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req createSubtaskRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.CreateSubtask(acct, chi.URLParam(r, "id"), req.ID, req.Description, req.Bounty, s.clock())
	s.respond(w, "createSubtask", res, err)
}

type flashRequest struct {
	ResultHash string `json:"result_hash"`
}

func (s *Server) handleCompleteFlash(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req flashRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.CompleteFlashTask(acct, chi.URLParam(r, "id"), req.ResultHash, s.clock())
	s.respond(w, "completeFlashTask", res, err)
}

// ─── Economy ────────────────────────────────────────────────────────────────

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Stake(acct, req.Amount, s.clock())
	s.respond(w, "stake", res, err)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Unstake(acct, req.Amount, s.clock())
	s.respond(w, "unstake", res, err)
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.DistributeRevenue(acct, req.Amount, s.clock())
	s.respond(w, "distributeRevenue", res, err)
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ClaimRewards(acct, s.clock())
	s.respond(w, "claimRewards", res, err)
}

func (s *Server) handleRevenueTotals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.RevenueTotals())
}

func (s *Server) handleMiningState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.MiningState())
}

// ─── Dead-man's-switch ──────────────────────────────────────────────────────

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Heartbeat(acct, s.clock())
	s.respond(w, "heartbeat", res, err)
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.EmergencyDistribute(acct, s.clock())
	s.respond(w, "emergencyDistribute", res, err)
}

func (s *Server) handleClaimEmergency(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ClaimEmergency(acct, s.clock())
	s.respond(w, "claimEmergency", res, err)
}

type recoverRequest struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req recoverRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.RecoverTokens(acct, domain.Asset(req.Asset), req.Amount, s.clock())
	s.respond(w, "recoverTokens", res, err)
}

func (s *Server) handleDeadmanState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.DeadmanState())
}

// ─── Account queries ────────────────────────────────────────────────────────

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	acct := chi.URLParam(r, "account")
	writeJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"usdc":    s.engine.Balance(acct, domain.USDC),
		"hire":    s.engine.Balance(acct, domain.HIRE),
	})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	acct := chi.URLParam(r, "account")
	pos := s.engine.StakerPosition(acct)
	writeJSON(w, http.StatusOK, map[string]any{
		"account":  acct,
		"position": pos,
		"accrued":  s.engine.AccruedRewards(acct),
	})
}

func (s *Server) handleLedgerHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger history unavailable: no journal store attached")
		return
	}
	acct := chi.URLParam(r, "account")
	entries, err := s.journal.JournalEntries(acct, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"entries": entries,
	})
}

// ─── Dev surface ────────────────────────────────────────────────────────────

type faucetRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  int64  `json:"amount"`
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req faucetRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Faucet(acct, req.Account, domain.Asset(req.Asset), req.Amount, s.clock())
	s.respond(w, "faucet", res, err)
}
