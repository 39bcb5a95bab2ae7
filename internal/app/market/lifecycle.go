package market

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
	"github.com/mrmrsevennine/clawhire-sub000/internal/infra/metrics"
)

// CreateTask posts a bounty. The bounty is locked into the task's escrow
// account immediately; InsufficientBalance rejects the whole command.
func (e *Engine) CreateTask(caller, taskID string, taskType domain.TaskType, description string, bounty int64, expectedResultHash string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()
	return e.createTask(caller, taskID, taskType, description, bounty, expectedResultHash, "", now)
}

// CreateSubtask forks a child task under a claimed parent. Only the
// parent's worker (the orchestrator) may fork, and only one level deep.
func (e *Engine) CreateSubtask(caller, parentID, childID, description string, bounty int64, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	parent, ok := e.tasks[parentID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if parent.ParentTaskID != "" {
		return nil, domain.ErrMaxForkDepthExceeded
	}
	if parent.Status != domain.TaskClaimed {
		return nil, domain.ErrTaskNotClaimed
	}
	if caller != parent.Worker {
		return nil, domain.ErrNotParentTaskWorker
	}

	res, err := e.createTask(caller, childID, domain.TaskStandard, description, bounty, "", parentID, now)
	if err != nil {
		return nil, err
	}
	parent.ChildTaskIDs = append(parent.ChildTaskIDs, childID)
	parent.UpdatedAt = now
	res.Events = append(res.Events, newEvent(domain.EventSubtaskCreated, childID, caller, bounty, domain.USDC, now))
	if err := e.persist(nil, parent); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) createTask(poster, taskID string, taskType domain.TaskType, description string, bounty int64, expectedResultHash, parentID string, now time.Time) (*Result, error) {
	if bounty <= 0 {
		return nil, fmt.Errorf("bounty %d: %w", bounty, domain.ErrInvalidBounty)
	}
	if _, exists := e.tasks[taskID]; exists {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrTaskAlreadyExists)
	}
	if taskType == domain.TaskFlash && expectedResultHash == "" {
		return nil, domain.ErrMissingResultHash
	}

	tx := e.ledger.Begin("createTask", now)
	if err := tx.Transfer(poster, ledger.BountyEscrow(taskID), domain.USDC, bounty, taskID, "bounty lock"); err != nil {
		return nil, err
	}
	entries := tx.Commit()

	t := &domain.Task{
		ID:                 taskID,
		Poster:             poster,
		Type:               taskType,
		Status:             domain.TaskOpen,
		Description:        description,
		Bounty:             bounty,
		AgreedPrice:        bounty,
		ExpectedResultHash: expectedResultHash,
		ParentTaskID:       parentID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	e.tasks[taskID] = t

	log.Printf("[market] task %s created by %s (bounty %d)", taskID, poster, bounty)
	metrics.TasksCreated.WithLabelValues(string(taskType)).Inc()
	metrics.EscrowLocked.Add(float64(bounty))

	res := &Result{
		Task:    t.Clone(),
		Events:  []domain.Event{newEvent(domain.EventTaskCreated, taskID, poster, bounty, domain.USDC, now)},
		Journal: entries,
	}
	return res, e.persist(entries, t)
}

// BidOnTask places (or updates) a bid on an open task. The first bid
// locks the tiered stake for the task's bounty; a re-bid only updates
// price and estimate.
func (e *Engine) BidOnTask(caller, taskID string, price int64, estimatedTime time.Duration, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrTaskNotOpen
	}
	if caller == t.Poster {
		return nil, domain.ErrPosterCannotBid
	}
	if price <= 0 {
		return nil, fmt.Errorf("price %d: %w", price, domain.ErrInvalidPrice)
	}

	var entries []domain.JournalEntry
	var events []domain.Event
	if t.Bid(caller) == nil {
		// First bid from this account: lock the tiered stake.
		tx := e.ledger.Begin("bidOnTask", now)
		staked, err := e.stakes.StageLock(tx, caller, taskID, t.Bounty)
		if err != nil {
			return nil, err
		}
		entries = tx.Commit()
		e.stakes.AppliedLock(taskID, caller, staked)
		events = append(events, newEvent(domain.EventStakeLocked, taskID, caller, staked, domain.HIRE, now))
		metrics.StakeLocked.Add(float64(staked))
	}

	if t.Bids == nil {
		t.Bids = make(map[string]*domain.Bid)
	}
	t.Bids[caller] = &domain.Bid{
		Bidder:        caller,
		Price:         price,
		EstimatedTime: estimatedTime,
		PlacedAt:      now,
	}
	t.UpdatedAt = now

	events = append(events, newEvent(domain.EventBidPlaced, taskID, caller, price, domain.USDC, now))
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t)
}

// AcceptBid assigns the task to a bidder at their price. The escrow is
// adjusted to the agreed price — a cheaper bid refunds the poster the
// difference, a pricier one debits the poster — and every other bidder's
// stake is released.
func (e *Engine) AcceptBid(caller, taskID, bidder string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrTaskNotOpen
	}
	if caller != t.Poster {
		return nil, domain.ErrOnlyPoster
	}
	bid := t.Bid(bidder)
	if bid == nil {
		return nil, domain.ErrNoActiveBid
	}

	tx := e.ledger.Begin("acceptBid", now)
	esc := ledger.BountyEscrow(taskID)
	switch {
	case bid.Price < t.Bounty:
		if err := tx.Transfer(esc, t.Poster, domain.USDC, t.Bounty-bid.Price, taskID, "bounty difference refund"); err != nil {
			return nil, err
		}
	case bid.Price > t.Bounty:
		if err := tx.Transfer(t.Poster, esc, domain.USDC, bid.Price-t.Bounty, taskID, "bounty top-up"); err != nil {
			return nil, err
		}
	}
	released, err := e.stageLosingStakeReleases(tx, t, bidder)
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()
	e.applyStakeReleases(taskID, released)

	bid.Accepted = true
	t.Worker = bidder
	t.AgreedPrice = bid.Price
	t.Status = domain.TaskClaimed
	t.ClaimedAt = now
	t.UpdatedAt = now

	log.Printf("[market] task %s: bid from %s accepted at %d", taskID, bidder, bid.Price)
	metrics.TasksClaimed.Inc()
	metrics.EscrowLocked.Add(float64(bid.Price - t.Bounty))
	events := []domain.Event{
		newEvent(domain.EventBidAccepted, taskID, bidder, bid.Price, domain.USDC, now),
	}
	for _, acct := range released {
		events = append(events, newEvent(domain.EventStakeReleased, taskID, acct, 0, domain.HIRE, now))
	}
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t)
}

// ClaimTask directly assigns an open standard task to the caller at the
// full bounty. The caller locks the tiered stake (unless already locked
// via a bid); all other bidders' stakes are released.
func (e *Engine) ClaimTask(caller, taskID string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Type == domain.TaskFlash {
		return nil, domain.ErrFlashNotClaimable
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrTaskNotOpen
	}
	if caller == t.Poster {
		return nil, domain.ErrPosterCannotClaim
	}

	tx := e.ledger.Begin("claimTask", now)
	var staked int64
	if e.stakes.Locked(taskID, caller) == 0 {
		var err error
		if staked, err = e.stakes.StageLock(tx, caller, taskID, t.Bounty); err != nil {
			return nil, err
		}
	}
	released, err := e.stageLosingStakeReleases(tx, t, caller)
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()
	if staked > 0 {
		e.stakes.AppliedLock(taskID, caller, staked)
		metrics.StakeLocked.Add(float64(staked))
	}
	e.applyStakeReleases(taskID, released)

	t.Worker = caller
	t.AgreedPrice = t.Bounty
	t.Status = domain.TaskClaimed
	t.ClaimedAt = now
	t.UpdatedAt = now

	log.Printf("[market] task %s claimed by %s", taskID, caller)
	metrics.TasksClaimed.Inc()
	events := []domain.Event{newEvent(domain.EventTaskClaimed, taskID, caller, t.Bounty, domain.USDC, now)}
	if staked > 0 {
		events = append(events, newEvent(domain.EventStakeLocked, taskID, caller, staked, domain.HIRE, now))
	}
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t)
}

// SubmitDeliverable records the worker's deliverable hash.
func (e *Engine) SubmitDeliverable(caller, taskID, deliverableHash string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskClaimed {
		return nil, domain.ErrTaskNotClaimed
	}
	if caller != t.Worker {
		return nil, domain.ErrOnlyWorker
	}
	if deliverableHash == "" {
		return nil, domain.ErrEmptyDeliverable
	}

	t.DeliverableHash = deliverableHash
	t.Status = domain.TaskSubmitted
	t.SubmittedAt = now
	t.UpdatedAt = now

	ev := []domain.Event{newEvent(domain.EventTaskSubmitted, taskID, caller, 0, "", now)}
	return &Result{Task: t.Clone(), Events: ev}, e.persist(nil, t)
}

// ApproveTask settles a submitted task: worker is paid the agreed price
// minus fees, the platform fee goes to the fee account, the worker's
// stake is released, and mining emits HIRE. The poster may approve at any
// time; anyone may approve once the auto-approve timeout has elapsed.
// Approving the last successful child of a parent settles the parent too,
// in the same atomic command.
func (e *Engine) ApproveTask(caller, taskID string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskSubmitted {
		return nil, domain.ErrTaskNotSubmitted
	}
	if caller != t.Poster && now.Sub(t.SubmittedAt) <= e.config.AutoApproveWindow {
		return nil, domain.ErrAutoApproveNotDue
	}

	tx := e.ledger.Begin("approveTask", now)
	st, err := e.stageSettlement(tx, t, now)
	if err != nil {
		return nil, err
	}

	// If this is the last child and every sibling succeeded, the parent
	// auto-completes in the same transaction.
	var parent *domain.Task
	var parentSt *settlement
	if t.ParentTaskID != "" {
		if p, ok := e.tasks[t.ParentTaskID]; ok && p.Status == domain.TaskClaimed && e.childrenSucceedAssuming(p, t.ID) {
			parentSt, err = e.stageSettlement(tx, p, now)
			if err != nil {
				return nil, err
			}
			parent = p
		}
	}

	entries := tx.Commit()
	events := e.applySettlement(t, st, now)
	t.Status = domain.TaskApproved
	t.ResolvedAt = now
	t.UpdatedAt = now
	events = append([]domain.Event{newEvent(domain.EventTaskApproved, taskID, t.Worker, st.payout, domain.USDC, now)}, events...)

	if parent != nil {
		pev := e.applySettlement(parent, parentSt, now)
		parent.Status = domain.TaskApproved
		parent.ResolvedAt = now
		parent.UpdatedAt = now
		events = append(events, newEvent(domain.EventParentCompleted, parent.ID, parent.Worker, parentSt.payout, domain.USDC, now))
		events = append(events, pev...)
		log.Printf("[market] parent task %s auto-completed (all children approved)", parent.ID)
	}

	log.Printf("[market] task %s approved, %d USDC to %s", taskID, st.payout, t.Worker)
	metrics.TasksApproved.Inc()
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t, parent)
}

// DisputeTask moves a submitted task into dispute. Poster only, and only
// within the dispute window after submission.
func (e *Engine) DisputeTask(caller, taskID string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskSubmitted {
		return nil, domain.ErrTaskNotSubmitted
	}
	if caller != t.Poster {
		return nil, domain.ErrOnlyPoster
	}
	if now.Sub(t.SubmittedAt) > e.config.DisputeWindow {
		return nil, domain.ErrDisputeWindowClosed
	}

	t.Status = domain.TaskDisputed
	t.UpdatedAt = now
	metrics.TasksDisputed.Inc()
	ev := []domain.Event{newEvent(domain.EventTaskDisputed, taskID, caller, 0, "", now)}
	return &Result{Task: t.Clone(), Events: ev}, e.persist(nil, t)
}

// ResolveDispute settles a disputed task: the agreed price splits 70/30
// poster/worker (reference default), and the worker's stake is slashed at
// the configured rate with the slashed portion split between poster,
// resolver, and burn. Resolver only.
func (e *Engine) ResolveDispute(caller, taskID string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskDisputed {
		return nil, domain.ErrTaskNotDisputed
	}
	if caller != e.config.Resolver {
		return nil, domain.ErrOnlyResolver
	}

	tx := e.ledger.Begin("resolveDispute", now)
	esc := ledger.BountyEscrow(taskID)
	posterShare := t.AgreedPrice * e.config.DisputePosterBps / 10000
	workerShare := t.AgreedPrice - posterShare
	if err := tx.Transfer(esc, t.Poster, domain.USDC, posterShare, taskID, "dispute refund"); err != nil {
		return nil, err
	}
	if err := tx.Transfer(esc, t.Worker, domain.USDC, workerShare, taskID, "dispute worker share"); err != nil {
		return nil, err
	}
	slash, err := e.stakes.StageSlash(tx, t.Worker, taskID, t.Poster, caller, e.config.DisputeSlashBps)
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()
	e.stakes.AppliedRelease(taskID, t.Worker)

	t.Status = domain.TaskRefunded
	t.ResolvedAt = now
	t.UpdatedAt = now

	log.Printf("[market] task %s dispute resolved: %d to poster, %d to worker, slashed %d",
		taskID, posterShare, workerShare, slash.ToPoster+slash.ToResolver+slash.Burned)
	metrics.StakeSlashed.Add(float64(slash.ToPoster + slash.ToResolver + slash.Burned))
	events := []domain.Event{
		newEvent(domain.EventTaskRefunded, taskID, t.Poster, posterShare, domain.USDC, now),
		newEvent(domain.EventStakeSlashed, taskID, t.Worker, slash.ToPoster+slash.ToResolver+slash.Burned, domain.HIRE, now),
	}
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t)
}

// CancelTask cancels an open task. Poster only. The full bounty refunds
// and every bidder's stake is released.
func (e *Engine) CancelTask(caller, taskID string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrTaskNotOpen
	}
	if caller != t.Poster {
		return nil, domain.ErrOnlyPoster
	}

	tx := e.ledger.Begin("cancelTask", now)
	if err := tx.Transfer(ledger.BountyEscrow(taskID), t.Poster, domain.USDC, t.Bounty, taskID, "cancel refund"); err != nil {
		return nil, err
	}
	released, err := e.stageLosingStakeReleases(tx, t, "")
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()
	e.applyStakeReleases(taskID, released)

	t.Status = domain.TaskCancelled
	t.ResolvedAt = now
	t.UpdatedAt = now

	metrics.TasksCancelled.Inc()
	metrics.EscrowLocked.Sub(float64(t.Bounty))
	events := []domain.Event{newEvent(domain.EventTaskCancelled, taskID, caller, t.Bounty, domain.USDC, now)}
	for _, acct := range released {
		events = append(events, newEvent(domain.EventStakeReleased, taskID, acct, 0, domain.HIRE, now))
	}
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t)
}

// CompleteFlashTask settles an open flash task atomically: if the
// submitted hash matches the pre-committed result, the caller becomes the
// worker and is paid immediately. A mismatch changes nothing.
func (e *Engine) CompleteFlashTask(caller, taskID, submittedHash string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	t, ok := e.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if t.Type != domain.TaskFlash {
		return nil, domain.ErrTaskNotFlash
	}
	if t.Status != domain.TaskOpen {
		return nil, domain.ErrTaskNotOpen
	}
	if caller == t.Poster {
		return nil, domain.ErrPosterCannotClaim
	}
	if submittedHash != t.ExpectedResultHash {
		return nil, domain.ErrInvalidResultHash
	}

	t.Worker = caller // settlement pays the worker; set before staging
	tx := e.ledger.Begin("completeFlashTask", now)
	st, err := e.stageSettlement(tx, t, now)
	if err != nil {
		t.Worker = ""
		return nil, err
	}
	entries := tx.Commit()
	events := e.applySettlement(t, st, now)

	t.DeliverableHash = submittedHash
	t.Status = domain.TaskApproved
	t.ClaimedAt = now
	t.SubmittedAt = now
	t.ResolvedAt = now
	t.UpdatedAt = now

	log.Printf("[market] flash task %s completed by %s", taskID, caller)
	metrics.TasksApproved.Inc()
	events = append([]domain.Event{newEvent(domain.EventFlashCompleted, taskID, caller, st.payout, domain.USDC, now)}, events...)
	return &Result{Task: t.Clone(), Events: events, Journal: entries}, e.persist(entries, t)
}

// ─── Settlement ─────────────────────────────────────────────────────────────

type settlement struct {
	payout    int64 // USDC to the worker
	fee       int64 // platform fee
	orchFee   int64 // orchestrator cut (subtasks only)
	staked    int64 // worker stake released (0 for flash)
	mined     int64 // total HIRE emitted
	minedSkip bool  // emission skipped because the pool cap was reached
}

// stageSettlement stages the full payout path for a task reaching
// Approved: fee, orchestrator cut, worker payout, stake release, and
// mining emission. Pool exhaustion never blocks settlement — emission is
// skipped and reported instead.
func (e *Engine) stageSettlement(tx *ledger.Tx, t *domain.Task, now time.Time) (*settlement, error) {
	esc := ledger.BountyEscrow(t.ID)
	st := &settlement{
		fee: t.AgreedPrice * e.config.FeeBps / 10000,
	}
	if t.ParentTaskID != "" {
		st.orchFee = t.AgreedPrice * e.config.OrchestratorBps / 10000
	}
	st.payout = t.AgreedPrice - st.fee - st.orchFee

	if err := tx.Transfer(esc, ledger.AccountFeeRecipient, domain.USDC, st.fee, t.ID, "platform fee"); err != nil {
		return nil, err
	}
	if st.orchFee > 0 {
		if err := tx.Transfer(esc, t.Poster, domain.USDC, st.orchFee, t.ID, "orchestrator fee"); err != nil {
			return nil, err
		}
	}
	if err := tx.Transfer(esc, t.Worker, domain.USDC, st.payout, t.ID, "task payout"); err != nil {
		return nil, err
	}
	if e.stakes.Locked(t.ID, t.Worker) > 0 {
		staked, err := e.stakes.StageRelease(tx, t.Worker, t.ID)
		if err != nil {
			return nil, err
		}
		st.staked = staked
	}

	reward, err := e.mining.StageMint(tx, t.Worker, t.Poster, t.ID, t.AgreedPrice)
	switch {
	case err == nil:
		st.mined = reward.Total
	case errors.Is(err, domain.ErrMiningPoolExhausted):
		st.minedSkip = true
	default:
		return nil, err
	}
	return st, nil
}

// applySettlement performs the post-commit bookkeeping for one settled
// task and returns its secondary events.
func (e *Engine) applySettlement(t *domain.Task, st *settlement, now time.Time) []domain.Event {
	var events []domain.Event
	if st.staked > 0 {
		e.stakes.AppliedRelease(t.ID, t.Worker)
		events = append(events, newEvent(domain.EventStakeReleased, t.ID, t.Worker, st.staked, domain.HIRE, now))
		metrics.StakeLocked.Sub(float64(st.staked))
	}
	if st.mined > 0 {
		events = append(events, newEvent(domain.EventWorkMined, t.ID, t.Worker, st.mined, domain.HIRE, now))
		metrics.HireMined.Add(float64(st.mined))
	}
	if st.minedSkip {
		log.Printf("[market] task %s: mining pool exhausted, emission skipped", t.ID)
		metrics.MiningSkipped.Inc()
	}
	metrics.EscrowLocked.Sub(float64(t.AgreedPrice))
	return events
}

// childrenSucceedAssuming reports whether every child of parent is (or is
// about to be) Approved, treating aboutToApprove as already settled.
func (e *Engine) childrenSucceedAssuming(parent *domain.Task, aboutToApprove string) bool {
	if len(parent.ChildTaskIDs) == 0 {
		return false
	}
	for _, id := range parent.ChildTaskIDs {
		if id == aboutToApprove {
			continue
		}
		c, ok := e.tasks[id]
		if !ok || c.Status != domain.TaskApproved {
			return false
		}
	}
	return true
}

// stageLosingStakeReleases stages stake returns for every bidder except
// winner ("" releases all) and returns the affected accounts.
func (e *Engine) stageLosingStakeReleases(tx *ledger.Tx, t *domain.Task, winner string) ([]string, error) {
	var released []string
	for _, acct := range e.stakes.Stakers(t.ID) {
		if acct == winner {
			continue
		}
		if _, err := e.stakes.StageRelease(tx, acct, t.ID); err != nil {
			return nil, err
		}
		released = append(released, acct)
	}
	return released, nil
}

func (e *Engine) applyStakeReleases(taskID string, accounts []string) {
	for _, acct := range accounts {
		amount := e.stakes.Locked(taskID, acct)
		e.stakes.AppliedRelease(taskID, acct)
		metrics.StakeLocked.Sub(float64(amount))
	}
}
