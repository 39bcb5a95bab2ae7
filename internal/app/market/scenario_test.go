package market

import (
	"errors"
	"testing"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Full happy path: post 100, bid 80, accept (20 refunds), submit, approve.
// The worker nets 78 USDC after the 2.5% fee and earns mined HIRE on top
// of the returned stake.
func TestScenarioBidAndApprove(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "poster", domain.USDC, 100)
	fund(t, e, "worker", domain.HIRE, 5_000)

	mustCreate(t, e, "poster", "t1", 100)
	if _, err := e.BidOnTask("worker", "t1", 80, 2*time.Hour, start); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := e.AcceptBid("poster", "t1", "worker", start); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.SubmitDeliverable("worker", "t1", "deadbeef", start.Add(time.Hour)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.ApproveTask("poster", "t1", start.Add(2*time.Hour)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// USDC: 20 refunded at accept, 78 payout, 2 platform fee.
	if got := e.Balance("poster", domain.USDC); got != 20 {
		t.Errorf("poster USDC = %d, want 20", got)
	}
	if got := e.Balance("worker", domain.USDC); got != 78 {
		t.Errorf("worker USDC = %d, want 78", got)
	}
	if got := e.Balance(ledger.AccountFeeRecipient, domain.USDC); got != 2 {
		t.Errorf("fees = %d, want 2", got)
	}
	if got := e.Balance(ledger.BountyEscrow("t1"), domain.USDC); got != 0 {
		t.Errorf("escrow residue = %d, want 0", got)
	}

	// HIRE: 5000 stake returned plus 80*10*80% = 640 mined; poster got 160.
	if got := e.Balance("worker", domain.HIRE); got != 5_640 {
		t.Errorf("worker HIRE = %d, want 5640", got)
	}
	if got := e.Balance("poster", domain.HIRE); got != 160 {
		t.Errorf("poster HIRE = %d, want 160", got)
	}
	if s := e.MiningState(); s.TotalMined != 800 || s.TotalWorkUSDC != 80 {
		t.Errorf("mining state = %+v, want 800 mined over 80 work", s)
	}

	// No USDC was created or destroyed across the whole sequence.
	total := e.Balance("poster", domain.USDC) +
		e.Balance("worker", domain.USDC) +
		e.Balance(ledger.AccountFeeRecipient, domain.USDC)
	if total != 100 {
		t.Errorf("USDC total = %d, want 100", total)
	}
}

// Dispute path: claim at full bounty, submit, dispute, resolve. The price
// splits 70/30 poster/worker and half the stake is slashed 60/20/20.
func TestScenarioDispute(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "poster", domain.USDC, 100)
	fund(t, e, "worker", domain.HIRE, 5_000)

	mustCreate(t, e, "poster", "t1", 100)
	if _, err := e.ClaimTask("worker", "t1", start); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.SubmitDeliverable("worker", "t1", "deadbeef", start.Add(time.Hour)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.DisputeTask("poster", "t1", start.Add(2*time.Hour)); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if _, err := e.ResolveDispute("resolver", "t1", start.Add(3*time.Hour)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got := e.Balance("poster", domain.USDC); got != 70 {
		t.Errorf("poster USDC = %d, want 70", got)
	}
	if got := e.Balance("worker", domain.USDC); got != 30 {
		t.Errorf("worker USDC = %d, want 30", got)
	}

	// Stake 5000 slashed at 50%: 2500 returned, 1500 poster, 500 resolver,
	// 500 burned.
	if got := e.Balance("worker", domain.HIRE); got != 2_500 {
		t.Errorf("worker HIRE = %d, want 2500", got)
	}
	if got := e.Balance("poster", domain.HIRE); got != 1_500 {
		t.Errorf("poster HIRE = %d, want 1500", got)
	}
	if got := e.Balance("resolver", domain.HIRE); got != 500 {
		t.Errorf("resolver HIRE = %d, want 500", got)
	}
	if got := e.LockedStake("t1", "worker"); got != 0 {
		t.Errorf("locked = %d, want 0", got)
	}
	// No mining on a disputed task.
	if s := e.MiningState(); s.TotalMined != 0 {
		t.Errorf("mined = %d, want 0", s.TotalMined)
	}
	task, _ := e.Task("t1")
	if task.Status != domain.TaskRefunded {
		t.Errorf("status = %s, want REFUNDED", task.Status)
	}
}

// An orchestrator claims a parent task, forks a subtask, and collects the
// orchestrator fee when the child settles. Approving the last child also
// settles the parent in the same command.
func TestScenarioSubtaskOrchestration(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "poster", domain.USDC, 1_000)
	fund(t, e, "orch", domain.USDC, 100)
	fund(t, e, "orch", domain.HIRE, 25_000)
	fund(t, e, "w2", domain.HIRE, 5_000)

	mustCreate(t, e, "poster", "parent", 1_000)
	if _, err := e.ClaimTask("orch", "parent", start); err != nil {
		t.Fatalf("claim parent: %v", err)
	}
	if _, err := e.CreateSubtask("orch", "parent", "child", "sub work", 100, start); err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}
	if _, err := e.ClaimTask("w2", "child", start); err != nil {
		t.Fatalf("claim child: %v", err)
	}
	if _, err := e.SubmitDeliverable("w2", "child", "h", start.Add(time.Hour)); err != nil {
		t.Fatalf("submit child: %v", err)
	}
	if _, err := e.ApproveTask("orch", "child", start.Add(2*time.Hour)); err != nil {
		t.Fatalf("approve child: %v", err)
	}

	child, _ := e.Task("child")
	parent, _ := e.Task("parent")
	if child.Status != domain.TaskApproved {
		t.Errorf("child status = %s, want APPROVED", child.Status)
	}
	if parent.Status != domain.TaskApproved {
		t.Errorf("parent status = %s, want APPROVED (auto-completed)", parent.Status)
	}

	// Child settlement: fee 2, orchestrator cut 10, payout 88.
	if got := e.Balance("w2", domain.USDC); got != 88 {
		t.Errorf("w2 USDC = %d, want 88", got)
	}
	// Orchestrator: 100 seed - 100 child bounty + 10 cut + 975 parent payout.
	if got := e.Balance("orch", domain.USDC); got != 985 {
		t.Errorf("orch USDC = %d, want 985", got)
	}
	if got := e.Balance(ledger.AccountFeeRecipient, domain.USDC); got != 27 {
		t.Errorf("fees = %d, want 27 (2 child + 25 parent)", got)
	}
	if got := e.LockedStake("parent", "orch"); got != 0 {
		t.Errorf("orch stake still locked: %d", got)
	}
}

func TestSubtaskGuards(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "poster", domain.USDC, 1_000)
	fund(t, e, "orch", domain.USDC, 200)
	fund(t, e, "orch", domain.HIRE, 25_000)

	mustCreate(t, e, "poster", "parent", 1_000)
	if _, err := e.CreateSubtask("orch", "parent", "c1", "", 100, start); !errors.Is(err, domain.ErrTaskNotClaimed) {
		t.Errorf("unclaimed parent err = %v, want ErrTaskNotClaimed", err)
	}
	if _, err := e.ClaimTask("orch", "parent", start); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.CreateSubtask("stranger", "parent", "c1", "", 100, start); !errors.Is(err, domain.ErrNotParentTaskWorker) {
		t.Errorf("stranger fork err = %v, want ErrNotParentTaskWorker", err)
	}
	if _, err := e.CreateSubtask("orch", "parent", "c1", "", 100, start); err != nil {
		t.Fatalf("fork: %v", err)
	}

	// One level deep only.
	fund(t, e, "w2", domain.HIRE, 5_000)
	if _, err := e.ClaimTask("w2", "c1", start); err != nil {
		t.Fatalf("claim child: %v", err)
	}
	if _, err := e.CreateSubtask("w2", "c1", "c2", "", 50, start); !errors.Is(err, domain.ErrMaxForkDepthExceeded) {
		t.Errorf("deep fork err = %v, want ErrMaxForkDepthExceeded", err)
	}
}

// A parent with an unresolved sibling stays claimed until every child is
// approved.
func TestParentWaitsForAllChildren(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "poster", domain.USDC, 1_000)
	fund(t, e, "orch", domain.USDC, 200)
	fund(t, e, "orch", domain.HIRE, 25_000)
	fund(t, e, "w2", domain.HIRE, 10_000)

	mustCreate(t, e, "poster", "parent", 1_000)
	if _, err := e.ClaimTask("orch", "parent", start); err != nil {
		t.Fatalf("claim: %v", err)
	}
	for _, id := range []string{"c1", "c2"} {
		if _, err := e.CreateSubtask("orch", "parent", id, "", 100, start); err != nil {
			t.Fatalf("fork %s: %v", id, err)
		}
		if _, err := e.ClaimTask("w2", id, start); err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
		if _, err := e.SubmitDeliverable("w2", id, "h", start); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	if _, err := e.ApproveTask("orch", "c1", start.Add(time.Hour)); err != nil {
		t.Fatalf("approve c1: %v", err)
	}
	parent, _ := e.Task("parent")
	if parent.Status != domain.TaskClaimed {
		t.Errorf("parent status = %s after first child, want CLAIMED", parent.Status)
	}

	if _, err := e.ApproveTask("orch", "c2", start.Add(time.Hour)); err != nil {
		t.Fatalf("approve c2: %v", err)
	}
	parent, _ = e.Task("parent")
	if parent.Status != domain.TaskApproved {
		t.Errorf("parent status = %s after last child, want APPROVED", parent.Status)
	}
}

// Flash tasks settle atomically against the pre-committed hash. A wrong
// hash changes nothing; the right hash pays the caller immediately.
func TestScenarioFlashTask(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "poster", domain.USDC, 100)

	if _, err := e.CreateTask("poster", "f1", domain.TaskFlash, "quick job", 100, "expected", start); err != nil {
		t.Fatalf("create flash: %v", err)
	}

	if _, err := e.CompleteFlashTask("worker", "f1", "wrong", start); !errors.Is(err, domain.ErrInvalidResultHash) {
		t.Errorf("wrong hash err = %v, want ErrInvalidResultHash", err)
	}
	if got := e.Balance("worker", domain.USDC); got != 0 {
		t.Errorf("worker paid on wrong hash: %d", got)
	}
	task, _ := e.Task("f1")
	if task.Status != domain.TaskOpen || task.Worker != "" {
		t.Errorf("task mutated on wrong hash: %+v", task)
	}

	if _, err := e.CompleteFlashTask("poster", "f1", "expected", start); !errors.Is(err, domain.ErrPosterCannotClaim) {
		t.Errorf("self-complete err = %v, want ErrPosterCannotClaim", err)
	}

	if _, err := e.CompleteFlashTask("worker", "f1", "expected", start); err != nil {
		t.Fatalf("CompleteFlashTask: %v", err)
	}
	if got := e.Balance("worker", domain.USDC); got != 98 {
		t.Errorf("worker USDC = %d, want 98 (100 - 2 fee)", got)
	}
	if got := e.Balance("worker", domain.HIRE); got != 800 {
		t.Errorf("worker HIRE = %d, want 800 mined", got)
	}
	task, _ = e.Task("f1")
	if task.Status != domain.TaskApproved || task.Worker != "worker" {
		t.Errorf("task = %+v, want approved by worker", task)
	}
	if _, err := e.CompleteFlashTask("other", "f1", "expected", start); !errors.Is(err, domain.ErrTaskNotOpen) {
		t.Errorf("replay err = %v, want ErrTaskNotOpen", err)
	}
}

// When the mining pool cannot cover an emission, settlement still pays the
// worker and simply skips the emission.
func TestSettlementSurvivesPoolExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FaucetEnabled = true
	cfg.Mining.PoolCap = 10
	e, err := New(cfg, start)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fund(t, e, "poster", domain.USDC, 100)
	fund(t, e, "worker", domain.HIRE, 5_000)

	mustCreate(t, e, "poster", "t1", 100)
	if _, err := e.ClaimTask("worker", "t1", start); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := e.SubmitDeliverable("worker", "t1", "h", start); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.ApproveTask("poster", "t1", start.Add(time.Hour)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if got := e.Balance("worker", domain.USDC); got != 98 {
		t.Errorf("worker USDC = %d, want 98", got)
	}
	if got := e.Balance("worker", domain.HIRE); got != 5_000 {
		t.Errorf("worker HIRE = %d, want 5000 (stake only, no emission)", got)
	}
	if s := e.MiningState(); s.TotalMined != 0 {
		t.Errorf("TotalMined = %d, want 0", s.TotalMined)
	}
}

// Platform fees flow to stakers through distributeRevenue and out again
// via claimRewards.
func TestScenarioRevenueShare(t *testing.T) {
	e := newTestEngine(t)
	fund(t, e, "alice", domain.HIRE, 2_000)
	fund(t, e, "bob", domain.HIRE, 1_000)
	fund(t, e, ledger.AccountFeeRecipient, domain.USDC, 1_000)

	if _, err := e.Stake("alice", 2_000, start); err != nil {
		t.Fatalf("stake alice: %v", err)
	}
	if _, err := e.Stake("bob", 1_000, start); err != nil {
		t.Fatalf("stake bob: %v", err)
	}

	if _, err := e.DistributeRevenue("mallory", 1_000, start); !errors.Is(err, domain.ErrOnlyOwner) {
		t.Errorf("stranger distribute err = %v, want ErrOnlyOwner", err)
	}
	if _, err := e.DistributeRevenue("owner", 1_000, start); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if got := e.AccruedRewards("alice"); got != 333 {
		t.Errorf("alice accrued = %d, want 333", got)
	}
	if _, err := e.ClaimRewards("alice", start); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := e.Balance("alice", domain.USDC); got != 333 {
		t.Errorf("alice USDC = %d, want 333", got)
	}
	if _, err := e.ClaimRewards("alice", start); !errors.Is(err, domain.ErrNoRewards) {
		t.Errorf("re-claim err = %v, want ErrNoRewards", err)
	}

	if _, err := e.Unstake("alice", 2_000, start); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := e.Balance("alice", domain.HIRE); got != 2_000 {
		t.Errorf("alice HIRE = %d, want 2000", got)
	}
}

// The dead-man's-switch: missed heartbeats arm an emergency distribution
// and HIRE holders drain the vault pro rata, once each.
func TestScenarioEmergencyDistribution(t *testing.T) {
	e := newTestEngine(t)
	e.SetAbandonmentWindow(24*time.Hour, start)
	fund(t, e, ledger.AccountDeadmanVault, domain.USDC, 1_000)
	fund(t, e, "alice", domain.HIRE, 600)
	fund(t, e, "bob", domain.HIRE, 400)

	if _, err := e.EmergencyDistribute("alice", start.Add(time.Hour)); !errors.Is(err, domain.ErrNotAbandoned) {
		t.Errorf("early trigger err = %v, want ErrNotAbandoned", err)
	}
	if _, err := e.Heartbeat("mallory", start.Add(time.Hour)); !errors.Is(err, domain.ErrOnlyOwner) {
		t.Errorf("stranger heartbeat err = %v, want ErrOnlyOwner", err)
	}
	if _, err := e.Heartbeat("owner", start.Add(20*time.Hour)); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	// The heartbeat pushed the deadline out.
	if _, err := e.EmergencyDistribute("alice", start.Add(30*time.Hour)); !errors.Is(err, domain.ErrNotAbandoned) {
		t.Errorf("post-heartbeat trigger err = %v, want ErrNotAbandoned", err)
	}

	armed := start.Add(50 * time.Hour)
	if _, err := e.EmergencyDistribute("alice", armed); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, err := e.RecoverTokens("owner", domain.USDC, 1, armed); !errors.Is(err, domain.ErrAlreadyAbandoned) {
		t.Errorf("post-trigger recover err = %v, want ErrAlreadyAbandoned", err)
	}

	if _, err := e.ClaimEmergency("alice", armed); err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	if got := e.Balance("alice", domain.USDC); got != 600 {
		t.Errorf("alice USDC = %d, want 600", got)
	}
	if _, err := e.ClaimEmergency("alice", armed); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("re-claim err = %v, want ErrAlreadyClaimed", err)
	}
	if got := e.Balance("alice", domain.USDC); got != 600 {
		t.Errorf("alice USDC moved on re-claim: %d", got)
	}

	if _, err := e.ClaimEmergency("bob", armed); err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	if got := e.Balance("bob", domain.USDC); got != 400 {
		t.Errorf("bob USDC = %d, want 400", got)
	}
	if got := e.Balance(ledger.AccountDeadmanVault, domain.USDC); got != 0 {
		t.Errorf("vault residue = %d, want 0", got)
	}
}
