package daemon

import (
	"errors"
	"testing"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
	"github.com/mrmrsevennine/clawhire-sub000/internal/infra/sqlite"
)

var epoch = time.Unix(1_700_000_000, 0)

// openEngine builds an engine over dir the way NewWithConfig does:
// abandonment window first, then restore, then attach the store.
func openEngine(t *testing.T, dir string, startedAt time.Time) (*market.Engine, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := market.DefaultConfig()
	cfg.FaucetEnabled = true
	eng, err := market.New(cfg, startedAt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.SetAbandonmentWindow(24*time.Hour, startedAt)
	if err := restoreEngine(eng, db); err != nil {
		t.Fatalf("restoreEngine: %v", err)
	}
	eng.SetStore(db)
	return eng, db
}

func fund(t *testing.T, e *market.Engine, account string, asset domain.Asset, amount int64) {
	t.Helper()
	if _, err := e.Faucet("owner", account, asset, amount, epoch); err != nil {
		t.Fatalf("fund %s with %d %s: %v", account, amount, asset, err)
	}
}

func TestRestartKeepsEmergencyClaims(t *testing.T) {
	dir := t.TempDir()
	eng, db := openEngine(t, dir, epoch)

	fund(t, eng, ledger.AccountDeadmanVault, domain.USDC, 1_000)
	fund(t, eng, "alice", domain.HIRE, 600)
	fund(t, eng, "bob", domain.HIRE, 400)

	trigger := epoch.Add(48 * time.Hour)
	if _, err := eng.EmergencyDistribute("alice", trigger); err != nil {
		t.Fatalf("EmergencyDistribute: %v", err)
	}
	if _, err := eng.ClaimEmergency("alice", trigger); err != nil {
		t.Fatalf("ClaimEmergency: %v", err)
	}
	if got := eng.Balance("alice", domain.USDC); got != 600 {
		t.Fatalf("alice share = %d, want 600", got)
	}
	db.Close()

	eng2, _ := openEngine(t, dir, trigger)

	// The one-shot guard survives the restart: alice cannot draw a
	// second share, and the vault still holds bob's portion.
	if _, err := eng2.ClaimEmergency("alice", trigger); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("repeat claim err = %v, want ErrAlreadyClaimed", err)
	}
	if got := eng2.Balance(ledger.AccountDeadmanVault, domain.USDC); got != 400 {
		t.Errorf("vault = %d, want 400", got)
	}
	if got := eng2.Balance("alice", domain.USDC); got != 600 {
		t.Errorf("alice = %d, want 600", got)
	}

	if _, err := eng2.ClaimEmergency("bob", trigger); err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if got := eng2.Balance("bob", domain.USDC); got != 400 {
		t.Errorf("bob = %d, want 400", got)
	}
	if got := eng2.Balance(ledger.AccountDeadmanVault, domain.USDC); got != 0 {
		t.Errorf("vault after bob = %d, want 0", got)
	}
}

func TestRestartKeepsBalancesAndTasks(t *testing.T) {
	dir := t.TempDir()
	eng, db := openEngine(t, dir, epoch)

	fund(t, eng, "poster", domain.USDC, 100)
	fund(t, eng, "worker", domain.HIRE, 5_000)
	if _, err := eng.CreateTask("poster", "t1", domain.TaskStandard, "write the docs", 100, "", epoch); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := eng.ClaimTask("worker", "t1", epoch); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	db.Close()

	eng2, _ := openEngine(t, dir, epoch)

	task, err := eng2.Task("t1")
	if err != nil {
		t.Fatalf("Task after restart: %v", err)
	}
	if task.Status != domain.TaskClaimed || task.Worker != "worker" {
		t.Errorf("task = %+v", task)
	}
	if got := eng2.Balance(ledger.BountyEscrow("t1"), domain.USDC); got != 100 {
		t.Errorf("bounty escrow = %d, want 100", got)
	}
	if got := eng2.Balance(ledger.StakeEscrow("t1", "worker"), domain.HIRE); got != 5_000 {
		t.Errorf("stake escrow = %d, want 5000", got)
	}
	if err := eng2.CheckConservation(); err != nil {
		t.Errorf("CheckConservation: %v", err)
	}

	// Settlement proceeds on the restored state: worker is paid net of
	// the fee, the stake comes back, and mining emits on the price.
	if _, err := eng2.SubmitDeliverable("worker", "t1", "sha256:abc", epoch.Add(time.Hour)); err != nil {
		t.Fatalf("SubmitDeliverable: %v", err)
	}
	if _, err := eng2.ApproveTask("poster", "t1", epoch.Add(2*time.Hour)); err != nil {
		t.Fatalf("ApproveTask: %v", err)
	}
	if got := eng2.Balance("worker", domain.USDC); got != 98 {
		t.Errorf("worker USDC = %d, want 98", got)
	}
	if got := eng2.Balance("worker", domain.HIRE); got != 5_800 {
		t.Errorf("worker HIRE = %d, want 5800", got)
	}
	if got := eng2.Balance(ledger.AccountFeeRecipient, domain.USDC); got != 2 {
		t.Errorf("fees = %d, want 2", got)
	}
	if err := eng2.CheckConservation(); err != nil {
		t.Errorf("CheckConservation after settle: %v", err)
	}
}

func TestRestartKeepsStakerPositions(t *testing.T) {
	dir := t.TempDir()
	eng, db := openEngine(t, dir, epoch)

	fund(t, eng, "alice", domain.HIRE, 2_000)
	fund(t, eng, ledger.AccountFeeRecipient, domain.USDC, 1_000)
	if _, err := eng.Stake("alice", 2_000, epoch); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if _, err := eng.DistributeRevenue("owner", 1_000, epoch); err != nil {
		t.Fatalf("DistributeRevenue: %v", err)
	}
	if got := eng.AccruedRewards("alice"); got != 500 {
		t.Fatalf("accrued = %d, want 500", got)
	}
	db.Close()

	eng2, _ := openEngine(t, dir, epoch)

	if got := eng2.RevenueTotals().TotalStaked; got != 2_000 {
		t.Errorf("TotalStaked = %d, want 2000", got)
	}
	if got := eng2.AccruedRewards("alice"); got != 500 {
		t.Errorf("accrued after restart = %d, want 500", got)
	}
	if _, err := eng2.ClaimRewards("alice", epoch.Add(time.Hour)); err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}
	if got := eng2.Balance("alice", domain.USDC); got != 500 {
		t.Errorf("alice USDC = %d, want 500", got)
	}
}

func TestRestoreLeavesFreshDatabaseAlone(t *testing.T) {
	eng, _ := openEngine(t, t.TempDir(), epoch)

	if got := eng.Tasks(""); len(got) != 0 {
		t.Errorf("tasks = %d, want 0", len(got))
	}
	if eng.IsAbandoned(epoch.Add(time.Hour)) {
		t.Error("fresh engine abandoned inside the window")
	}
	if err := eng.CheckConservation(); err != nil {
		t.Errorf("CheckConservation: %v", err)
	}
}
