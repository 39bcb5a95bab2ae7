package deadman

import (
	"errors"
	"testing"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

var start = time.Unix(1_700_000_000, 0)

func newTestMonitor(t *testing.T) (*Monitor, *ledger.Ledger) {
	t.Helper()
	l := ledger.New()
	tx := l.Begin("seed", start)
	tx.Mint(ledger.AccountDeadmanVault, domain.USDC, 1_000, "", "seed")
	tx.Mint(ledger.AccountDeadmanVault, domain.HIRE, 500, "", "seed")
	tx.Mint("alice", domain.HIRE, 600, "", "seed")
	tx.Mint("bob", domain.HIRE, 400, "", "seed")
	tx.Commit()
	m := NewMonitor(Config{Owner: "owner", Window: 24 * time.Hour}, l, start)
	return m, l
}

func TestHeartbeatResetsWindow(t *testing.T) {
	m, _ := newTestMonitor(t)

	late := start.Add(20 * time.Hour)
	if err := m.Heartbeat("owner", late); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if m.IsAbandoned(start.Add(30 * time.Hour)) {
		t.Error("abandoned 10h after heartbeat, want alive")
	}
	if !m.IsAbandoned(late.Add(25 * time.Hour)) {
		t.Error("alive 25h after heartbeat, want abandoned")
	}
}

func TestHeartbeatOwnerOnly(t *testing.T) {
	m, _ := newTestMonitor(t)
	if err := m.Heartbeat("mallory", start); !errors.Is(err, domain.ErrOnlyOwner) {
		t.Errorf("err = %v, want ErrOnlyOwner", err)
	}
}

func TestTriggerBeforeWindow(t *testing.T) {
	m, _ := newTestMonitor(t)
	if err := m.Trigger(start.Add(time.Hour)); !errors.Is(err, domain.ErrNotAbandoned) {
		t.Errorf("err = %v, want ErrNotAbandoned", err)
	}
}

func TestTriggerSnapshotsVault(t *testing.T) {
	m, _ := newTestMonitor(t)

	if err := m.Trigger(start.Add(25 * time.Hour)); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	s := m.Snapshot()
	if !s.Triggered || s.SnapshotUSDC != 1_000 || s.SnapshotHIRE != 500 || s.SnapshotSupply != 1_000 {
		t.Errorf("state = %+v, want triggered 1000/500 supply 1000", s)
	}

	if err := m.Trigger(start.Add(26 * time.Hour)); !errors.Is(err, domain.ErrAlreadyAbandoned) {
		t.Errorf("second trigger err = %v, want ErrAlreadyAbandoned", err)
	}
	if err := m.Heartbeat("owner", start.Add(26*time.Hour)); !errors.Is(err, domain.ErrAlreadyAbandoned) {
		t.Errorf("post-trigger heartbeat err = %v, want ErrAlreadyAbandoned", err)
	}
}

// alice holds 60% of circulating HIRE and bob 40%; their claims split the
// snapshotted vault in the same proportion.
func TestClaimProRata(t *testing.T) {
	m, l := newTestMonitor(t)
	if err := m.Trigger(start.Add(25 * time.Hour)); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	tx := l.Begin("claimEmergency", start)
	share, err := m.StageClaim(tx, "alice")
	if err != nil {
		t.Fatalf("StageClaim(alice): %v", err)
	}
	tx.Commit()
	if share.USDC != 600 || share.HIRE != 300 {
		t.Errorf("alice share = %+v, want 600/300", share)
	}

	tx = l.Begin("claimEmergency", start)
	share, err = m.StageClaim(tx, "bob")
	if err != nil {
		t.Fatalf("StageClaim(bob): %v", err)
	}
	tx.Commit()
	if share.USDC != 400 || share.HIRE != 200 {
		t.Errorf("bob share = %+v, want 400/200", share)
	}

	if got := l.Balance("alice", domain.USDC); got != 600 {
		t.Errorf("alice USDC = %d, want 600", got)
	}
	if got := l.Balance(ledger.AccountDeadmanVault, domain.USDC); got != 0 {
		t.Errorf("vault USDC residue = %d, want 0", got)
	}
}

func TestClaimIdempotent(t *testing.T) {
	m, l := newTestMonitor(t)
	if err := m.Trigger(start.Add(25 * time.Hour)); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	tx := l.Begin("claimEmergency", start)
	if _, err := m.StageClaim(tx, "alice"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	tx.Commit()
	aliceUSDC := l.Balance("alice", domain.USDC)

	tx = l.Begin("claimEmergency", start)
	if _, err := m.StageClaim(tx, "alice"); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
	if got := l.Balance("alice", domain.USDC); got != aliceUSDC {
		t.Errorf("alice USDC moved on repeat claim: %d → %d", aliceUSDC, got)
	}
	if !m.Claimed("alice") {
		t.Error("Claimed(alice) = false, want true")
	}
}

func TestClaimBeforeTrigger(t *testing.T) {
	m, l := newTestMonitor(t)
	tx := l.Begin("claimEmergency", start)
	if _, err := m.StageClaim(tx, "alice"); !errors.Is(err, domain.ErrEmergencyNotTriggered) {
		t.Errorf("err = %v, want ErrEmergencyNotTriggered", err)
	}
}

func TestRecoverBlockedAfterTrigger(t *testing.T) {
	m, l := newTestMonitor(t)

	tx := l.Begin("recoverTokens", start)
	if err := m.StageRecover(tx, "owner", domain.USDC, 100); err != nil {
		t.Fatalf("StageRecover: %v", err)
	}
	tx.Commit()
	if got := l.Balance("owner", domain.USDC); got != 100 {
		t.Errorf("owner USDC = %d, want 100", got)
	}

	if err := m.Trigger(start.Add(25 * time.Hour)); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	tx = l.Begin("recoverTokens", start)
	if err := m.StageRecover(tx, "owner", domain.USDC, 100); !errors.Is(err, domain.ErrAlreadyAbandoned) {
		t.Errorf("post-trigger recover err = %v, want ErrAlreadyAbandoned", err)
	}
	tx = l.Begin("recoverTokens", start)
	if err := m.StageRecover(tx, "mallory", domain.USDC, 1); !errors.Is(err, domain.ErrOnlyOwner) {
		t.Errorf("stranger recover err = %v, want ErrOnlyOwner", err)
	}
}
