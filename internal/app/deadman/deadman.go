// Package deadman implements the dead-man's-switch over the engine vault.
// If the owner fails to heartbeat within the abandonment window, anyone
// may trigger a one-time emergency distribution: the vault's USDC and
// HIRE holdings are snapshotted, and each holder claims a pro-rata share.
//
// Fairness note: a claimant's share is their HIRE holdings at claim time
// over the circulating supply frozen at trigger time. Moving HIRE after
// the trigger moves claim power with it, but the denominator cannot be
// skewed by earlier claims paying HIRE out of the vault.
package deadman

import (
	"sync"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Config controls the switch.
type Config struct {
	Owner  string
	Window time.Duration
}

// DefaultWindow is the reference abandonment window.
const DefaultWindow = 90 * 24 * time.Hour

// State is a snapshot of the monitor. Claimed rides along so a restart
// cannot reset the one-shot-per-account claim guard.
type State struct {
	LastHeartbeat  time.Time       `json:"last_heartbeat"`
	Triggered      bool            `json:"triggered"`
	SnapshotUSDC   int64           `json:"snapshot_usdc"`
	SnapshotHIRE   int64           `json:"snapshot_hire"`
	SnapshotSupply int64           `json:"snapshot_supply"` // circulating HIRE at trigger, vault excluded
	Claimed        map[string]bool `json:"claimed,omitempty"`
}

// Monitor is the dead-man's-switch.
type Monitor struct {
	mu      sync.RWMutex
	config  Config
	ledger  *ledger.Ledger
	state   State
	claimed map[string]bool
}

// NewMonitor creates a monitor with the heartbeat primed to startedAt.
func NewMonitor(cfg Config, l *ledger.Ledger, startedAt time.Time) *Monitor {
	return &Monitor{
		config:  cfg,
		ledger:  l,
		state:   State{LastHeartbeat: startedAt},
		claimed: make(map[string]bool),
	}
}

// Snapshot returns the monitor state, claimed accounts included.
func (m *Monitor) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	s.Claimed = make(map[string]bool, len(m.claimed))
	for k, v := range m.claimed {
		s.Claimed[k] = v
	}
	return s
}

// Restore force-sets monitor state when reloading from disk.
func (m *Monitor) Restore(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed = make(map[string]bool, len(s.Claimed))
	for k, v := range s.Claimed {
		m.claimed[k] = v
	}
	s.Claimed = nil
	m.state = s
}

// Heartbeat resets the timer. Owner only; rejected once triggered.
func (m *Monitor) Heartbeat(caller string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.config.Owner {
		return domain.ErrOnlyOwner
	}
	if m.state.Triggered {
		return domain.ErrAlreadyAbandoned
	}
	m.state.LastHeartbeat = now
	return nil
}

// IsAbandoned reports whether the window has elapsed without a heartbeat.
func (m *Monitor) IsAbandoned(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return now.Sub(m.state.LastHeartbeat) > m.config.Window
}

// Trigger arms the one-shot emergency distribution, snapshotting the
// vault's holdings. Callable by anyone once abandoned.
func (m *Monitor) Trigger(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Triggered {
		return domain.ErrAlreadyAbandoned
	}
	if now.Sub(m.state.LastHeartbeat) <= m.config.Window {
		return domain.ErrNotAbandoned
	}
	m.state.Triggered = true
	m.state.SnapshotUSDC = m.ledger.Balance(ledger.AccountDeadmanVault, domain.USDC)
	m.state.SnapshotHIRE = m.ledger.Balance(ledger.AccountDeadmanVault, domain.HIRE)
	m.state.SnapshotSupply = m.ledger.TotalSupply(domain.HIRE) - m.state.SnapshotHIRE
	return nil
}

// ClaimShare reports one emergency payout.
type ClaimShare struct {
	USDC int64 `json:"usdc"`
	HIRE int64 `json:"hire"`
}

// StageClaim stages account's pro-rata share of the snapshotted vault.
// One-shot per account: ErrAlreadyClaimed on repeat, with no movement.
func (m *Monitor) StageClaim(tx *ledger.Tx, account string) (ClaimShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Triggered {
		return ClaimShare{}, domain.ErrEmergencyNotTriggered
	}
	if m.claimed[account] {
		return ClaimShare{}, domain.ErrAlreadyClaimed
	}

	holding := m.ledger.Balance(account, domain.HIRE)
	var share ClaimShare
	if m.state.SnapshotSupply > 0 && holding > 0 {
		share.USDC = m.state.SnapshotUSDC * holding / m.state.SnapshotSupply
		share.HIRE = m.state.SnapshotHIRE * holding / m.state.SnapshotSupply
	}
	if err := tx.Transfer(ledger.AccountDeadmanVault, account, domain.USDC, share.USDC, "", "emergency claim"); err != nil {
		return ClaimShare{}, err
	}
	if err := tx.Transfer(ledger.AccountDeadmanVault, account, domain.HIRE, share.HIRE, "", "emergency claim"); err != nil {
		return ClaimShare{}, err
	}
	m.claimed[account] = true
	return share, nil
}

// Claimed reports whether account already took its emergency share.
func (m *Monitor) Claimed(account string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.claimed[account]
}

// StageRecover stages an owner withdrawal from the vault. Blocked once
// the switch has fired.
func (m *Monitor) StageRecover(tx *ledger.Tx, caller string, asset domain.Asset, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.config.Owner {
		return domain.ErrOnlyOwner
	}
	if m.state.Triggered {
		return domain.ErrAlreadyAbandoned
	}
	return tx.Transfer(ledger.AccountDeadmanVault, caller, asset, amount, "", "owner recovery")
}
