// Package stake manages HIRE collateral locked per (account, task).
// Workers lock a tiered stake when bidding or claiming; it is returned in
// full on success and split on slash. The locked amounts themselves live
// in ledger escrow accounts — this package tracks who locked what and
// applies the tier table and slash splits.
package stake

import (
	"fmt"
	"sync"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Tier maps a bounty ceiling to the HIRE stake it requires.
type Tier struct {
	MaxBounty int64 // inclusive USDC ceiling; 0 means "no ceiling"
	Stake     int64 // required HIRE
}

// SlashSplit controls where the slashed portion of a stake goes, in basis
// points of the slashed amount. Must sum to 10000.
type SlashSplit struct {
	PosterBps   int64
	ResolverBps int64
	BurnBps     int64
}

// Config holds the tier table and slash split.
type Config struct {
	Tiers []Tier
	Split SlashSplit
}

// DefaultConfig returns the reference tier table and 60/20/20 slash split.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{MaxBounty: 50, Stake: 500},
			{MaxBounty: 500, Stake: 5_000},
			{MaxBounty: 5_000, Stake: 25_000},
			{MaxBounty: 0, Stake: 50_000},
		},
		Split: SlashSplit{PosterBps: 6000, ResolverBps: 2000, BurnBps: 2000},
	}
}

// Validate checks the tier table is monotonic and the split sums to 10000.
func (c Config) Validate() error {
	var prevMax, prevStake int64
	for i, t := range c.Tiers {
		last := i == len(c.Tiers)-1
		if !last && (t.MaxBounty <= prevMax || t.Stake < prevStake) {
			return fmt.Errorf("tier %d not monotonic: %w", i, domain.ErrInvalidBps)
		}
		prevMax, prevStake = t.MaxBounty, t.Stake
	}
	if c.Split.PosterBps+c.Split.ResolverBps+c.Split.BurnBps != 10000 {
		return fmt.Errorf("slash split: %w", domain.ErrInvalidBps)
	}
	return nil
}

// Manager tracks locked stakes. All mutation goes through a ledger Tx so
// the enclosing command stays atomic; the in-memory index is updated only
// via the Applied* callbacks after the Tx commits.
type Manager struct {
	mu     sync.RWMutex
	config Config
	locked map[string]map[string]int64 // taskID → account → HIRE
}

// NewManager creates a stake manager.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg, locked: make(map[string]map[string]int64)}
}

// Required returns the HIRE stake a bounty demands. Monotonic
// non-decreasing in the bounty.
func (m *Manager) Required(bounty int64) int64 {
	for _, t := range m.config.Tiers {
		if t.MaxBounty != 0 && bounty <= t.MaxBounty {
			return t.Stake
		}
	}
	return m.config.Tiers[len(m.config.Tiers)-1].Stake
}

// Locked returns the HIRE locked by account for taskID (0 if none).
func (m *Manager) Locked(taskID, account string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked[taskID][account]
}

// Snapshot returns a copy of the full lock index for persistence.
func (m *Manager) Snapshot() map[string]map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]int64, len(m.locked))
	for taskID, accts := range m.locked {
		cp := make(map[string]int64, len(accts))
		for acct, v := range accts {
			cp[acct] = v
		}
		out[taskID] = cp
	}
	return out
}

// Restore force-sets the lock index when reloading from disk.
func (m *Manager) Restore(locked map[string]map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = make(map[string]map[string]int64, len(locked))
	for taskID, accts := range locked {
		cp := make(map[string]int64, len(accts))
		for acct, v := range accts {
			cp[acct] = v
		}
		m.locked[taskID] = cp
	}
}

// Stakers returns every account with a stake locked for taskID.
func (m *Manager) Stakers(taskID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for acct := range m.locked[taskID] {
		out = append(out, acct)
	}
	return out
}

// StageLock stages the tiered stake for bounty into the task's stake
// escrow. Returns the amount staged. ErrInsufficientStake if the account
// cannot cover it.
func (m *Manager) StageLock(tx *ledger.Tx, account, taskID string, bounty int64) (int64, error) {
	required := m.Required(bounty)
	if err := tx.Transfer(account, ledger.StakeEscrow(taskID, account), domain.HIRE, required, taskID, "stake lock"); err != nil {
		return 0, fmt.Errorf("lock %d HIRE: %w", required, domain.ErrInsufficientStake)
	}
	return required, nil
}

// StageRelease stages return of the full locked stake to account.
// ErrNoStakeLocked if nothing is locked.
func (m *Manager) StageRelease(tx *ledger.Tx, account, taskID string) (int64, error) {
	amount := m.Locked(taskID, account)
	if amount == 0 {
		return 0, domain.ErrNoStakeLocked
	}
	if err := tx.Transfer(ledger.StakeEscrow(taskID, account), account, domain.HIRE, amount, taskID, "stake release"); err != nil {
		return 0, err
	}
	return amount, nil
}

// SlashResult reports where a slashed stake went.
type SlashResult struct {
	Returned   int64
	ToPoster   int64
	ToResolver int64
	Burned     int64
}

// StageSlash stages a slash of the locked stake at slashBps. The retained
// portion returns to the staker; the slashed portion is split per the
// configured 60/20/20 default between poster, resolver, and burn. Integer
// remainders stay with the poster share.
func (m *Manager) StageSlash(tx *ledger.Tx, account, taskID, poster, resolver string, slashBps int64) (SlashResult, error) {
	total := m.Locked(taskID, account)
	if total == 0 {
		return SlashResult{}, domain.ErrNoStakeLocked
	}
	slashed := total * slashBps / 10000
	res := SlashResult{
		Returned:   total - slashed,
		ToResolver: slashed * m.config.Split.ResolverBps / 10000,
		Burned:     slashed * m.config.Split.BurnBps / 10000,
	}
	res.ToPoster = slashed - res.ToResolver - res.Burned

	esc := ledger.StakeEscrow(taskID, account)
	if err := tx.Transfer(esc, account, domain.HIRE, res.Returned, taskID, "stake partial return"); err != nil {
		return SlashResult{}, err
	}
	if err := tx.Transfer(esc, poster, domain.HIRE, res.ToPoster, taskID, "slash to poster"); err != nil {
		return SlashResult{}, err
	}
	if err := tx.Transfer(esc, resolver, domain.HIRE, res.ToResolver, taskID, "slash to resolver"); err != nil {
		return SlashResult{}, err
	}
	if err := tx.Burn(esc, domain.HIRE, res.Burned, taskID, "slash burn"); err != nil {
		return SlashResult{}, err
	}
	return res, nil
}

// ─── Post-commit index updates ──────────────────────────────────────────────

// AppliedLock records a committed lock in the index.
func (m *Manager) AppliedLock(taskID, account string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[taskID] == nil {
		m.locked[taskID] = make(map[string]int64)
	}
	m.locked[taskID][account] = amount
}

// AppliedRelease clears a committed release or slash from the index.
func (m *Manager) AppliedRelease(taskID, account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked[taskID], account)
	if len(m.locked[taskID]) == 0 {
		delete(m.locked, taskID)
	}
}
