// Package revenue splits incoming fee revenue between stakers, treasury,
// and burn, and tracks per-staker accrual with a reward-per-token
// accumulator: a monotonic running total of reward per staked unit plus a
// per-account checkpoint (rewardDebt). Accrual never loops over stakers.
//
// All arithmetic is integer fixed point at 1e12 precision; division dust
// is routed to the treasury so no value strands in an unreachable account.
package revenue

import (
	"fmt"
	"sync"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Precision scales the reward-per-token accumulator.
const Precision = 1_000_000_000_000

// Config controls the revenue split in basis points.
type Config struct {
	TreasuryBps int64
	BurnBps     int64
}

// DefaultConfig returns the reference 30/20/50 treasury/burn/staker split.
func DefaultConfig() Config {
	return Config{TreasuryBps: 3000, BurnBps: 2000}
}

// Validate rejects splits that exceed 10000 bps.
func (c Config) Validate() error {
	if c.TreasuryBps < 0 || c.BurnBps < 0 {
		return domain.ErrInvalidBps
	}
	if c.BurnBps > 5000 {
		return domain.ErrBurnBpsTooHigh
	}
	if c.TreasuryBps+c.BurnBps > 10000 {
		return domain.ErrInvalidBps
	}
	return nil
}

// Position is one account's staking position in the revenue pool.
type Position struct {
	Staked           int64 `json:"staked"`            // HIRE in the pool
	RewardDebt       int64 `json:"reward_debt"`       // accumulator checkpoint (scaled)
	AccruedUnclaimed int64 `json:"accrued_unclaimed"` // USDC settled but not yet claimed
}

// Totals is a snapshot of pool-wide counters.
type Totals struct {
	TotalStaked      int64 `json:"total_staked"`
	TotalDistributed int64 `json:"total_distributed"`
	TotalToTreasury  int64 `json:"total_to_treasury"`
	TotalBurned      int64 `json:"total_burned"`
	RewardPerToken   int64 `json:"reward_per_token"` // scaled by Precision
}

// State is the full persistable pool state: the counters plus every
// staker's position. Totals alone cannot rebuild the pool — restoring a
// nonzero TotalStaked with no positions would accrue revenue to nobody.
type State struct {
	Totals    Totals              `json:"totals"`
	Positions map[string]Position `json:"positions,omitempty"`
}

// Distributor owns the staking pool accounting.
type Distributor struct {
	mu        sync.RWMutex
	config    Config
	positions map[string]*Position
	totals    Totals
}

// NewDistributor creates an empty pool.
func NewDistributor(cfg Config) *Distributor {
	return &Distributor{config: cfg, positions: make(map[string]*Position)}
}

// Position returns a copy of account's position.
func (d *Distributor) Position(account string) Position {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.positions[account]; ok {
		return *p
	}
	return Position{}
}

// Totals returns a copy of the pool-wide counters.
func (d *Distributor) Totals() Totals {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.totals
}

// Snapshot returns the full pool state, positions included.
func (d *Distributor) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := State{Totals: d.totals, Positions: make(map[string]Position, len(d.positions))}
	for acct, p := range d.positions {
		s.Positions[acct] = *p
	}
	return s
}

// Restore force-sets the pool state when reloading from disk.
func (d *Distributor) Restore(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totals = s.Totals
	d.positions = make(map[string]*Position, len(s.Positions))
	for acct, p := range s.Positions {
		cp := p
		d.positions[acct] = &cp
	}
}

// pending returns reward earned since the position's last checkpoint.
func (d *Distributor) pending(p *Position) int64 {
	return p.Staked * (d.totals.RewardPerToken - p.RewardDebt) / Precision
}

// settle folds pending reward into AccruedUnclaimed and re-checkpoints.
func (d *Distributor) settle(p *Position) {
	p.AccruedUnclaimed += d.pending(p)
	p.RewardDebt = d.totals.RewardPerToken
}

// Accrued returns account's claimable USDC (settled plus pending).
func (d *Distributor) Accrued(account string) int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.positions[account]
	if !ok {
		return 0
	}
	return p.AccruedUnclaimed + d.pending(p)
}

// Stake moves amount HIRE from account into the staking pool.
func (d *Distributor) Stake(tx *ledger.Tx, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("stake %d: %w", amount, domain.ErrInvalidAmount)
	}
	if err := tx.Transfer(account, ledger.AccountStakingPool, domain.HIRE, amount, "", "revenue pool stake"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.positions[account]
	if !ok {
		p = &Position{RewardDebt: d.totals.RewardPerToken}
		d.positions[account] = p
	}
	d.settle(p)
	p.Staked += amount
	d.totals.TotalStaked += amount
	return nil
}

// Unstake returns amount HIRE from the pool to account. Accrued rewards
// stay claimable.
func (d *Distributor) Unstake(tx *ledger.Tx, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("unstake %d: %w", amount, domain.ErrInvalidAmount)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.positions[account]
	if !ok || p.Staked < amount {
		return domain.ErrNothingStaked
	}
	if err := tx.Transfer(ledger.AccountStakingPool, account, domain.HIRE, amount, "", "revenue pool unstake"); err != nil {
		return err
	}
	d.settle(p)
	p.Staked -= amount
	d.totals.TotalStaked -= amount
	return nil
}

// Split reports where one distribution went.
type Split struct {
	ToStakers  int64 `json:"to_stakers"`
	ToTreasury int64 `json:"to_treasury"`
	Burned     int64 `json:"burned"`
}

// Distribute splits amount USDC (already held by `from`) between the
// staking pool, treasury, and burn. With nothing staked the staker share
// redirects to treasury. Accumulator dust also goes to treasury.
func (d *Distributor) Distribute(tx *ledger.Tx, from string, amount int64) (Split, error) {
	if amount <= 0 {
		return Split{}, fmt.Errorf("distribute %d: %w", amount, domain.ErrInvalidAmount)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	sp := Split{
		ToTreasury: amount * d.config.TreasuryBps / 10000,
		Burned:     amount * d.config.BurnBps / 10000,
	}
	sp.ToStakers = amount - sp.ToTreasury - sp.Burned

	if d.totals.TotalStaked == 0 {
		sp.ToTreasury += sp.ToStakers
		sp.ToStakers = 0
	}

	var delta, dust int64
	if sp.ToStakers > 0 {
		delta = sp.ToStakers * Precision / d.totals.TotalStaked
		// value actually reachable by stakers at this accumulator step
		reachable := delta * d.totals.TotalStaked / Precision
		dust = sp.ToStakers - reachable
		sp.ToStakers = reachable
	}

	// Stage every movement before touching the accumulator, so a rejected
	// command leaves pool state untouched.
	if err := tx.Transfer(from, ledger.AccountStakingPool, domain.USDC, sp.ToStakers, "", "revenue to stakers"); err != nil {
		return Split{}, err
	}
	if err := tx.Transfer(from, ledger.AccountTreasury, domain.USDC, sp.ToTreasury+dust, "", "revenue to treasury"); err != nil {
		return Split{}, err
	}
	if err := tx.Burn(from, domain.USDC, sp.Burned, "", "revenue burn"); err != nil {
		return Split{}, err
	}
	sp.ToTreasury += dust

	d.totals.RewardPerToken += delta
	d.totals.TotalDistributed += amount
	d.totals.TotalToTreasury += sp.ToTreasury
	d.totals.TotalBurned += sp.Burned
	return sp, nil
}

// Claim pays account's accrued USDC out of the pool and zeroes it.
// ErrNoRewards if nothing has accrued.
func (d *Distributor) Claim(tx *ledger.Tx, account string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.positions[account]
	if !ok {
		return 0, domain.ErrNoRewards
	}
	d.settle(p)
	if p.AccruedUnclaimed == 0 {
		return 0, domain.ErrNoRewards
	}
	amount := p.AccruedUnclaimed
	if err := tx.Transfer(ledger.AccountStakingPool, account, domain.USDC, amount, "", "reward claim"); err != nil {
		return 0, err
	}
	p.AccruedUnclaimed = 0
	return amount, nil
}
