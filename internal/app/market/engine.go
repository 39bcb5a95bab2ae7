// Package market implements the task marketplace state machine. The
// Engine is the single serialization point: every command takes the
// engine lock, validates against the ledger and stake manager, stages all
// balance movements on one ledger transaction, and commits only if every
// precondition passed. A failed command mutates nothing.
//
// Time never comes from a wall clock. Every time-sensitive command takes
// an explicit `now`, so tests drive the dispute window, auto-approve
// timeout, and abandonment window deterministically.
package market

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/deadman"
	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/app/mining"
	"github.com/mrmrsevennine/clawhire-sub000/internal/app/revenue"
	"github.com/mrmrsevennine/clawhire-sub000/internal/app/stake"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Config holds the marketplace economic parameters.
type Config struct {
	Owner             string        // admin account (heartbeat, recovery, faucet)
	Resolver          string        // dispute arbiter account
	FeeBps            int64         // platform fee on settlement
	MaxFeeBps         int64         // admin guard rail
	OrchestratorBps   int64         // orchestrator cut of a subtask's price
	DisputeSlashBps   int64         // worker stake slashed on a lost dispute
	DisputePosterBps  int64         // poster share of a disputed price
	DisputeWindow     time.Duration // poster may dispute within this after submission
	AutoApproveWindow time.Duration // anyone may approve after this
	FaucetEnabled     bool          // dev-only owner mint

	Stake   stake.Config
	Revenue revenue.Config
	Mining  mining.Config
}

// DefaultConfig returns the reference parameters: 2.5% platform fee, 10%
// orchestrator fee, 50% dispute slash, 70/30 dispute split.
func DefaultConfig() Config {
	return Config{
		Owner:             "owner",
		Resolver:          "resolver",
		FeeBps:            250,
		MaxFeeBps:         1000,
		OrchestratorBps:   1000,
		DisputeSlashBps:   5000,
		DisputePosterBps:  7000,
		DisputeWindow:     7 * 24 * time.Hour,
		AutoApproveWindow: 14 * 24 * time.Hour,
		Stake:             stake.DefaultConfig(),
		Revenue:           revenue.DefaultConfig(),
		Mining:            mining.DefaultConfig(),
	}
}

// Validate rejects configurations before any engine is built with them.
func (c Config) Validate() error {
	if c.FeeBps < 0 || c.FeeBps > c.MaxFeeBps {
		return fmt.Errorf("fee %d bps, max %d: %w", c.FeeBps, c.MaxFeeBps, domain.ErrFeeTooHigh)
	}
	if c.OrchestratorBps < 0 || c.OrchestratorBps > 10000 ||
		c.DisputeSlashBps < 0 || c.DisputeSlashBps > 10000 ||
		c.DisputePosterBps < 0 || c.DisputePosterBps > 10000 {
		return domain.ErrInvalidBps
	}
	if err := c.Stake.Validate(); err != nil {
		return err
	}
	return c.Revenue.Validate()
}

// Store is the persistence collaborator. The engine writes through after
// every successful command; reads-after-writes are consistent because the
// engine is the single writer.
type Store interface {
	SaveTask(t *domain.Task) error
	AppendJournal(entries []domain.JournalEntry) error
	SaveEngineState(cp Checkpoint) error
}

// Checkpoint is everything the engine persists besides tasks and the
// journal: counters and indexes that cannot be rebuilt from either.
type Checkpoint struct {
	Mining  mining.State                `json:"mining"`
	Revenue revenue.State               `json:"revenue"`
	Deadman deadman.State               `json:"deadman"`
	Stakes  map[string]map[string]int64 `json:"stakes,omitempty"`
	Minted  map[domain.Asset]int64      `json:"minted,omitempty"`
	Burned  map[domain.Asset]int64      `json:"burned,omitempty"`
}

// Engine is the marketplace state machine.
type Engine struct {
	mu      sync.Mutex // global command serialization point
	config  Config
	ledger  *ledger.Ledger
	stakes  *stake.Manager
	revenue *revenue.Distributor
	mining  *mining.Emitter
	deadman *deadman.Monitor
	tasks   map[string]*domain.Task
	store   Store // nil means in-memory only
}

// New builds an engine from config. startedAt primes the dead-man's-switch.
func New(cfg Config, startedAt time.Time) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := ledger.New()
	e := &Engine{
		config:  cfg,
		ledger:  l,
		stakes:  stake.NewManager(cfg.Stake),
		revenue: revenue.NewDistributor(cfg.Revenue),
		mining:  mining.NewEmitter(cfg.Mining),
		deadman: deadman.NewMonitor(deadman.Config{Owner: cfg.Owner, Window: deadman.DefaultWindow}, l, startedAt),
		tasks:   make(map[string]*domain.Task),
	}
	return e, nil
}

// SetStore attaches the persistence collaborator.
func (e *Engine) SetStore(s Store) { e.store = s }

// Checkpoint snapshots the persisted engine state. Safe to call with or
// without the engine lock: every sub-service guards its own state.
func (e *Engine) Checkpoint() Checkpoint {
	minted, burned := e.ledger.SupplySnapshot()
	return Checkpoint{
		Mining:  e.mining.Snapshot(),
		Revenue: e.revenue.Snapshot(),
		Deadman: e.deadman.Snapshot(),
		Stakes:  e.stakes.Snapshot(),
		Minted:  minted,
		Burned:  burned,
	}
}

// RestoreCheckpoint reloads a persisted checkpoint into the engine:
// mining and revenue counters, staker positions, the stake lock index,
// the dead-man's-switch state with its claimed set, and the supply
// counters. Balances and tasks are reloaded separately from the store.
func (e *Engine) RestoreCheckpoint(cp Checkpoint) {
	e.lock()
	defer e.unlock()
	e.mining.Restore(cp.Mining)
	e.revenue.Restore(cp.Revenue)
	e.deadman.Restore(cp.Deadman)
	e.stakes.Restore(cp.Stakes)
	e.ledger.RestoreSupply(cp.Minted, cp.Burned)
}

// RestoreBalances reloads account balances reconstructed from the journal.
func (e *Engine) RestoreBalances(balances map[string]map[domain.Asset]int64) {
	e.lock()
	defer e.unlock()
	for account, bals := range balances {
		for asset, amount := range bals {
			e.ledger.RestoreBalance(account, asset, amount)
		}
	}
}

// RestoreTasks reloads persisted task records into the engine.
func (e *Engine) RestoreTasks(tasks []*domain.Task) {
	e.lock()
	defer e.unlock()
	for _, t := range tasks {
		e.tasks[t.ID] = t
	}
}

// CheckConservation verifies that for each asset the sum of all account
// balances equals minted minus burned. A mismatch means the restored
// state is corrupt.
func (e *Engine) CheckConservation() error {
	for _, asset := range []domain.Asset{domain.USDC, domain.HIRE} {
		var sum int64
		for _, v := range e.ledger.Accounts(asset) {
			sum += v
		}
		if supply := e.ledger.TotalSupply(asset); sum != supply {
			return fmt.Errorf("%s: account balances sum to %d, supply is %d", asset, sum, supply)
		}
	}
	return nil
}

// SetAbandonmentWindow overrides the dead-man's-switch window.
func (e *Engine) SetAbandonmentWindow(w time.Duration, startedAt time.Time) {
	e.deadman = deadman.NewMonitor(deadman.Config{Owner: e.config.Owner, Window: w}, e.ledger, startedAt)
}

func (e *Engine) lock()   { e.mu.Lock() }
func (e *Engine) unlock() { e.mu.Unlock() }

// Result is what a successful command returns.
type Result struct {
	Task    *domain.Task          `json:"task,omitempty"`
	Events  []domain.Event        `json:"events"`
	Journal []domain.JournalEntry `json:"journal,omitempty"`
}

func newEvent(kind domain.EventKind, taskID, account string, amount int64, asset domain.Asset, now time.Time) domain.Event {
	return domain.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		TaskID:    taskID,
		Account:   account,
		Amount:    amount,
		Asset:     asset,
		Timestamp: now,
	}
}

// persist writes mutated tasks, journal entries, and engine state through
// to the store. In-memory state is already applied; a storage failure
// surfaces to the caller so the operator can repair the store before the
// next restart reloads from it.
func (e *Engine) persist(entries []domain.JournalEntry, tasks ...*domain.Task) error {
	if e.store == nil {
		return nil
	}
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if err := e.store.SaveTask(t); err != nil {
			return fmt.Errorf("save task %s: %w", t.ID, err)
		}
	}
	if len(entries) > 0 {
		if err := e.store.AppendJournal(entries); err != nil {
			return fmt.Errorf("append journal: %w", err)
		}
	}
	if err := e.store.SaveEngineState(e.Checkpoint()); err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}
	return nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Task returns a copy of the task, or ErrTaskNotFound.
func (e *Engine) Task(id string) (*domain.Task, error) {
	e.lock()
	defer e.unlock()
	t, ok := e.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Tasks returns copies of all tasks with the given status ("" for all).
func (e *Engine) Tasks(status domain.TaskStatus) []*domain.Task {
	e.lock()
	defer e.unlock()
	var out []*domain.Task
	for _, t := range e.tasks {
		if status == "" || t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Balance returns account's balance in asset.
func (e *Engine) Balance(account string, asset domain.Asset) int64 {
	return e.ledger.Balance(account, asset)
}

// LockedStake returns the HIRE account has locked for taskID.
func (e *Engine) LockedStake(taskID, account string) int64 {
	return e.stakes.Locked(taskID, account)
}

// RequiredStake returns the tiered stake for a bounty.
func (e *Engine) RequiredStake(bounty int64) int64 {
	return e.stakes.Required(bounty)
}

// StakerPosition returns account's revenue-share position.
func (e *Engine) StakerPosition(account string) revenue.Position {
	return e.revenue.Position(account)
}

// AccruedRewards returns account's claimable revenue share.
func (e *Engine) AccruedRewards(account string) int64 {
	return e.revenue.Accrued(account)
}

// RevenueTotals returns the pool-wide revenue counters.
func (e *Engine) RevenueTotals() revenue.Totals {
	return e.revenue.Totals()
}

// MiningState returns the emission counters.
func (e *Engine) MiningState() mining.State {
	return e.mining.Snapshot()
}

// DeadmanState returns the dead-man's-switch state.
func (e *Engine) DeadmanState() deadman.State {
	return e.deadman.Snapshot()
}

// IsAbandoned reports whether the abandonment window has elapsed at now.
func (e *Engine) IsAbandoned(now time.Time) bool {
	return e.deadman.IsAbandoned(now)
}

// Faucet mints dev balances. Owner only, and only when enabled in config.
func (e *Engine) Faucet(caller, account string, asset domain.Asset, amount int64, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()
	if !e.config.FaucetEnabled || caller != e.config.Owner {
		return nil, domain.ErrOnlyOwner
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	tx := e.ledger.Begin("faucet", now)
	if err := tx.Mint(account, asset, amount, "", "dev faucet"); err != nil {
		return nil, err
	}
	entries := tx.Commit()
	log.Printf("[market] faucet: %d %s -> %s", amount, asset, account)
	return &Result{Journal: entries}, e.persist(entries)
}
