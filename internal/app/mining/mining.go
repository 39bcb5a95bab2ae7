// Package mining emits HIRE for completed work. Emission is proportional
// to the USDC value of the task, split 80/20 between worker and poster,
// bounded by a capped pool, and follows a halving schedule: the rate
// halves each time cumulative task value crosses a fixed epoch boundary.
//
// Epoch policy: an epoch is EpochUSDC minor units of cumulative task value
// processed (not HIRE minted). The rate applied to a task is the rate in
// force when the command runs; a boundary crossed by that task takes
// effect from the next call.
package mining

import (
	"fmt"
	"sync"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Config controls the emission schedule.
type Config struct {
	InitialRate int64 // HIRE minted per USDC minor unit at epoch 0
	EpochUSDC   int64 // cumulative task value per epoch
	PoolCap     int64 // max HIRE ever minted by mining
	WorkerBps   int64 // worker share of each emission, in bps
}

// DefaultConfig returns the reference schedule: rate 10 halving per
// 1,000,000 units of work value, 500,000,000 HIRE cap, 80% to the worker.
func DefaultConfig() Config {
	return Config{
		InitialRate: 10,
		EpochUSDC:   1_000_000,
		PoolCap:     500_000_000,
		WorkerBps:   8000,
	}
}

// State is a snapshot of the emitter counters.
type State struct {
	TotalMined    int64 `json:"total_mined"`     // HIRE minted so far
	TotalWorkUSDC int64 `json:"total_work_usdc"` // cumulative task value processed
	CurrentEpoch  int64 `json:"current_epoch"`
	CurrentRate   int64 `json:"current_rate"`
}

// Emitter computes and mints work rewards.
type Emitter struct {
	mu     sync.RWMutex
	config Config
	state  State
}

// NewEmitter creates an emitter at epoch 0.
func NewEmitter(cfg Config) *Emitter {
	return &Emitter{config: cfg, state: State{CurrentRate: cfg.InitialRate}}
}

// Snapshot returns the current counters.
func (e *Emitter) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Restore force-sets the counters when reloading persisted state.
func (e *Emitter) Restore(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

// rateForEpoch halves the initial rate once per epoch, flooring at 0.
func (e *Emitter) rateForEpoch(epoch int64) int64 {
	rate := e.config.InitialRate
	for i := int64(0); i < epoch && rate > 0; i++ {
		rate /= 2
	}
	return rate
}

// Reward reports one emission.
type Reward struct {
	Total    int64 `json:"total"`
	ToWorker int64 `json:"to_worker"`
	ToPoster int64 `json:"to_poster"`
	Rate     int64 `json:"rate"`
}

// StageMint stages HIRE emission for a completed task worth taskValue
// USDC. ErrMiningPoolExhausted if the emission would push the pool past
// its cap; counters are untouched on failure. A zero rate emits nothing
// and succeeds.
func (e *Emitter) StageMint(tx *ledger.Tx, worker, poster, taskID string, taskValue int64) (Reward, error) {
	if taskValue <= 0 {
		return Reward{}, fmt.Errorf("task value %d: %w", taskValue, domain.ErrInvalidAmount)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	r := Reward{Rate: e.state.CurrentRate, Total: taskValue * e.state.CurrentRate}
	if e.state.TotalMined+r.Total > e.config.PoolCap {
		return Reward{}, fmt.Errorf("mined %d + %d exceeds cap %d: %w",
			e.state.TotalMined, r.Total, e.config.PoolCap, domain.ErrMiningPoolExhausted)
	}
	r.ToWorker = r.Total * e.config.WorkerBps / 10000
	r.ToPoster = r.Total - r.ToWorker

	if err := tx.Mint(worker, domain.HIRE, r.ToWorker, taskID, "work mining"); err != nil {
		return Reward{}, err
	}
	if err := tx.Mint(poster, domain.HIRE, r.ToPoster, taskID, "work mining poster share"); err != nil {
		return Reward{}, err
	}

	e.state.TotalMined += r.Total
	e.state.TotalWorkUSDC += taskValue
	if epoch := e.state.TotalWorkUSDC / e.config.EpochUSDC; epoch != e.state.CurrentEpoch {
		e.state.CurrentEpoch = epoch
		e.state.CurrentRate = e.rateForEpoch(epoch)
	}
	return r, nil
}
