package market

import (
	"log"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/ledger"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
	"github.com/mrmrsevennine/clawhire-sub000/internal/infra/metrics"
)

// Stake moves the caller's HIRE into the revenue-share pool.
func (e *Engine) Stake(caller string, amount int64, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	tx := e.ledger.Begin("stake", now)
	if err := e.revenue.Stake(tx, caller, amount); err != nil {
		return nil, err
	}
	entries := tx.Commit()
	metrics.PoolStaked.Add(float64(amount))
	ev := []domain.Event{newEvent(domain.EventStakeLocked, "", caller, amount, domain.HIRE, now)}
	return &Result{Events: ev, Journal: entries}, e.persist(entries)
}

// Unstake returns pool HIRE to the caller. Accrued rewards stay claimable.
func (e *Engine) Unstake(caller string, amount int64, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	tx := e.ledger.Begin("unstake", now)
	if err := e.revenue.Unstake(tx, caller, amount); err != nil {
		return nil, err
	}
	entries := tx.Commit()
	metrics.PoolStaked.Sub(float64(amount))
	ev := []domain.Event{newEvent(domain.EventStakeReleased, "", caller, amount, domain.HIRE, now)}
	return &Result{Events: ev, Journal: entries}, e.persist(entries)
}

// DistributeRevenue splits accumulated platform fees between the staker
// pool, treasury, and burn. Owner only — it spends the fee account.
func (e *Engine) DistributeRevenue(caller string, amount int64, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()
	if caller != e.config.Owner {
		return nil, domain.ErrOnlyOwner
	}

	tx := e.ledger.Begin("distributeRevenue", now)
	split, err := e.revenue.Distribute(tx, ledger.AccountFeeRecipient, amount)
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()

	log.Printf("[market] revenue %d distributed: %d stakers / %d treasury / %d burned",
		amount, split.ToStakers, split.ToTreasury, split.Burned)
	metrics.RevenueDistributed.Add(float64(amount))
	ev := []domain.Event{newEvent(domain.EventRevenueShared, "", caller, amount, domain.USDC, now)}
	return &Result{Events: ev, Journal: entries}, e.persist(entries)
}

// ClaimRewards pays out the caller's accrued revenue share.
func (e *Engine) ClaimRewards(caller string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	tx := e.ledger.Begin("claimRewards", now)
	amount, err := e.revenue.Claim(tx, caller)
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()
	ev := []domain.Event{newEvent(domain.EventRewardsClaimed, "", caller, amount, domain.USDC, now)}
	return &Result{Events: ev, Journal: entries}, e.persist(entries)
}

// ─── Dead-man's-switch surface ──────────────────────────────────────────────

// Heartbeat resets the abandonment timer. Owner only.
func (e *Engine) Heartbeat(caller string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()
	if err := e.deadman.Heartbeat(caller, now); err != nil {
		return nil, err
	}
	ev := []domain.Event{newEvent(domain.EventHeartbeat, "", caller, 0, "", now)}
	return &Result{Events: ev}, e.persist(nil)
}

// EmergencyDistribute arms the one-shot emergency distribution once the
// abandonment window has elapsed. Callable by anyone.
func (e *Engine) EmergencyDistribute(caller string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()
	if err := e.deadman.Trigger(now); err != nil {
		return nil, err
	}
	log.Printf("[market] emergency distribution armed by %s", caller)
	ev := []domain.Event{newEvent(domain.EventEmergencyArmed, "", caller, 0, "", now)}
	return &Result{Events: ev}, e.persist(nil)
}

// ClaimEmergency pays the caller's pro-rata share of the snapshotted
// vault. One shot per account.
func (e *Engine) ClaimEmergency(caller string, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	tx := e.ledger.Begin("claimEmergency", now)
	share, err := e.deadman.StageClaim(tx, caller)
	if err != nil {
		return nil, err
	}
	entries := tx.Commit()
	ev := []domain.Event{newEvent(domain.EventEmergencyClaimed, "", caller, share.USDC, domain.USDC, now)}
	return &Result{Events: ev, Journal: entries}, e.persist(entries)
}

// RecoverTokens withdraws vault funds to the owner. Blocked once the
// switch has fired.
func (e *Engine) RecoverTokens(caller string, asset domain.Asset, amount int64, now time.Time) (*Result, error) {
	e.lock()
	defer e.unlock()

	tx := e.ledger.Begin("recoverTokens", now)
	if err := e.deadman.StageRecover(tx, caller, asset, amount); err != nil {
		return nil, err
	}
	entries := tx.Commit()
	return &Result{Journal: entries}, e.persist(entries)
}
