// Package ledger implements the double-entry balance ledger.
// Every movement creates matched DEBIT/CREDIT journal entries; mints and
// burns are single-sided against the asset supply. No balance ever goes
// negative, and no operation touches floating point.
//
// Commands stage their movements on a Tx and commit only after every
// precondition has passed, so a failed command leaves no trace.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// Well-known accounts. Escrow balances live in ordinary ledger accounts
// under reserved prefixes, so conservation holds by construction.
const (
	AccountTreasury     = "sys:treasury"
	AccountFeeRecipient = "sys:fees"
	AccountStakingPool  = "pool:staking"
	AccountDeadmanVault = "vault:deadman"
)

// BountyEscrow is the escrow account holding a task's locked bounty.
func BountyEscrow(taskID string) string {
	return "escrow:bounty:" + taskID
}

// StakeEscrow is the escrow account holding one worker's stake for a task.
func StakeEscrow(taskID, account string) string {
	return "escrow:stake:" + taskID + ":" + account
}

// Ledger tracks fungible balances per account and asset.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]map[domain.Asset]int64
	minted   map[domain.Asset]int64
	burned   map[domain.Asset]int64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]map[domain.Asset]int64),
		minted:   make(map[domain.Asset]int64),
		burned:   make(map[domain.Asset]int64),
	}
}

// Balance returns the current balance of account in asset.
func (l *Ledger) Balance(account string, asset domain.Asset) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account][asset]
}

// TotalMinted returns the cumulative mint volume for asset.
func (l *Ledger) TotalMinted(asset domain.Asset) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minted[asset]
}

// TotalBurned returns the cumulative burn volume for asset.
func (l *Ledger) TotalBurned(asset domain.Asset) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.burned[asset]
}

// TotalSupply returns minted minus burned for asset. Because every other
// movement is a balanced transfer, this always equals the sum of all
// account balances in that asset.
func (l *Ledger) TotalSupply(asset domain.Asset) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minted[asset] - l.burned[asset]
}

// Accounts returns every account holding a nonzero balance in asset.
func (l *Ledger) Accounts(asset domain.Asset) map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64)
	for acct, bals := range l.balances {
		if v := bals[asset]; v != 0 {
			out[acct] = v
		}
	}
	return out
}

// SupplySnapshot returns copies of the cumulative mint and burn counters.
func (l *Ledger) SupplySnapshot() (minted, burned map[domain.Asset]int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	minted = make(map[domain.Asset]int64, len(l.minted))
	burned = make(map[domain.Asset]int64, len(l.burned))
	for a, v := range l.minted {
		minted[a] = v
	}
	for a, v := range l.burned {
		burned[a] = v
	}
	return minted, burned
}

// RestoreBalance force-sets a balance. Used only when reloading persisted
// state at startup; never from a command path.
func (l *Ledger) RestoreBalance(account string, asset domain.Asset, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] == nil {
		l.balances[account] = make(map[domain.Asset]int64)
	}
	l.balances[account][asset] = amount
}

// RestoreSupply force-sets the mint and burn counters at startup.
func (l *Ledger) RestoreSupply(minted, burned map[domain.Asset]int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for a, v := range minted {
		l.minted[a] = v
	}
	for a, v := range burned {
		l.burned[a] = v
	}
}

// ─── Staged Transactions ────────────────────────────────────────────────────

type opKind int

const (
	opTransfer opKind = iota
	opMint
	opBurn
)

type op struct {
	kind   opKind
	from   string
	to     string
	asset  domain.Asset
	amount int64
	taskID string
	memo   string
}

// Tx stages ledger movements against effective (pending-adjusted) balances.
// Commit applies everything at once; dropping the Tx discards it.
type Tx struct {
	l       *Ledger
	command string
	now     time.Time
	ops     []op
	pending map[string]map[domain.Asset]int64 // deltas staged so far
}

// Begin opens a staged transaction for one command.
func (l *Ledger) Begin(command string, now time.Time) *Tx {
	return &Tx{
		l:       l,
		command: command,
		now:     now,
		pending: make(map[string]map[domain.Asset]int64),
	}
}

func (tx *Tx) effective(account string, asset domain.Asset) int64 {
	tx.l.mu.RLock()
	base := tx.l.balances[account][asset]
	tx.l.mu.RUnlock()
	return base + tx.pending[account][asset]
}

func (tx *Tx) adjust(account string, asset domain.Asset, delta int64) {
	if tx.pending[account] == nil {
		tx.pending[account] = make(map[domain.Asset]int64)
	}
	tx.pending[account][asset] += delta
}

// Transfer stages an atomic debit+credit. A zero amount is a no-op;
// a negative amount or an overdraft rejects the whole command.
func (tx *Tx) Transfer(from, to string, asset domain.Asset, amount int64, taskID, memo string) error {
	if amount < 0 {
		return fmt.Errorf("transfer %d %s: %w", amount, asset, domain.ErrInvalidAmount)
	}
	if amount == 0 {
		return nil
	}
	if tx.effective(from, asset) < amount {
		return fmt.Errorf("%s has %d %s, need %d: %w",
			from, tx.effective(from, asset), asset, amount, domain.ErrInsufficientBalance)
	}
	tx.adjust(from, asset, -amount)
	tx.adjust(to, asset, amount)
	tx.ops = append(tx.ops, op{opTransfer, from, to, asset, amount, taskID, memo})
	return nil
}

// Mint stages creation of new supply credited to account.
func (tx *Tx) Mint(account string, asset domain.Asset, amount int64, taskID, memo string) error {
	if amount < 0 {
		return fmt.Errorf("mint %d %s: %w", amount, asset, domain.ErrInvalidAmount)
	}
	if amount == 0 {
		return nil
	}
	tx.adjust(account, asset, amount)
	tx.ops = append(tx.ops, op{opMint, "", account, asset, amount, taskID, memo})
	return nil
}

// Burn stages destruction of supply held by account.
func (tx *Tx) Burn(account string, asset domain.Asset, amount int64, taskID, memo string) error {
	if amount < 0 {
		return fmt.Errorf("burn %d %s: %w", amount, asset, domain.ErrInvalidAmount)
	}
	if amount == 0 {
		return nil
	}
	if tx.effective(account, asset) < amount {
		return fmt.Errorf("%s has %d %s, burn %d: %w",
			account, tx.effective(account, asset), asset, amount, domain.ErrInsufficientBalance)
	}
	tx.adjust(account, asset, -amount)
	tx.ops = append(tx.ops, op{opBurn, account, "", asset, amount, taskID, memo})
	return nil
}

// Commit applies all staged movements and returns the journal entries
// they produced, in order.
func (tx *Tx) Commit() []domain.JournalEntry {
	tx.l.mu.Lock()
	defer tx.l.mu.Unlock()

	var entries []domain.JournalEntry
	apply := func(account string, asset domain.Asset, delta int64) int64 {
		if tx.l.balances[account] == nil {
			tx.l.balances[account] = make(map[domain.Asset]int64)
		}
		tx.l.balances[account][asset] += delta
		return tx.l.balances[account][asset]
	}
	entry := func(et domain.EntryType, account string, o op, balance int64) domain.JournalEntry {
		return domain.JournalEntry{
			ID:        uuid.NewString(),
			Timestamp: tx.now,
			Command:   tx.command,
			EntryType: et,
			Account:   account,
			Asset:     o.asset,
			Amount:    o.amount,
			TaskID:    o.taskID,
			Memo:      o.memo,
			Balance:   balance,
		}
	}

	for _, o := range tx.ops {
		switch o.kind {
		case opTransfer:
			entries = append(entries, entry(domain.EntryDebit, o.from, o, apply(o.from, o.asset, -o.amount)))
			entries = append(entries, entry(domain.EntryCredit, o.to, o, apply(o.to, o.asset, o.amount)))
		case opMint:
			tx.l.minted[o.asset] += o.amount
			entries = append(entries, entry(domain.EntryCredit, o.to, o, apply(o.to, o.asset, o.amount)))
		case opBurn:
			tx.l.burned[o.asset] += o.amount
			entries = append(entries, entry(domain.EntryDebit, o.from, o, apply(o.from, o.asset, -o.amount)))
		}
	}
	tx.ops = nil
	return entries
}
