package domain

import "time"

// EntryType marks one side of a double-entry journal row.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// JournalEntry is one side of a balanced ledger movement. Every transfer
// produces a matched DEBIT/CREDIT pair; mints and burns are single-sided
// against the asset's supply. SUM(debits) == SUM(credits) per transfer is
// the bookkeeping invariant checked by the conservation tests.
type JournalEntry struct {
	ID        string    `json:"id"` // uuid
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"` // command that produced this movement
	EntryType EntryType `json:"entry_type"`
	Account   string    `json:"account"`
	Asset     Asset     `json:"asset"`
	Amount    int64     `json:"amount"`
	TaskID    string    `json:"task_id,omitempty"`
	Memo      string    `json:"memo,omitempty"`
	Balance   int64     `json:"balance"` // account balance after this entry
}
