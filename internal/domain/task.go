// Package domain holds the pure marketplace types shared across the engine.
// A Task is a unit of paid work that flows through the marketplace:
// create → bid/claim → submit → approve (or dispute → resolve) → settle.
// No infrastructure dependencies live here.
package domain

import "time"

// Asset identifies a fungible balance kind. Amounts are int64 minor units
// (fixed point); the engine never touches floating point for money.
type Asset string

const (
	// USDC is the settlement asset bounties are posted and paid in.
	USDC Asset = "USDC"
	// HIRE is the network token used for stakes, mining, and revenue share.
	HIRE Asset = "HIRE"
)

// TaskStatus tracks the task lifecycle.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "OPEN"
	TaskClaimed   TaskStatus = "CLAIMED"
	TaskSubmitted TaskStatus = "SUBMITTED"
	TaskApproved  TaskStatus = "APPROVED"
	TaskDisputed  TaskStatus = "DISPUTED"
	TaskRefunded  TaskStatus = "REFUNDED"
	TaskCancelled TaskStatus = "CANCELLED"
)

// TaskType categorizes how a task settles.
type TaskType string

const (
	// TaskStandard goes through the full claim/submit/approve lifecycle.
	TaskStandard TaskType = "STANDARD"
	// TaskFlash settles atomically on the first submission matching the
	// pre-committed result hash. No claim, no stake.
	TaskFlash TaskType = "FLASH"
)

// Bid is a worker's offer on an open task.
type Bid struct {
	Bidder        string        `json:"bidder"`
	Price         int64         `json:"price"`
	EstimatedTime time.Duration `json:"estimated_time"`
	PlacedAt      time.Time     `json:"placed_at"`
	Accepted      bool          `json:"accepted"`
}

// Task is a bounty posted to the marketplace.
type Task struct {
	ID                 string     `json:"id"`
	Poster             string     `json:"poster"`
	Worker             string     `json:"worker,omitempty"` // empty until claimed
	Type               TaskType   `json:"type"`
	Status             TaskStatus `json:"status"`
	Description        string     `json:"description,omitempty"`
	Bounty             int64      `json:"bounty"`       // USDC locked at creation
	AgreedPrice        int64      `json:"agreed_price"` // final price; defaults to Bounty
	DeliverableHash    string     `json:"deliverable_hash,omitempty"`
	ExpectedResultHash string     `json:"expected_result_hash,omitempty"` // flash tasks only

	// Fork accounting. Depth is bounded to two levels: a task with a
	// parent can never itself become a parent.
	ParentTaskID string   `json:"parent_task_id,omitempty"`
	ChildTaskIDs []string `json:"child_task_ids,omitempty"`

	// Bids keyed by bidder account. A re-bid replaces the previous offer.
	Bids map[string]*Bid `json:"bids,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	ClaimedAt   time.Time `json:"claimed_at,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal returns true once the task has settled and can only be queried.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskApproved || t.Status == TaskRefunded || t.Status == TaskCancelled
}

// Succeeded reports whether the task reached its successful terminal state.
func (t *Task) Succeeded() bool {
	return t.Status == TaskApproved
}

// Bid returns the active bid from bidder, or nil.
func (t *Task) Bid(bidder string) *Bid {
	if t.Bids == nil {
		return nil
	}
	return t.Bids[bidder]
}

// Clone returns a deep copy safe to hand outside the engine lock.
func (t *Task) Clone() *Task {
	cp := *t
	if t.ChildTaskIDs != nil {
		cp.ChildTaskIDs = append([]string(nil), t.ChildTaskIDs...)
	}
	if t.Bids != nil {
		cp.Bids = make(map[string]*Bid, len(t.Bids))
		for k, b := range t.Bids {
			bc := *b
			cp.Bids[k] = &bc
		}
	}
	return &cp
}
