package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Every command failure is one of these typed rejections. No command ever
// leaves partial state behind — a failed command is a no-op.

var (
	// Task precondition errors
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskAlreadyExists   = errors.New("task id already exists")
	ErrTaskNotOpen         = errors.New("task is not open")
	ErrTaskNotClaimed      = errors.New("task is not claimed")
	ErrTaskNotSubmitted    = errors.New("task has no submitted deliverable")
	ErrTaskNotDisputed     = errors.New("task is not under dispute")
	ErrTaskNotFlash        = errors.New("task is not a flash task")
	ErrFlashNotClaimable   = errors.New("flash tasks settle on submission, not claim")
	ErrEmptyDeliverable    = errors.New("deliverable hash must not be empty")
	ErrInvalidBounty       = errors.New("bounty must be a positive amount")
	ErrInvalidAmount       = errors.New("amount must be non-negative")
	ErrInvalidPrice        = errors.New("bid price must be a positive amount")
	ErrInvalidResultHash   = errors.New("submitted hash does not match expected result")
	ErrMissingResultHash   = errors.New("flash task requires an expected result hash")
	ErrDisputeWindowClosed = errors.New("dispute window has closed")
	ErrAutoApproveNotDue   = errors.New("auto-approve timeout has not elapsed")

	// Authorization errors (opaque-identifier equality checks)
	ErrOnlyPoster           = errors.New("only the task poster can perform this")
	ErrOnlyWorker           = errors.New("only the assigned worker can perform this")
	ErrOnlyResolver         = errors.New("only the configured resolver can perform this")
	ErrOnlyOwner            = errors.New("only the owner can perform this")
	ErrPosterCannotBid      = errors.New("poster cannot bid on their own task")
	ErrPosterCannotClaim    = errors.New("poster cannot claim their own task")
	ErrNotParentTaskWorker  = errors.New("caller is not the parent task's worker")
	ErrMaxForkDepthExceeded = errors.New("subtask fork depth exceeded")
	ErrNoActiveBid          = errors.New("bidder has no active bid on this task")

	// Resource exhaustion errors
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStake   = errors.New("insufficient HIRE balance for required stake")
	ErrNoStakeLocked       = errors.New("no stake locked for this task")
	ErrNothingStaked       = errors.New("no staking position")
	ErrMiningPoolExhausted = errors.New("mining pool cap would be exceeded")

	// Idempotency errors
	ErrNoRewards             = errors.New("no rewards accrued")
	ErrAlreadyClaimed        = errors.New("emergency share already claimed")
	ErrAlreadyAbandoned      = errors.New("abandonment already triggered")
	ErrEmergencyNotTriggered = errors.New("emergency distribution not triggered")
	ErrNotAbandoned          = errors.New("abandonment window has not elapsed")

	// Configuration errors (admin surface only, validated before mutation)
	ErrInvalidBps     = errors.New("basis points must sum to at most 10000")
	ErrFeeTooHigh     = errors.New("platform fee exceeds maximum")
	ErrBurnBpsTooHigh = errors.New("burn share exceeds maximum")
)

// Reason classifies a command rejection into a stable label. The API
// maps these to HTTP statuses and the error metrics use them directly.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return "not_found"
	case errors.Is(err, ErrTaskAlreadyExists),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrAlreadyAbandoned),
		errors.Is(err, ErrNoRewards):
		return "conflict"
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientStake),
		errors.Is(err, ErrMiningPoolExhausted):
		return "insufficient_funds"
	case errors.Is(err, ErrOnlyPoster),
		errors.Is(err, ErrOnlyWorker),
		errors.Is(err, ErrOnlyResolver),
		errors.Is(err, ErrOnlyOwner),
		errors.Is(err, ErrPosterCannotBid),
		errors.Is(err, ErrPosterCannotClaim),
		errors.Is(err, ErrNotParentTaskWorker):
		return "forbidden"
	default:
		return "precondition"
	}
}
