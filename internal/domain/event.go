package domain

import "time"

// EventKind names a state transition produced by a command.
type EventKind string

const (
	EventTaskCreated      EventKind = "TASK_CREATED"
	EventBidPlaced        EventKind = "BID_PLACED"
	EventBidAccepted      EventKind = "BID_ACCEPTED"
	EventTaskClaimed      EventKind = "TASK_CLAIMED"
	EventTaskSubmitted    EventKind = "TASK_SUBMITTED"
	EventTaskApproved     EventKind = "TASK_APPROVED"
	EventTaskDisputed     EventKind = "TASK_DISPUTED"
	EventTaskRefunded     EventKind = "TASK_REFUNDED"
	EventTaskCancelled    EventKind = "TASK_CANCELLED"
	EventSubtaskCreated   EventKind = "SUBTASK_CREATED"
	EventParentCompleted  EventKind = "PARENT_COMPLETED"
	EventFlashCompleted   EventKind = "FLASH_COMPLETED"
	EventStakeLocked      EventKind = "STAKE_LOCKED"
	EventStakeReleased    EventKind = "STAKE_RELEASED"
	EventStakeSlashed     EventKind = "STAKE_SLASHED"
	EventRevenueShared    EventKind = "REVENUE_SHARED"
	EventRewardsClaimed   EventKind = "REWARDS_CLAIMED"
	EventWorkMined        EventKind = "WORK_MINED"
	EventHeartbeat        EventKind = "HEARTBEAT"
	EventEmergencyArmed   EventKind = "EMERGENCY_ARMED"
	EventEmergencyClaimed EventKind = "EMERGENCY_CLAIMED"
)

// Event records one state transition. Commands return the events they
// produced so callers (API, CLI, journal) can report what happened.
type Event struct {
	ID        string    `json:"id"` // uuid
	Kind      EventKind `json:"kind"`
	TaskID    string    `json:"task_id,omitempty"`
	Account   string    `json:"account,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Asset     Asset     `json:"asset,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
