// Package metrics provides Prometheus metrics for the marketplace engine:
// counters and gauges for task transitions, escrow, stakes, mining, and
// revenue distribution. Exposed on the API server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksCreated counts created tasks by type.
var TasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "tasks_created_total",
	Help:      "Total tasks created.",
}, []string{"type"})

// TasksClaimed counts task assignments (direct claim or accepted bid).
var TasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "tasks_claimed_total",
	Help:      "Total tasks assigned to a worker.",
})

// TasksApproved counts settled tasks (including flash settlements).
var TasksApproved = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "tasks_approved_total",
	Help:      "Total tasks settled successfully.",
})

// TasksDisputed counts disputes opened.
var TasksDisputed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "tasks_disputed_total",
	Help:      "Total disputes opened.",
})

// TasksCancelled counts cancelled tasks.
var TasksCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "tasks_cancelled_total",
	Help:      "Total tasks cancelled by their poster.",
})

// CommandsTotal counts successfully served commands by name.
var CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "commands_total",
	Help:      "Total commands served successfully.",
}, []string{"command"})

// CommandErrors counts rejected commands by name and rejection reason.
var CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "command_errors_total",
	Help:      "Total commands rejected, by reason.",
}, []string{"command", "reason"})

// ─── Escrow & stakes ────────────────────────────────────────────────────────

// EscrowLocked tracks USDC currently locked in bounty escrow.
var EscrowLocked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "clawhire",
	Name:      "escrow_locked_usdc",
	Help:      "USDC minor units locked in bounty escrow.",
})

// StakeLocked tracks HIRE currently locked as task collateral.
var StakeLocked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "clawhire",
	Name:      "stake_locked_hire",
	Help:      "HIRE minor units locked as task stakes.",
})

// StakeSlashed counts HIRE removed from workers by slashing.
var StakeSlashed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "stake_slashed_hire_total",
	Help:      "HIRE minor units slashed from worker stakes.",
})

// ─── Token economy ──────────────────────────────────────────────────────────

// HireMined counts HIRE emitted for completed work.
var HireMined = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "hire_mined_total",
	Help:      "HIRE minor units emitted by work mining.",
})

// MiningSkipped counts settlements where emission was skipped at the cap.
var MiningSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "mining_skipped_total",
	Help:      "Settlements with emission skipped at the pool cap.",
})

// RevenueDistributed counts USDC routed through revenue distribution.
var RevenueDistributed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "clawhire",
	Name:      "revenue_distributed_usdc_total",
	Help:      "USDC minor units distributed to stakers/treasury/burn.",
})

// PoolStaked tracks HIRE in the revenue-share pool.
var PoolStaked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "clawhire",
	Name:      "revenue_pool_staked_hire",
	Help:      "HIRE minor units staked in the revenue pool.",
})
