// Package scheduler runs the daemon's background sweeps. The only sweep
// today is auto-approval: submitted tasks whose approval timeout has
// elapsed are settled on the poster's behalf so worker payouts never
// depend on an absent poster.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mrmrsevennine/clawhire-sub000/internal/app/market"
	"github.com/mrmrsevennine/clawhire-sub000/internal/domain"
)

// SweeperAccount is the caller identity the sweeper settles under.
const SweeperAccount = "sys:sweeper"

// Config controls the sweep loop.
type Config struct {
	Interval time.Duration // how often to scan
	Window   time.Duration // engine auto-approve window (filter only)
}

// DefaultConfig returns the reference sweep interval.
func DefaultConfig(window time.Duration) Config {
	return Config{Interval: time.Minute, Window: window}
}

// Sweeper periodically settles overdue submitted tasks.
type Sweeper struct {
	mu     sync.Mutex
	config Config
	engine *market.Engine
	clock  func() time.Time

	totalApproved int64
	totalErrors   int64
}

// NewSweeper creates a sweeper over the engine.
func NewSweeper(cfg Config, e *market.Engine) *Sweeper {
	return &Sweeper{config: cfg, engine: e, clock: time.Now}
}

// SetClock overrides the time source (tests).
func (s *Sweeper) SetClock(clock func() time.Time) { s.clock = clock }

// Run starts the sweep loop. Call in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(s.clock())
		}
	}
}

// SweepOnce approves every submitted task whose auto-approve window has
// elapsed at now, and returns how many settled.
func (s *Sweeper) SweepOnce(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var approved int
	for _, t := range s.engine.Tasks(domain.TaskSubmitted) {
		if now.Sub(t.SubmittedAt) <= s.config.Window {
			continue
		}
		_, err := s.engine.ApproveTask(SweeperAccount, t.ID, now)
		switch {
		case err == nil:
			approved++
			s.totalApproved++
			log.Printf("[sweeper] task %s auto-approved", t.ID)
		case errors.Is(err, domain.ErrAutoApproveNotDue),
			errors.Is(err, domain.ErrTaskNotSubmitted):
			// Settled or disputed since we listed it.
		default:
			s.totalErrors++
			log.Printf("[sweeper] task %s: %v", t.ID, err)
		}
	}
	return approved
}

// Stats reports sweep counters.
type Stats struct {
	TotalApproved int64 `json:"total_approved"`
	TotalErrors   int64 `json:"total_errors"`
}

// Stats returns the sweep counters.
func (s *Sweeper) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TotalApproved: s.totalApproved, TotalErrors: s.totalErrors}
}
