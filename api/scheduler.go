/*
scheduler.go - Periodic paid-status recompute

PURPOSE:
  The paid split of a leave request is stamped when it is created. When
  policies, adjustments or probation change later, stamped splits go
  stale until someone recomputes them. This scheduler does that on a
  ticker; the admin /recompute endpoint runs the same pass on demand.

DESIGN:
  - One background goroutine, one ticker
  - RunOnce is serialized; a tick that arrives mid-run waits for it
  - Per-employee failures are logged by the service and don't stop a run
  - Disabled by default (config scheduler.enabled)

USAGE:
  s := NewRecomputeScheduler(svc, logger)
  s.Interval = time.Hour
  s.Start(ctx)
  defer s.Stop()

SEE ALSO:
  - leave/service.go: RecomputeAll / RecomputePaidStatus
  - handlers.go: Recompute endpoint
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Recomputer is the part of leave.Service the scheduler drives.
type Recomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// RunRecord describes the latest recompute pass.
type RunRecord struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Changed    int
	Err        error
}

type RecomputeScheduler struct {
	Recomputer Recomputer
	Logger     *zap.Logger
	Interval   time.Duration
	Enabled    bool

	runMu sync.Mutex // serializes RunOnce
	mu    sync.Mutex
	last  RunRecord

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecomputeScheduler(r Recomputer, logger *zap.Logger) *RecomputeScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeScheduler{
		Recomputer: r,
		Logger:     logger,
		Interval:   time.Hour,
	}
}

// Start launches the background loop. It is a no-op when disabled or
// already running.
func (s *RecomputeScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("recompute scheduler disabled")
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx, s.Interval)

	s.Logger.Info("recompute scheduler started", zap.Duration("interval", s.Interval))
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *RecomputeScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.Logger.Info("recompute scheduler stopped")
}

func (s *RecomputeScheduler) run(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce recomputes every employee's stamped paid splits and returns how
// many requests changed.
func (s *RecomputeScheduler) RunOnce(ctx context.Context) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	rec := RunRecord{StartedAt: time.Now()}
	rec.Changed, rec.Err = s.Recomputer.RecomputeAll(ctx)
	rec.FinishedAt = time.Now()

	s.mu.Lock()
	s.last = rec
	s.mu.Unlock()

	if rec.Err != nil {
		s.Logger.Error("paid status recompute failed", zap.Error(rec.Err))
	} else {
		s.Logger.Info("paid status recompute finished",
			zap.Int("changed", rec.Changed),
			zap.Duration("took", rec.FinishedAt.Sub(rec.StartedAt)))
	}
	return rec.Changed, rec.Err
}

// LastRun returns the most recent pass, zero if none has run.
func (s *RecomputeScheduler) LastRun() RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
