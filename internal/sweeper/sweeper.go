// Package sweeper drives the periodic expiry pass: every tick it asks the
// store to drop messages whose lifetime has lapsed and then removes the
// attachment files those messages referenced. Files are deleted only after
// the database batch committed, so a crash mid-run leaves orphan files on
// disk rather than dangling message rows.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"m5chat/pkg/blob"
	"m5chat/pkg/logger"
	"m5chat/pkg/store"
)

// Sweeper owns the background expiry loop.
type Sweeper struct {
	st       *store.Store
	blobs    *blob.FS
	interval time.Duration
	cron     string
}

// New builds a sweeper ticking every interval. A non-empty cron expression
// replaces the interval schedule entirely.
func New(st *store.Store, blobs *blob.FS, interval time.Duration, cron string) (*Sweeper, error) {
	if cron != "" && !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cron)
	}
	if cron == "" && interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	return &Sweeper{st: st, blobs: blobs, interval: interval, cron: cron}, nil
}

// Start launches the scheduler goroutine. The returned cancel func stops it;
// a run already in flight finishes.
func (s *Sweeper) Start(ctx context.Context) context.CancelFunc {
	ctx2, cancel := context.WithCancel(ctx)
	if s.cron != "" {
		logger.Info("sweep_scheduler_started", "cron", s.cron)
		go s.runCron(ctx2)
	} else {
		logger.Info("sweep_scheduler_started", "interval", s.interval.String())
		go s.runTicker(ctx2)
	}
	return cancel
}

func (s *Sweeper) runTicker(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		case now := <-t.C:
			s.RunOnce(now)
		}
	}
}

// runCron computes the next tick with gronx and sleeps until it. Cron
// scheduling trades the sub-minute precision of the ticker for operator
// control over when sweeps land.
func (s *Sweeper) runCron(ctx context.Context) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(s.cron, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", s.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("sweep_scheduler_stopping")
				return
			}
			continue
		}
		select {
		case <-time.After(time.Until(next)):
			s.RunOnce(time.Now())
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single expiry pass at the given instant. Failures are
// logged, never fatal; the next tick retries whatever remains.
func (s *Sweeper) RunOnce(now time.Time) {
	start := time.Now()
	paths, n, err := s.st.SweepExpired(now)
	if err != nil {
		sweepRuns.WithLabelValues("error").Inc()
		logger.Error("sweep_failed", "error", err)
		return
	}
	removed := 0
	for _, p := range paths {
		if err := s.blobs.Remove(p); err != nil {
			// leave the orphan for the operator; the message row is gone
			logger.Warn("sweep_file_remove_failed", "path", p, "error", err)
			continue
		}
		removed++
	}
	sweepRuns.WithLabelValues("ok").Inc()
	filesRemoved.Add(float64(removed))
	if n > 0 || removed > 0 {
		logger.Info("sweep_completed", "messages", n, "files", removed, "elapsed", time.Since(start).String())
	}
}
