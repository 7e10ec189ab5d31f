// Package sched runs the engine's background sweeps on fixed cron
// schedules: resolving due decisions and settling resolved ones. Sweeps
// communicate only through persisted decision state and are safely
// re-runnable, since schedule intervals and retries can overlap.
package sched

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner wraps a cron scheduler with the process base context.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
}

// NewRunner creates a runner whose jobs receive baseCtx.
func NewRunner(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		baseCtx: baseCtx,
	}
}

// Add schedules a job with a standard 5-field cron spec.
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// Start begins executing scheduled jobs.
func (r *Runner) Start() {
	slog.Info("sweep scheduler started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	slog.Info("sweep scheduler stopped")
}
