// Package maintenance runs the periodic housekeeping jobs: sweeping
// expired search cache entries and warning about mutations that have
// waited too long for backend confirmation.
package maintenance

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/recordings"
	"github.com/user/parley/internal/search"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Runner owns the cron ticker for the housekeeping jobs.
type Runner struct {
	cache   *search.Cache
	manager *recordings.Manager
	clk     clock.Clock
	cron    *cron.Cron

	sweepSchedule string
	staleSchedule string
	staleAfter    time.Duration
}

// New creates a Runner. Schedules use cron syntax, including the
// "@every 1m" descriptor form.
func New(cache *search.Cache, manager *recordings.Manager, clk clock.Clock, sweepSchedule, staleSchedule string, staleAfter time.Duration) *Runner {
	return &Runner{
		cache:         cache,
		manager:       manager,
		clk:           clk,
		cron:          cron.New(cron.WithParser(cronParser)),
		sweepSchedule: sweepSchedule,
		staleSchedule: staleSchedule,
		staleAfter:    staleAfter,
	}
}

// Start registers the jobs and starts the cron ticker.
func (r *Runner) Start() error {
	if _, err := r.cron.AddFunc(r.sweepSchedule, r.runSweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", r.sweepSchedule, err)
	}
	if _, err := r.cron.AddFunc(r.staleSchedule, r.runStaleCheck); err != nil {
		return fmt.Errorf("invalid stale-pending schedule %q: %w", r.staleSchedule, err)
	}
	r.cron.Start()
	slog.Info("maintenance jobs scheduled", "sweep", r.sweepSchedule, "stale_pending", r.staleSchedule)
	return nil
}

// Stop stops the cron ticker.
func (r *Runner) Stop() {
	r.cron.Stop()
}

func (r *Runner) runSweep() {
	if removed := r.cache.Sweep(); removed > 0 {
		slog.Debug("swept expired search cache entries", "removed", removed)
	}
}

func (r *Runner) runStaleCheck() {
	for _, p := range r.stalePending() {
		slog.Warn("mutation still awaiting backend confirmation",
			"token", p.Token,
			"kind", string(p.Kind),
			"recording_id", string(p.RecordingID),
			"age", r.clk.Now().Sub(p.At).Round(time.Second))
	}
}

// stalePending returns pending mutations older than the configured
// threshold, oldest first.
func (r *Runner) stalePending() []recordings.PendingMutation {
	cutoff := r.clk.Now().Add(-r.staleAfter)
	var stale []recordings.PendingMutation
	for _, p := range r.manager.Pending() {
		if p.At.Before(cutoff) {
			stale = append(stale, p)
		}
	}
	return stale
}
