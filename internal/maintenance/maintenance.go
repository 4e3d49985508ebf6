// Package maintenance runs the boundary jobs: daily/weekly counter
// resets and agent expiry, each on its own cron schedule. Jobs are
// idempotent, so "at most once per boundary" is best-effort.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/store"
)

const (
	defaultDailySchedule  = "0 0 * * *"
	defaultWeeklySchedule = "0 0 * * 1"
	defaultExpirySchedule = "30 0 * * *"
)

// Runner checks the maintenance schedules once per engine tick and
// runs whichever job is due.
type Runner struct {
	stores *store.Stores
	cron   *gronx.Gronx
	logger *slog.Logger

	daily  string
	weekly string
	expiry string
}

func NewRunner(stores *store.Stores, cfg config.MaintenanceConfig, logger *slog.Logger) *Runner {
	r := &Runner{
		stores: stores,
		cron:   gronx.New(),
		logger: logger,
		daily:  cfg.DailyResetSchedule,
		weekly: cfg.WeeklyResetSchedule,
		expiry: cfg.ExpiryCheckSchedule,
	}
	if r.daily == "" || !r.cron.IsValid(r.daily) {
		r.daily = defaultDailySchedule
	}
	if r.weekly == "" || !r.cron.IsValid(r.weekly) {
		r.weekly = defaultWeeklySchedule
	}
	if r.expiry == "" || !r.cron.IsValid(r.expiry) {
		r.expiry = defaultExpirySchedule
	}
	return r
}

// Tick runs every job whose schedule matches the current minute. The
// engine calls this once a minute; gronx matches expressions against
// the minute the reference time falls in.
func (r *Runner) Tick(ctx context.Context, now time.Time) {
	if due, err := r.cron.IsDue(r.weekly, now); err == nil && due {
		r.resetWeekly(ctx)
	} else if due, err := r.cron.IsDue(r.daily, now); err == nil && due {
		// The weekly job already zeroes the daily counter; skip the
		// daily reset on week boundaries.
		r.resetDaily(ctx)
	}
	if due, err := r.cron.IsDue(r.expiry, now); err == nil && due {
		r.expireAgents(ctx, now)
	}
}

func (r *Runner) resetDaily(ctx context.Context) {
	n, err := r.stores.Conversations.ResetDaily(ctx)
	if err != nil {
		r.logger.Error("daily counter reset", "error", err)
		return
	}
	r.logger.Info("daily counters reset", "contacts", n)
}

func (r *Runner) resetWeekly(ctx context.Context) {
	if _, err := r.stores.Conversations.ResetDaily(ctx); err != nil {
		r.logger.Error("daily counter reset", "error", err)
	}
	n, err := r.stores.Conversations.ResetWeekly(ctx)
	if err != nil {
		r.logger.Error("weekly counter reset", "error", err)
		return
	}
	r.logger.Info("weekly counters reset", "contacts", n)
}

func (r *Runner) expireAgents(ctx context.Context, now time.Time) {
	n, err := r.stores.Agents.ExpireOverdue(ctx, now)
	if err != nil {
		r.logger.Error("agent expiry sweep", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("agents expired", "count", n)
	}
}
