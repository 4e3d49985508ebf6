// Package engine owns the three periodic loops: trigger evaluation,
// dispatch, and maintenance. Each loop runs on its own ticker under
// one errgroup; a context cancel stops all of them.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/dispatch"
	"github.com/nextlevelbuilder/outreach/internal/maintenance"
	"github.com/nextlevelbuilder/outreach/internal/trigger"
)

// maintenanceInterval is how often the cron schedules are checked,
// matching their minute granularity.
const maintenanceInterval = time.Minute

// Engine runs the outreach loops until its context is canceled.
type Engine struct {
	evaluator   *trigger.Evaluator
	dispatcher  *dispatch.Dispatcher
	maintenance *maintenance.Runner
	cfg         *config.Config
	logger      *slog.Logger
}

func New(evaluator *trigger.Evaluator, dispatcher *dispatch.Dispatcher, maint *maintenance.Runner, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		evaluator:   evaluator,
		dispatcher:  dispatcher,
		maintenance: maint,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run blocks until ctx is canceled. Claims abandoned by a previous
// process are recovered before the first sweep.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.dispatcher.RecoverStaleClaims(ctx, time.Now()); err != nil {
		e.logger.Error("stale claim recovery", "error", err)
	}

	triggerEvery := e.cfg.Engine.TriggerIntervalDuration()
	dispatchEvery := e.cfg.Engine.DispatchIntervalDuration()
	e.logger.Info("engine started",
		"trigger_interval", triggerEvery,
		"dispatch_interval", dispatchEvery)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.loop(gctx, "trigger_sweep", triggerEvery, e.evaluator.Sweep)
	})
	g.Go(func() error {
		return e.loop(gctx, "dispatch_sweep", dispatchEvery, e.dispatcher.Sweep)
	})
	g.Go(func() error {
		return e.loop(gctx, "maintenance_tick", maintenanceInterval, func(ctx context.Context, now time.Time) error {
			e.maintenance.Tick(ctx, now)
			return nil
		})
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	e.logger.Info("engine stopped")
	return err
}

// loop runs one sweep immediately, then on every tick. Sweep errors
// are logged and traced, never fatal: the next tick retries.
func (e *Engine) loop(ctx context.Context, name string, every time.Duration, sweep func(context.Context, time.Time) error) error {
	tracer := otel.Tracer("outreach/engine")

	run := func(now time.Time) {
		sctx, span := tracer.Start(ctx, name)
		span.SetAttributes(attribute.String("sweep.interval", every.String()))
		start := time.Now()
		if err := sweep(sctx, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("sweep failed", "sweep", name, "error", err)
		}
		span.SetAttributes(attribute.Int64("sweep.duration_ms", time.Since(start).Milliseconds()))
		span.End()
	}

	run(time.Now())

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			run(now)
		}
	}
}
