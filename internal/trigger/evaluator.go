// Package trigger implements the periodic sweep that inspects every
// active agent/contact pair and turns matching conditions into
// scheduled messages, gated by the frequency throttle and the
// priority arbiter.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/outreach/internal/arbiter"
	"github.com/nextlevelbuilder/outreach/internal/composer"
	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/scheduler"
	"github.com/nextlevelbuilder/outreach/internal/store"
	"github.com/nextlevelbuilder/outreach/internal/throttle"
)

// Evaluator runs one trigger sweep at a time. Contacts are processed
// in parallel by a bounded pool; all agents of one contact run in a
// single goroutine so same-contact work is serialized.
type Evaluator struct {
	stores   *store.Stores
	composer composer.Composer
	sched    *scheduler.Scheduler
	cfg      *config.Config
	logger   *slog.Logger
	workers  int
}

func NewEvaluator(stores *store.Stores, comp composer.Composer, sched *scheduler.Scheduler, cfg *config.Config, logger *slog.Logger) *Evaluator {
	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Evaluator{
		stores:   stores,
		composer: comp,
		sched:    sched,
		cfg:      cfg,
		logger:   logger,
		workers:  workers,
	}
}

// Sweep evaluates every active agent once. Failures are isolated per
// contact: one bad record logs and moves on, never aborts the pass.
func (e *Evaluator) Sweep(ctx context.Context, now time.Time) error {
	throttleCfg, triggerCfg, ranks := e.cfg.Snapshot()
	limits := throttle.NewLimits(throttleCfg.MaxPerDay, throttleCfg.MaxPerWeek, throttleCfg.MinGapHours)
	rules := newRuleSet(triggerCfg)
	arb := arbiter.New(arbiter.NewTable(ranks), e.stores.Conversations)

	agents, err := e.stores.Agents.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		return nil
	}

	byContact := make(map[uuid.UUID][]store.AgentWithContact)
	for _, awc := range agents {
		byContact[awc.Agent.ContactID] = append(byContact[awc.Agent.ContactID], awc)
	}

	e.logger.Debug("trigger sweep started", "agents", len(agents), "contacts", len(byContact))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, group := range byContact {
		g.Go(func() error {
			e.sweepContact(gctx, group, rules, limits, arb, now)
			return nil
		})
	}
	return g.Wait()
}

// sweepContact processes all agents of one contact in order.
func (e *Evaluator) sweepContact(ctx context.Context, group []store.AgentWithContact, rules ruleSet, limits throttle.Limits, arb *arbiter.Arbiter, now time.Time) {
	contactID := group[0].Agent.ContactID
	logger := e.logger.With("contact_id", contactID)

	st, err := e.stores.Conversations.GetOrCreate(ctx, contactID)
	if err != nil {
		logger.Error("load conversation state", "error", err)
		return
	}

	// A contact that cannot be messaged skips rule evaluation outright.
	if verdict := throttle.Check(st, limits, now); !verdict.Allowed {
		logger.Debug("gate closed, skipping contact", "reason", verdict.Reason)
		return
	}

	for _, awc := range group {
		for _, ev := range rules.evaluate(awc.Agent, awc.Contact, st, now) {
			e.handleEvent(ctx, awc, ev, rules.cfg, arb, now, logger)
		}
	}
}

// handleEvent takes one fired event through arbitration, composition,
// and scheduling.
func (e *Evaluator) handleEvent(ctx context.Context, awc store.AgentWithContact, ev Event, cfg config.TriggersConfig, arb *arbiter.Arbiter, now time.Time, logger *slog.Logger) {
	agent := awc.Agent
	logger = logger.With("agent_id", agent.ID, "rule", ev.Rule, "kind", ev.MessageKind)

	if ev.Rule == RuleUpsell {
		since := now.AddDate(0, 0, -cfg.UpsellLookbackDays)
		n, err := e.stores.Messages.CountRecentByKind(ctx, agent.ContactID, store.KindUpsell, since)
		if err != nil {
			logger.Error("upsell lookback", "error", err)
			return
		}
		if n > 0 {
			logger.Debug("upsell suppressed by lookback window", "recent", n)
			return
		}
	}

	decision, err := arb.Arbitrate(ctx, agent.ContactID, agent.ID, agent.Type, ev.MessageKind, now)
	if err != nil {
		logger.Error("arbitration", "error", err)
		return
	}
	if decision == arbiter.Deferred {
		logger.Info("trigger deferred by higher-priority agent")
		e.recordDeferred(ctx, agent, ev)
		return
	}

	history, err := e.stores.Activity.RecentConversation(ctx, agent.ContactID, cfg.ConversationHistLimit)
	if err != nil {
		logger.Warn("load conversation history", "error", err)
		history = nil
	}

	draft, err := e.composer.Compose(ctx, composer.Request{
		Contact:   awc.Contact,
		AgentType: agent.Type,
		Kind:      ev.MessageKind,
		Channel:   ev.Channel,
		Context:   ev.Summary,
		History:   toHistory(history),
	})
	if err != nil {
		// Drop the trigger; a later sweep re-fires if the condition
		// still holds.
		logger.Error("composition failed, dropping trigger", "error", err)
		return
	}

	msg, err := e.sched.Schedule(ctx, scheduler.Request{
		ContactID: agent.ContactID,
		AgentID:   agent.ID,
		Kind:      ev.MessageKind,
		Channel:   ev.Channel,
		Subject:   draft.Subject,
		Body:      draft.Body,
		SendAt:    now,
	})
	if err != nil {
		logger.Error("schedule message", "error", err)
		return
	}
	logger.Info("trigger scheduled", "message_id", msg.ID, "channel", msg.Channel)
}

// recordDeferred is best-effort audit; a failed write never affects
// the arbitration outcome.
func (e *Evaluator) recordDeferred(ctx context.Context, agent store.Agent, ev Event) {
	detail := map[string]string{"rule": ev.Rule, "message_kind": ev.MessageKind}
	for k, v := range ev.Context {
		detail[k] = v
	}
	err := e.stores.Activity.Append(ctx, &store.ActivityRecord{
		ContactID: agent.ContactID,
		AgentID:   &agent.ID,
		Kind:      store.ActivityTriggerDeferred,
		Detail:    detail,
	})
	if err != nil {
		e.logger.Warn("append deferred activity", "contact_id", agent.ContactID, "error", err)
	}
}

func toHistory(entries []store.ConversationEntry) []composer.HistoryEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]composer.HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = composer.HistoryEntry{Role: e.Role, Body: e.Body, At: e.CreatedAt}
	}
	return out
}
