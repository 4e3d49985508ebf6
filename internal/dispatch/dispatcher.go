// Package dispatch implements the delivery sweep: claim due messages,
// re-check the frequency gate, resolve addresses, send, and record the
// outcome. The claim is an atomic conditional transition so two
// overlapping sweeps can never send the same message twice.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/outreach/internal/channels"
	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/store"
	"github.com/nextlevelbuilder/outreach/internal/throttle"
)

// ErrNoAddress marks a contact without a usable address for the
// message's channel.
var ErrNoAddress = fmt.Errorf("contact has no address for channel")

// Dispatcher drains the due outbox once per sweep.
type Dispatcher struct {
	stores  *store.Stores
	senders *channels.Manager
	effects *Effects
	cfg     *config.Config
	logger  *slog.Logger
	batch   int
	workers int
}

func NewDispatcher(stores *store.Stores, senders *channels.Manager, effects *Effects, cfg *config.Config, logger *slog.Logger) *Dispatcher {
	batch := cfg.Engine.DispatchBatch
	if batch <= 0 {
		batch = 100
	}
	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Dispatcher{
		stores:  stores,
		senders: senders,
		effects: effects,
		cfg:     cfg,
		logger:  logger,
		batch:   batch,
		workers: workers,
	}
}

// Sweep claims up to the batch size of due messages and delivers them
// through a bounded worker pool. All messages for one contact run in
// order on a single goroutine, so the dispatch-time gate check always
// sees the counters from earlier sends in the same pass. Per-message
// failures are recorded on the message itself and never abort the
// pass.
func (d *Dispatcher) Sweep(ctx context.Context, now time.Time) error {
	throttleCfg, _, _ := d.cfg.Snapshot()
	limits := throttle.NewLimits(throttleCfg.MaxPerDay, throttleCfg.MaxPerWeek, throttleCfg.MinGapHours)

	claimed, err := d.stores.Messages.ClaimDue(ctx, now, d.batch)
	if err != nil {
		return fmt.Errorf("claim due messages: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}
	d.logger.Debug("dispatch sweep claimed", "count", len(claimed))

	byContact := make(map[uuid.UUID][]store.ScheduledMessage)
	for _, msg := range claimed {
		byContact[msg.ContactID] = append(byContact[msg.ContactID], msg)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, group := range byContact {
		g.Go(func() error {
			for _, msg := range group {
				d.deliver(gctx, msg, limits, now)
			}
			return nil
		})
	}
	return g.Wait()
}

// deliver takes one claimed message to its terminal state, or back to
// pending when the gate closes.
func (d *Dispatcher) deliver(ctx context.Context, msg store.ScheduledMessage, limits throttle.Limits, now time.Time) {
	logger := d.logger.With("message_id", msg.ID, "contact_id", msg.ContactID, "channel", msg.Channel)

	// The dispatch-time gate check is authoritative: counters may have
	// moved since the trigger sweep scheduled this message.
	st, err := d.stores.Conversations.GetOrCreate(ctx, msg.ContactID)
	if err != nil {
		logger.Error("load conversation state, releasing claim", "error", err)
		d.release(ctx, msg, logger)
		return
	}
	if verdict := throttle.Check(st, limits, now); !verdict.Allowed {
		logger.Info("gate closed at dispatch time, leaving pending", "reason", verdict.Reason)
		d.release(ctx, msg, logger)
		return
	}

	contact, err := d.stores.Contacts.Get(ctx, msg.ContactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("contact does not exist")
			d.fail(ctx, msg, "contact not found", logger)
			return
		}
		// Transient read error: not a delivery failure, try again later.
		logger.Error("resolve contact, releasing claim", "error", err)
		d.release(ctx, msg, logger)
		return
	}
	address := addressFor(*contact, msg.Channel)
	if address == "" {
		logger.Warn("missing address for channel")
		d.fail(ctx, msg, fmt.Sprintf("%v %s", ErrNoAddress, msg.Channel), logger)
		return
	}

	err = d.senders.Send(ctx, msg.Channel, channels.OutboundMessage{
		To:      address,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		logger.Error("send failed", "error", err)
		d.fail(ctx, msg, err.Error(), logger)
		return
	}

	d.recordSent(ctx, msg, now, logger)
}

// recordSent applies the post-send bookkeeping. The terminal
// transition comes first; everything after it is best-effort.
func (d *Dispatcher) recordSent(ctx context.Context, msg store.ScheduledMessage, now time.Time, logger *slog.Logger) {
	if err := d.stores.Messages.MarkSent(ctx, msg.ID, now); err != nil {
		logger.Error("mark sent", "error", err)
		return
	}
	if err := d.stores.Agents.RecordSend(ctx, msg.AgentID, now); err != nil {
		logger.Warn("record agent send", "error", err)
	}
	if err := d.stores.Conversations.RecordSend(ctx, msg.ContactID, now); err != nil {
		logger.Warn("record conversation send", "error", err)
	}

	logger.Info("message sent", "kind", msg.Kind)
	d.effects.AfterSend(msg, now)
}

// fail moves a claimed message to its terminal failed state.
func (d *Dispatcher) fail(ctx context.Context, msg store.ScheduledMessage, reason string, logger *slog.Logger) {
	if err := d.stores.Messages.MarkFailed(ctx, msg.ID, reason); err != nil {
		logger.Error("mark failed", "error", err)
		return
	}
	d.effects.AfterFailure(msg, reason)
}

// release puts a claimed message back for a later pass. Backpressure,
// not an error.
func (d *Dispatcher) release(ctx context.Context, msg store.ScheduledMessage, logger *slog.Logger) {
	if err := d.stores.Messages.Release(ctx, msg.ID); err != nil {
		logger.Error("release claim", "error", err)
	}
}

// RecoverStaleClaims sweeps claims abandoned by a crashed process back
// to pending. Called once at engine start.
func (d *Dispatcher) RecoverStaleClaims(ctx context.Context, now time.Time) error {
	staleBefore := now.Add(-d.cfg.Engine.StaleClaimAfterDuration())
	n, err := d.stores.Messages.ReleaseStale(ctx, staleBefore)
	if err != nil {
		return fmt.Errorf("release stale claims: %w", err)
	}
	if n > 0 {
		d.logger.Warn("recovered stale claims", "count", n)
	}
	return nil
}

func addressFor(c store.Contact, channel string) string {
	switch channel {
	case store.ChannelSMS:
		return c.Phone
	case store.ChannelEmail:
		return c.Email
	default:
		return ""
	}
}
