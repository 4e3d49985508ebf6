package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// Effects runs post-delivery side effects off the critical path:
// activity rows, the customer-facing conversation log for sms, and an
// optional embedding hook. Failures here are logged and can never
// touch a message's terminal status.
type Effects struct {
	activity store.ActivityStore
	logger   *slog.Logger

	// EmbedHook, when set, receives every sent body for semantic
	// indexing. Best-effort like everything else here.
	EmbedHook func(ctx context.Context, msg store.ScheduledMessage) error

	queue chan func(ctx context.Context)
	wg    sync.WaitGroup
	stop  context.CancelFunc
}

// NewEffects starts the single background worker draining the effect
// queue. Call Close during shutdown to flush it.
func NewEffects(activity store.ActivityStore, logger *slog.Logger) *Effects {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Effects{
		activity: activity,
		logger:   logger,
		queue:    make(chan func(ctx context.Context), 256),
		stop:     cancel,
	}
	e.wg.Add(1)
	go e.run(ctx)
	return e
}

func (e *Effects) run(ctx context.Context) {
	defer e.wg.Done()
	for fn := range e.queue {
		fn(ctx)
	}
}

// Close drains queued effects and stops the worker.
func (e *Effects) Close() {
	close(e.queue)
	e.wg.Wait()
	e.stop()
}

// enqueue never blocks the dispatcher: a full queue drops the effect
// with a log line instead.
func (e *Effects) enqueue(fn func(ctx context.Context)) {
	select {
	case e.queue <- fn:
	default:
		e.logger.Warn("effect queue full, dropping side effect")
	}
}

// AfterSend records the audit trail for a delivered message.
func (e *Effects) AfterSend(msg store.ScheduledMessage, sentAt time.Time) {
	e.enqueue(func(ctx context.Context) {
		rec := &store.ActivityRecord{
			ContactID: msg.ContactID,
			AgentID:   &msg.AgentID,
			Kind:      store.ActivityMessageSent,
			Detail: map[string]string{
				"message_id": msg.ID.String(),
				"kind":       msg.Kind,
				"channel":    msg.Channel,
			},
			CreatedAt: sentAt,
		}
		if err := e.activity.Append(ctx, rec); err != nil {
			e.logger.Warn("append sent activity", "message_id", msg.ID, "error", err)
		}

		// SMS lands in the customer-facing log so later composer calls
		// see it as conversation history.
		if msg.Channel == store.ChannelSMS {
			entry := &store.ConversationEntry{
				ContactID: msg.ContactID,
				Role:      "agent",
				Body:      msg.Body,
				CreatedAt: sentAt,
			}
			if err := e.activity.AppendConversation(ctx, entry); err != nil {
				e.logger.Warn("append conversation entry", "message_id", msg.ID, "error", err)
			}
		}

		if e.EmbedHook != nil {
			if err := e.EmbedHook(ctx, msg); err != nil {
				e.logger.Warn("embedding hook", "message_id", msg.ID, "error", err)
			}
		}
	})
}

// AfterFailure records the audit trail for a failed delivery.
func (e *Effects) AfterFailure(msg store.ScheduledMessage, reason string) {
	e.enqueue(func(ctx context.Context) {
		rec := &store.ActivityRecord{
			ContactID: msg.ContactID,
			AgentID:   &msg.AgentID,
			Kind:      store.ActivityMessageFailed,
			Detail: map[string]string{
				"message_id": msg.ID.String(),
				"kind":       msg.Kind,
				"channel":    msg.Channel,
				"reason":     reason,
			},
		}
		if err := e.activity.Append(ctx, rec); err != nil {
			e.logger.Warn("append failed activity", "message_id", msg.ID, "error", err)
		}
	})
}
