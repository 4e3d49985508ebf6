package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/composer"
	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/scheduler"
	"github.com/nextlevelbuilder/outreach/internal/store"
	"github.com/nextlevelbuilder/outreach/internal/store/memory"
)

type fakeComposer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeComposer) Compose(ctx context.Context, req composer.Request) (composer.Draft, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return composer.Draft{}, errors.New("upstream unavailable")
	}
	return composer.Draft{Subject: "hello", Body: "composed for " + req.Kind}, nil
}

func (f *fakeComposer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEvaluator(t *testing.T, comp composer.Composer) (*Evaluator, *memory.Store, *store.Stores) {
	t.Helper()
	mem := memory.New()
	stores := mem.Stores()
	logger := testLogger()
	sched := scheduler.New(stores.Messages, logger)
	ev := NewEvaluator(stores, comp, sched, &config.Config{}, logger)
	return ev, mem, stores
}

func pendingMessages(t *testing.T, stores *store.Stores, now time.Time) []store.ScheduledMessage {
	t.Helper()
	msgs, err := stores.Messages.ClaimDue(context.Background(), now.Add(time.Hour), 100)
	if err != nil {
		t.Fatalf("claim due: %v", err)
	}
	return msgs
}

func seedAgent(t *testing.T, stores *store.Stores, mem *memory.Store, agent store.Agent, contact store.Contact) store.Agent {
	t.Helper()
	if contact.ID == uuid.Nil {
		contact.ID = store.GenNewID()
	}
	mem.PutContact(contact)
	agent.ContactID = contact.ID
	if agent.Status == "" {
		agent.Status = store.AgentActive
	}
	if err := stores.Agents.Create(context.Background(), &agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return agent
}

func TestSweepSchedulesFiredTrigger(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	comp := &fakeComposer{}
	ev, mem, stores := newTestEvaluator(t, comp)

	agent := seedAgent(t, stores, mem, store.Agent{
		Type:         "sales",
		AssignedAt:   now.AddDate(0, 0, -1),
		MessagesSent: 1,
	}, store.Contact{Phone: "+15550100"})

	if err := ev.Sweep(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	msgs := pendingMessages(t, stores, now)
	if len(msgs) != 1 {
		t.Fatalf("got %d scheduled messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Kind != store.KindCheckin || msg.Channel != store.ChannelSMS {
		t.Fatalf("got kind=%s channel=%s", msg.Kind, msg.Channel)
	}
	if msg.AgentID != agent.ID {
		t.Fatalf("message attributed to wrong agent")
	}
	if comp.callCount() != 1 {
		t.Fatalf("composer called %d times, want 1", comp.callCount())
	}
}

func TestSweepSkipsGatedContactBeforeComposer(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	comp := &fakeComposer{}
	ev, mem, stores := newTestEvaluator(t, comp)

	agent := seedAgent(t, stores, mem, store.Agent{
		Type:         "sales",
		AssignedAt:   now.AddDate(0, 0, -1),
		MessagesSent: 1,
	}, store.Contact{Phone: "+15550100"})

	// Contact is already at the daily cap.
	for i := 0; i < 2; i++ {
		if err := stores.Conversations.RecordSend(context.Background(), agent.ContactID, now.Add(-20*time.Hour)); err != nil {
			t.Fatalf("record send: %v", err)
		}
	}

	if err := ev.Sweep(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if comp.callCount() != 0 {
		t.Fatalf("composer called for gated contact")
	}
	if msgs := pendingMessages(t, stores, now); len(msgs) != 0 {
		t.Fatalf("got %d messages for gated contact, want 0", len(msgs))
	}
}

func TestSweepDefersLowerPriorityTrigger(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	comp := &fakeComposer{}
	ev, mem, stores := newTestEvaluator(t, comp)

	contact := store.Contact{ID: store.GenNewID(), Phone: "+15550100"}
	low := seedAgent(t, stores, mem, store.Agent{
		Type:         "nurture",
		AssignedAt:   now.AddDate(0, 0, -1),
		MessagesSent: 1,
	}, contact)

	// A higher-priority agent already holds the active slot.
	incumbent := store.GenNewID()
	won, err := stores.Conversations.Acquire(context.Background(), low.ContactID, incumbent, 5)
	if err != nil || !won {
		t.Fatalf("seed incumbent: won=%v err=%v", won, err)
	}

	if err := ev.Sweep(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if comp.callCount() != 0 {
		t.Fatalf("composer called for deferred trigger")
	}
	if msgs := pendingMessages(t, stores, now); len(msgs) != 0 {
		t.Fatalf("deferred trigger produced a message")
	}
	st, err := stores.Conversations.GetOrCreate(context.Background(), low.ContactID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(st.Deferred) != 1 || st.Deferred[0].AgentID != low.ID {
		t.Fatalf("deferred queue = %+v, want one entry for the nurture agent", st.Deferred)
	}
}

func TestSweepDropsTriggerOnComposeFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	comp := &fakeComposer{fail: true}
	ev, mem, stores := newTestEvaluator(t, comp)

	seedAgent(t, stores, mem, store.Agent{
		Type:         "sales",
		AssignedAt:   now.AddDate(0, 0, -1),
		MessagesSent: 1,
	}, store.Contact{Phone: "+15550100"})

	if err := ev.Sweep(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if comp.callCount() != 1 {
		t.Fatalf("composer called %d times, want 1", comp.callCount())
	}
	if msgs := pendingMessages(t, stores, now); len(msgs) != 0 {
		t.Fatalf("failed composition still produced a message")
	}
}

func TestSweepSuppressesUpsellInsideLookback(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	comp := &fakeComposer{}
	ev, mem, stores := newTestEvaluator(t, comp)

	agent := seedAgent(t, stores, mem, store.Agent{
		Type:       "sales",
		AssignedAt: now.AddDate(0, 0, -10),
	}, store.Contact{Email: "buyer@example.com", EngagementScore: 80})

	// An upsell message from 3 days ago sits inside the 7-day window.
	err := stores.Messages.Create(context.Background(), &store.ScheduledMessage{
		ContactID:    agent.ContactID,
		AgentID:      agent.ID,
		Kind:         store.KindUpsell,
		Channel:      store.ChannelEmail,
		ScheduledFor: now.AddDate(0, 0, -3),
		Status:       store.MessageSent,
		Body:         "previous upsell",
		CreatedAt:    now.AddDate(0, 0, -3),
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := ev.Sweep(context.Background(), now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if comp.callCount() != 0 {
		t.Fatalf("composer called despite lookback suppression")
	}
}
