package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

func TestMessageTransitionsRequireClaim(t *testing.T) {
	stores := New().Stores()
	ctx := context.Background()
	now := time.Now()

	msg := store.ScheduledMessage{
		ContactID:    store.GenNewID(),
		AgentID:      store.GenNewID(),
		Kind:         store.KindCheckin,
		Channel:      store.ChannelSMS,
		ScheduledFor: now.Add(-time.Minute),
		Status:       store.MessagePending,
		Body:         "hi",
	}
	if err := stores.Messages.Create(ctx, &msg); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Terminal transitions from pending are invalid; the claim comes first.
	if err := stores.Messages.MarkSent(ctx, msg.ID, now); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("MarkSent on pending = %v, want ErrInvalidTransition", err)
	}

	claimed, err := stores.Messages.ClaimDue(ctx, now, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: n=%d err=%v", len(claimed), err)
	}

	// A second claim pass finds nothing.
	again, err := stores.Messages.ClaimDue(ctx, now, 10)
	if err != nil || len(again) != 0 {
		t.Fatalf("re-claim: n=%d err=%v", len(again), err)
	}

	if err := stores.Messages.MarkSent(ctx, msg.ID, now); err != nil {
		t.Fatalf("MarkSent on claimed: %v", err)
	}

	// Sent is terminal.
	if err := stores.Messages.MarkFailed(ctx, msg.ID, "nope"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("MarkFailed on sent = %v, want ErrInvalidTransition", err)
	}
	if err := stores.Messages.Release(ctx, msg.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("Release on sent = %v, want ErrInvalidTransition", err)
	}
}

func TestDeferredQueueTrimsToCap(t *testing.T) {
	stores := New().Stores()
	ctx := context.Background()
	contactID := store.GenNewID()

	for i := 0; i < 25; i++ {
		err := stores.Conversations.Defer(ctx, contactID, store.DeferredRequest{
			AgentID:     store.GenNewID(),
			MessageKind: store.KindCheckin,
			QueuedAt:    time.Now(),
		})
		if err != nil {
			t.Fatalf("defer: %v", err)
		}
	}

	st, err := stores.Conversations.GetOrCreate(ctx, contactID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(st.Deferred) != 20 {
		t.Fatalf("deferred queue length = %d, want 20", len(st.Deferred))
	}
}
