package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/store"
	"github.com/nextlevelbuilder/outreach/internal/store/memory"
)

func TestScheduleCreatesPendingMessage(t *testing.T) {
	stores := memory.New().Stores()
	s := New(stores.Messages, slog.New(slog.NewTextHandler(io.Discard, nil)))

	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	contactID := store.GenNewID()
	agentID := store.GenNewID()

	msg, err := s.Schedule(context.Background(), Request{
		ContactID: contactID,
		AgentID:   agentID,
		Kind:      store.KindUpsell,
		Channel:   store.ChannelEmail,
		Subject:   "a thought",
		Body:      "hello there",
		SendAt:    now,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	got, err := stores.Messages.Get(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.MessagePending {
		t.Fatalf("status=%s, want pending", got.Status)
	}
	if !got.ScheduledFor.Equal(now) {
		t.Fatalf("scheduled_for=%v, want %v", got.ScheduledFor, now)
	}
	if got.ContactID != contactID || got.AgentID != agentID {
		t.Fatalf("wrong attribution: %+v", got)
	}
}

func TestScheduleRejectsEmptyBody(t *testing.T) {
	stores := memory.New().Stores()
	s := New(stores.Messages, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.Schedule(context.Background(), Request{
		ContactID: store.GenNewID(),
		AgentID:   store.GenNewID(),
		Kind:      store.KindCheckin,
		Channel:   store.ChannelSMS,
	})
	if err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestScheduleDefaultsSendAtToNow(t *testing.T) {
	stores := memory.New().Stores()
	s := New(stores.Messages, slog.New(slog.NewTextHandler(io.Discard, nil)))

	before := time.Now()
	msg, err := s.Schedule(context.Background(), Request{
		ContactID: store.GenNewID(),
		AgentID:   store.GenNewID(),
		Kind:      store.KindCheckin,
		Channel:   store.ChannelSMS,
		Body:      "now-ish",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if msg.ScheduledFor.Before(before) || msg.ScheduledFor.After(time.Now()) {
		t.Fatalf("scheduled_for=%v not in [%v, now]", msg.ScheduledFor, before)
	}
}
