package channels

import (
	"context"
	"errors"
	"testing"
)

type stubSender struct {
	name string
	sent int
}

func (s *stubSender) Name() string { return s.name }

func (s *stubSender) Send(ctx context.Context, msg OutboundMessage) error {
	s.sent++
	return nil
}

func TestManagerRoutesToRegisteredSender(t *testing.T) {
	mgr := NewManager()
	sms := &stubSender{name: "sms"}
	mgr.Register(sms, 0)

	err := mgr.Send(context.Background(), "sms", OutboundMessage{To: "+15550100", Body: "hi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sms.sent != 1 {
		t.Fatalf("sender called %d times, want 1", sms.sent)
	}
}

func TestManagerRejectsUnknownChannel(t *testing.T) {
	mgr := NewManager()
	err := mgr.Send(context.Background(), "carrier_pigeon", OutboundMessage{})
	if !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("got %v, want ErrUnknownChannel", err)
	}
}

func TestManagerHonorsRateLimitCancellation(t *testing.T) {
	mgr := NewManager()
	slow := &stubSender{name: "sms"}
	// One permit per 10s: the second send must wait, and a canceled
	// context aborts the wait.
	mgr.Register(slow, 0.1)

	ctx := context.Background()
	if err := mgr.Send(ctx, "sms", OutboundMessage{Body: "first"}); err != nil {
		t.Fatalf("first send: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := mgr.Send(canceled, "sms", OutboundMessage{Body: "second"}); err == nil {
		t.Fatal("expected rate-limit wait to fail on canceled context")
	}
	if slow.sent != 1 {
		t.Fatalf("sender called %d times, want 1", slow.sent)
	}
}

func TestManagerHas(t *testing.T) {
	mgr := NewManager()
	mgr.Register(&stubSender{name: "email"}, 0)
	if !mgr.Has("email") || mgr.Has("sms") {
		t.Fatalf("Has() misreports registered channels: %v", mgr.Channels())
	}
}
