package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/outreach/internal/channels"
)

func TestSendBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	s := New("smtp.example.com", 587, "team@example.com", "user", "pass",
		WithSendFunc(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
			return nil
		}))

	err := s.Send(context.Background(), channels.OutboundMessage{
		To:      "customer@example.com",
		Subject: "Quick question",
		Body:    "Just checking in.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "team@example.com" {
		t.Fatalf("addr=%q from=%q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "customer@example.com" {
		t.Fatalf("to=%v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Quick question\r\n") {
		t.Fatalf("missing subject header:\n%s", gotMsg)
	}
	if !strings.HasSuffix(gotMsg, "\r\n\r\nJust checking in.") {
		t.Fatalf("body not separated from headers:\n%s", gotMsg)
	}
}

func TestSendStripsHeaderInjection(t *testing.T) {
	var gotMsg string
	s := New("smtp.example.com", 587, "team@example.com", "user", "pass",
		WithSendFunc(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotMsg = string(msg)
			return nil
		}))

	err := s.Send(context.Background(), channels.OutboundMessage{
		To:      "customer@example.com",
		Subject: "hi\r\nBcc: everyone@example.com",
		Body:    "body",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	// The Bcc text may survive inline in the subject, but never as
	// its own header line.
	if strings.Contains(gotMsg, "\r\nBcc:") {
		t.Fatalf("injected header survived:\n%s", gotMsg)
	}
	if !strings.Contains(gotMsg, "Subject: hi Bcc: everyone@example.com\r\n") {
		t.Fatalf("subject not sanitized in place:\n%s", gotMsg)
	}
}

func TestSendDefaultSubject(t *testing.T) {
	var gotMsg string
	s := New("smtp.example.com", 587, "team@example.com", "user", "pass",
		WithSendFunc(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotMsg = string(msg)
			return nil
		}))

	if err := s.Send(context.Background(), channels.OutboundMessage{To: "c@example.com", Body: "b"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(gotMsg, "Subject: ") {
		t.Fatalf("no subject header:\n%s", gotMsg)
	}
}
