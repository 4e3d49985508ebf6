// Package email implements the email channel sender over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/outreach/internal/channels"
)

// SendFunc matches smtp.SendMail; swapped out in tests.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers email through an SMTP relay with PLAIN auth.
type Sender struct {
	host     string
	port     int
	from     string
	username string
	password string
	send     SendFunc
}

// Option configures the sender.
type Option func(*Sender)

// WithSendFunc overrides the SMTP call (tests).
func WithSendFunc(f SendFunc) Option {
	return func(s *Sender) { s.send = f }
}

// New creates an email sender for the given relay.
func New(host string, port int, from, username, password string, opts ...Option) *Sender {
	s := &Sender{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
		send:     smtp.SendMail,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sender) Name() string { return "email" }

// Send delivers one message. The context deadline is honored up to
// the SMTP dial; smtp.SendMail has no context support, so the relay
// connection itself is bounded by the OS socket timeout.
func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := msg.Subject
	if subject == "" {
		subject = "A message from your account team"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := s.send(addr, auth, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// sanitizeHeader strips CR/LF to block header injection through
// composed subjects.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, "\n", " ")
}
