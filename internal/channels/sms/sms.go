// Package sms implements the SMS channel sender against an HTTP
// gateway with a Twilio-style JSON API.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/channels"
)

// Sender delivers SMS through an HTTP gateway.
type Sender struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

// Option configures the sender.
type Option func(*Sender)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// New creates an SMS sender for the given gateway.
func New(baseURL, apiKey, from string, opts ...Option) *Sender {
	s := &Sender{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sender) Name() string { return "sms" }

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send posts one message to the gateway. Any non-2xx response is a
// terminal failure for this attempt.
func (s *Sender) Send(ctx context.Context, msg channels.OutboundMessage) error {
	payload, err := json.Marshal(sendRequest{From: s.from, To: msg.To, Body: msg.Body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
