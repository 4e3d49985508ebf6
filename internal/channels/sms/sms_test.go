package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/outreach/internal/channels"
)

func TestSendPostsToGateway(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := New(srv.URL, "test-key", "+15550001")
	err := s.Send(context.Background(), channels.OutboundMessage{To: "+15550100", Body: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("auth header = %q", auth)
	}
	if got.From != "+15550001" || got.To != "+15550100" || got.Body != "hello" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestSendSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid recipient", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := New(srv.URL, "test-key", "+15550001")
	err := s.Send(context.Background(), channels.OutboundMessage{To: "bogus", Body: "hello"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}
