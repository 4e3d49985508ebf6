package composer

import (
	"strings"
	"testing"
)

func TestParseDraftSplitsEmailSubject(t *testing.T) {
	d := parseDraft("Subject: A quick note\n\nHope the first week went well.", "email")
	if d.Subject != "A quick note" {
		t.Fatalf("subject=%q", d.Subject)
	}
	if d.Body != "Hope the first week went well." {
		t.Fatalf("body=%q", d.Body)
	}
}

func TestParseDraftEmailWithoutSubjectLine(t *testing.T) {
	d := parseDraft("Just the body, no subject prefix.", "email")
	if d.Subject != "" || d.Body != "Just the body, no subject prefix." {
		t.Fatalf("draft=%+v", d)
	}
}

func TestParseDraftSMSIsVerbatim(t *testing.T) {
	d := parseDraft("Subject: looks like a header\nbut sms keeps everything", "sms")
	if d.Subject != "" {
		t.Fatalf("sms draft grew a subject: %q", d.Subject)
	}
	if d.Body != "Subject: looks like a header\nbut sms keeps everything" {
		t.Fatalf("body=%q", d.Body)
	}
}

func TestBuildMessagesCarriesContext(t *testing.T) {
	msgs := buildMessages(Request{
		AgentType: "sales",
		Kind:      "upsell",
		Channel:   "sms",
		Context:   "highly engaged but has not purchased",
		History: []HistoryEntry{
			{Role: "agent", Body: "Welcome aboard!"},
			{Role: "contact", Body: "Thanks!"},
		},
	})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want system+user", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("roles = %s/%s", msgs[0].Role, msgs[1].Role)
	}
	usr := msgs[1].Content
	for _, want := range []string{"highly engaged", "Welcome aboard!", "Thanks!"} {
		if !strings.Contains(usr, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, usr)
		}
	}
}
