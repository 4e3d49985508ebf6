package trigger

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/store"
)

func TestRuleSet(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rules := newRuleSet(config.TriggersConfig{})

	daysAgo := func(d int) time.Time { return now.AddDate(0, 0, -d) }
	ptr := func(tm time.Time) *time.Time { return &tm }

	tests := []struct {
		name    string
		agent   store.Agent
		contact store.Contact
		state   store.ConversationState
		want    []string // fired rule names, in evaluation order
	}{
		{
			name:  "quiet agent fires nothing",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(3)},
		},
		{
			name:  "day-1 checkin after welcome message",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(1), MessagesSent: 1},
			want:  []string{RuleDayCheckin},
		},
		{
			name:  "day-1 checkin suppressed without welcome message",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(1), MessagesSent: 0},
		},
		{
			name:  "day-1 checkin suppressed after second message",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(1), MessagesSent: 2},
		},
		{
			name:  "week-1 progress on day 7 exactly",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(7)},
			want:  []string{RuleWeekProgress},
		},
		{
			name:  "week-1 progress missed on day 8",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(8)},
		},
		{
			name:  "no engagement fires when silence enters day 7",
			agent: store.Agent{Type: "nurture", AssignedAt: daysAgo(30)},
			state: store.ConversationState{LastEngagedAt: ptr(daysAgo(7))},
			want:  []string{RuleNoEngagement},
		},
		{
			name:  "no engagement quiet on day 6",
			agent: store.Agent{Type: "nurture", AssignedAt: daysAgo(30)},
			state: store.ConversationState{LastEngagedAt: ptr(daysAgo(6))},
		},
		{
			name:  "no engagement falls back to agent timestamp",
			agent: store.Agent{Type: "nurture", AssignedAt: daysAgo(30), LastEngagedAt: ptr(daysAgo(7))},
			want:  []string{RuleNoEngagement},
		},
		{
			name:  "expiry warning 5 days out",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(20), ExpiresAt: ptr(now.AddDate(0, 0, 5).Add(time.Hour))},
			want:  []string{RuleExpiryWarning},
		},
		{
			name:  "no expiry warning without expiration date",
			agent: store.Agent{Type: "sales", AssignedAt: daysAgo(20)},
		},
		{
			name:    "upsell for engaged non-buyer",
			agent:   store.Agent{Type: "sales", AssignedAt: daysAgo(10)},
			contact: store.Contact{EngagementScore: 75, LifetimeSpend: 0},
			want:    []string{RuleUpsell},
		},
		{
			name:    "upsell suppressed by purchase history",
			agent:   store.Agent{Type: "sales", AssignedAt: daysAgo(10)},
			contact: store.Contact{EngagementScore: 75, LifetimeSpend: 4999},
		},
		{
			name:    "upsell suppressed below score floor",
			agent:   store.Agent{Type: "sales", AssignedAt: daysAgo(10)},
			contact: store.Contact{EngagementScore: 59},
		},
		{
			name:    "upsell waits out the first week",
			agent:   store.Agent{Type: "sales", AssignedAt: daysAgo(6)},
			contact: store.Contact{EngagementScore: 90},
		},
		{
			name:    "churn risk for idle subscription",
			agent:   store.Agent{Type: "subscription", AssignedAt: daysAgo(60)},
			contact: store.Contact{LastLoginAt: ptr(daysAgo(7))},
			want:    []string{RuleChurnRisk},
		},
		{
			name:    "churn rule ignores non-subscription agents",
			agent:   store.Agent{Type: "sales", AssignedAt: daysAgo(60)},
			contact: store.Contact{LastLoginAt: ptr(daysAgo(7))},
		},
		{
			name:    "multiple rules fire in one pass",
			agent:   store.Agent{Type: "sales", AssignedAt: daysAgo(7)},
			contact: store.Contact{EngagementScore: 80},
			want:    []string{RuleWeekProgress, RuleUpsell},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.state
			events := rules.evaluate(tt.agent, tt.contact, &st, now)
			var got []string
			for _, ev := range events {
				got = append(got, ev.Rule)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("fired %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("fired %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPreferredChannel(t *testing.T) {
	if ch := preferredChannel(store.Contact{Phone: "+15550100"}); ch != store.ChannelSMS {
		t.Fatalf("got %s, want sms", ch)
	}
	if ch := preferredChannel(store.Contact{Email: "a@example.com"}); ch != store.ChannelEmail {
		t.Fatalf("got %s, want email", ch)
	}
}
