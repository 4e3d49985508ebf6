package throttle

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

func TestCheck(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	lim := DefaultLimits()

	ts := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name    string
		state   store.ConversationState
		allowed bool
		reason  string
	}{
		{
			name:    "fresh contact",
			state:   store.ConversationState{},
			allowed: true,
			reason:  ReasonOK,
		},
		{
			name:   "daily cap reached",
			state:  store.ConversationState{SentToday: 2},
			reason: ReasonDailyCap,
		},
		{
			name:   "weekly cap reached",
			state:  store.ConversationState{SentToday: 1, SentThisWeek: 5},
			reason: ReasonWeeklyCap,
		},
		{
			name:   "last message too recent",
			state:  store.ConversationState{LastMessageAt: ts(now.Add(-11 * time.Hour))},
			reason: ReasonMinGap,
		},
		{
			name:    "gap exactly at minimum",
			state:   store.ConversationState{LastMessageAt: ts(now.Add(-12 * time.Hour))},
			allowed: true,
			reason:  ReasonOK,
		},
		{
			name:   "waiting hold in the future",
			state:  store.ConversationState{WaitingUntil: ts(now.Add(time.Hour))},
			reason: ReasonWaitingHold,
		},
		{
			name:    "waiting hold already elapsed",
			state:   store.ConversationState{WaitingUntil: ts(now.Add(-time.Minute))},
			allowed: true,
			reason:  ReasonOK,
		},
		{
			name: "waiting hold wins over counters",
			state: store.ConversationState{
				SentToday:    2,
				WaitingUntil: ts(now.Add(time.Hour)),
			},
			reason: ReasonWaitingHold,
		},
		{
			name: "under every limit",
			state: store.ConversationState{
				SentToday:     1,
				SentThisWeek:  3,
				LastMessageAt: ts(now.Add(-13 * time.Hour)),
			},
			allowed: true,
			reason:  ReasonOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.state
			st.ContactID = uuid.New()
			v := Check(&st, lim, now)
			if v.Allowed != tt.allowed {
				t.Errorf("Check() allowed = %v, want %v", v.Allowed, tt.allowed)
			}
			if v.Reason != tt.reason {
				t.Errorf("Check() reason = %q, want %q", v.Reason, tt.reason)
			}
			if got := MayMessage(&st, lim, now); got != tt.allowed {
				t.Errorf("MayMessage() = %v, want %v", got, tt.allowed)
			}
		})
	}
}
