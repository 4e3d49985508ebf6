// Package throttle implements the per-contact frequency gate: the pure
// decision of whether a contact may receive another message right now.
// It has no side effects; callers re-check immediately before the
// actual send because time passes between trigger and dispatch.
package throttle

import (
	"time"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// Limits are the throttle caps applied to every contact.
type Limits struct {
	MaxPerDay  int           // messages per calendar day
	MaxPerWeek int           // messages per calendar week
	MinGap     time.Duration // minimum spacing between two sends
}

// DefaultLimits match the production caps: 2/day, 5/week, 12h apart.
func DefaultLimits() Limits {
	return Limits{MaxPerDay: 2, MaxPerWeek: 5, MinGap: 12 * time.Hour}
}

// NewLimits builds Limits from configured values; zero or negative
// entries fall back to the defaults.
func NewLimits(perDay, perWeek, gapHours int) Limits {
	lim := DefaultLimits()
	if perDay > 0 {
		lim.MaxPerDay = perDay
	}
	if perWeek > 0 {
		lim.MaxPerWeek = perWeek
	}
	if gapHours > 0 {
		lim.MinGap = time.Duration(gapHours) * time.Hour
	}
	return lim
}

// Verdict explains a gate decision. Allowed is the only field callers
// on the hot path should branch on; Reason feeds logs and audit rows.
type Verdict struct {
	Allowed bool
	Reason  string
}

const (
	ReasonOK          = "ok"
	ReasonDailyCap    = "daily_cap_reached"
	ReasonWeeklyCap   = "weekly_cap_reached"
	ReasonMinGap      = "min_gap_not_elapsed"
	ReasonWaitingHold = "waiting_until_active"
)

// Check reports whether a new message may be sent to the contact at
// now. An explicit waiting_until hold wins over every counter check.
func Check(st *store.ConversationState, lim Limits, now time.Time) Verdict {
	if st.WaitingUntil != nil && st.WaitingUntil.After(now) {
		return Verdict{Reason: ReasonWaitingHold}
	}
	if st.SentToday >= lim.MaxPerDay {
		return Verdict{Reason: ReasonDailyCap}
	}
	if st.SentThisWeek >= lim.MaxPerWeek {
		return Verdict{Reason: ReasonWeeklyCap}
	}
	if st.LastMessageAt != nil && now.Sub(*st.LastMessageAt) < lim.MinGap {
		return Verdict{Reason: ReasonMinGap}
	}
	return Verdict{Allowed: true, Reason: ReasonOK}
}

// MayMessage is the boolean shorthand for Check.
func MayMessage(st *store.ConversationState, lim Limits, now time.Time) bool {
	return Check(st, lim, now).Allowed
}
