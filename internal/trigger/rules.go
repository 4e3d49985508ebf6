package trigger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/store"
)

// Rule identifiers, used in logs and activity detail.
const (
	RuleNoEngagement  = "no_engagement"
	RuleDayCheckin    = "day_checkin"
	RuleWeekProgress  = "week_progress"
	RuleExpiryWarning = "expiry_warning"
	RuleUpsell        = "upsell_opportunity"
	RuleChurnRisk     = "churn_risk"
)

// Event is the output of one rule firing for one agent/contact pair.
// Ephemeral: it is never persisted, only handed through arbitration
// and composition into a ScheduledMessage.
type Event struct {
	Rule        string
	MessageKind string
	Channel     string
	// Summary is the human-readable reason handed to the composer.
	Summary string
	// Context carries the numbers behind the summary for audit detail.
	Context map[string]string
}

// ruleSet evaluates every trigger rule against one agent/contact
// snapshot. All rules are pure; the upsell lookback query runs in the
// evaluator after this returns.
type ruleSet struct {
	cfg config.TriggersConfig
}

func newRuleSet(cfg config.TriggersConfig) ruleSet {
	applyRuleDefaults(&cfg)
	return ruleSet{cfg: cfg}
}

func applyRuleDefaults(c *config.TriggersConfig) {
	if c.CheckinDay <= 0 {
		c.CheckinDay = 1
	}
	if c.ProgressDay <= 0 {
		c.ProgressDay = 7
	}
	if c.InactivityDays <= 0 {
		c.InactivityDays = 7
	}
	if c.ExpiryWarningDays <= 0 {
		c.ExpiryWarningDays = 5
	}
	if c.UpsellLookbackDays <= 0 {
		c.UpsellLookbackDays = 7
	}
	if c.UpsellMinScore <= 0 {
		c.UpsellMinScore = 60
	}
	if c.ChurnInactiveDays <= 0 {
		c.ChurnInactiveDays = 7
	}
	if c.ConversationHistLimit <= 0 {
		c.ConversationHistLimit = 20
	}
}

// evaluate runs every rule independently; multiple rules may fire in
// the same pass, each producing its own event.
func (r ruleSet) evaluate(a store.Agent, c store.Contact, st *store.ConversationState, now time.Time) []Event {
	var out []Event
	for _, fn := range []func(store.Agent, store.Contact, *store.ConversationState, time.Time) *Event{
		r.noEngagement,
		r.dayCheckin,
		r.weekProgress,
		r.expiryWarning,
		r.upsell,
		r.churnRisk,
	} {
		if ev := fn(a, c, st, now); ev != nil {
			ev.Channel = preferredChannel(c)
			out = append(out, *ev)
		}
	}
	return out
}

// daysSince floors elapsed time to whole days, so a value of N covers
// the window [N, N+1) days. Exact-equality checks against it fire once
// per day window; a sweep outage across the whole window skips that
// firing for good.
func daysSince(t, now time.Time) int {
	if now.Before(t) {
		return -1
	}
	return int(now.Sub(t).Hours() / 24)
}

func daysUntil(t, now time.Time) int {
	if t.Before(now) {
		return -1
	}
	return int(t.Sub(now).Hours() / 24)
}

// noEngagement fires when the contact's silence crosses into the
// configured day window.
func (r ruleSet) noEngagement(a store.Agent, _ store.Contact, st *store.ConversationState, now time.Time) *Event {
	last := st.LastEngagedAt
	if last == nil {
		last = a.LastEngagedAt
	}
	if last == nil {
		return nil
	}
	days := daysSince(*last, now)
	if days != r.cfg.InactivityDays {
		return nil
	}
	return &Event{
		Rule:        RuleNoEngagement,
		MessageKind: store.KindRetention,
		Summary:     fmt.Sprintf("the customer has not engaged in %d days", days),
		Context:     map[string]string{"days_inactive": strconv.Itoa(days)},
	}
}

// dayCheckin fires on the configured day after assignment, but only
// when exactly one message has gone out so far. The message-count
// guard keeps it from re-firing within the same day window.
func (r ruleSet) dayCheckin(a store.Agent, _ store.Contact, _ *store.ConversationState, now time.Time) *Event {
	if daysSince(a.AssignedAt, now) != r.cfg.CheckinDay || a.MessagesSent != 1 {
		return nil
	}
	return &Event{
		Rule:        RuleDayCheckin,
		MessageKind: store.KindCheckin,
		Summary:     fmt.Sprintf("day-%d check-in after the welcome message", r.cfg.CheckinDay),
		Context:     map[string]string{"day": strconv.Itoa(r.cfg.CheckinDay)},
	}
}

// weekProgress fires once on the configured day after assignment.
func (r ruleSet) weekProgress(a store.Agent, _ store.Contact, _ *store.ConversationState, now time.Time) *Event {
	if daysSince(a.AssignedAt, now) != r.cfg.ProgressDay {
		return nil
	}
	return &Event{
		Rule:        RuleWeekProgress,
		MessageKind: store.KindOnboarding,
		Summary:     fmt.Sprintf("progress review %d days into the relationship", r.cfg.ProgressDay),
		Context:     map[string]string{"day": strconv.Itoa(r.cfg.ProgressDay)},
	}
}

// expiryWarning fires when the configured number of whole days remain
// before the agent expires.
func (r ruleSet) expiryWarning(a store.Agent, _ store.Contact, _ *store.ConversationState, now time.Time) *Event {
	if a.ExpiresAt == nil || daysUntil(*a.ExpiresAt, now) != r.cfg.ExpiryWarningDays {
		return nil
	}
	return &Event{
		Rule:        RuleExpiryWarning,
		MessageKind: store.KindExpirationNotice,
		Summary:     fmt.Sprintf("the engagement expires in %d days", r.cfg.ExpiryWarningDays),
		Context:     map[string]string{"days_remaining": strconv.Itoa(r.cfg.ExpiryWarningDays)},
	}
}

// upsell fires for engaged contacts who have never purchased. The
// evaluator still has to confirm no upsell message was created inside
// the lookback window before acting on this event.
func (r ruleSet) upsell(a store.Agent, c store.Contact, _ *store.ConversationState, now time.Time) *Event {
	if c.EngagementScore < r.cfg.UpsellMinScore || c.LifetimeSpend != 0 {
		return nil
	}
	if daysSince(a.AssignedAt, now) < r.cfg.UpsellLookbackDays {
		return nil
	}
	return &Event{
		Rule:        RuleUpsell,
		MessageKind: store.KindUpsell,
		Summary:     fmt.Sprintf("highly engaged (score %d) but has not purchased yet", c.EngagementScore),
		Context: map[string]string{
			"engagement_score": strconv.Itoa(c.EngagementScore),
		},
	}
}

// churnRisk is agent-type specific: subscription agents watch for a
// login gap the way the other rules watch for message gaps.
func (r ruleSet) churnRisk(a store.Agent, c store.Contact, _ *store.ConversationState, now time.Time) *Event {
	if a.Type != "subscription" || c.LastLoginAt == nil {
		return nil
	}
	days := daysSince(*c.LastLoginAt, now)
	if days != r.cfg.ChurnInactiveDays {
		return nil
	}
	return &Event{
		Rule:        RuleChurnRisk,
		MessageKind: store.KindRetention,
		Summary:     fmt.Sprintf("no login activity in %d days on an active subscription", days),
		Context:     map[string]string{"days_no_login": strconv.Itoa(days)},
	}
}

// preferredChannel picks sms when a phone number exists, otherwise
// email. Address validity is the dispatcher's problem.
func preferredChannel(c store.Contact) string {
	if c.Phone != "" {
		return store.ChannelSMS
	}
	return store.ChannelEmail
}
