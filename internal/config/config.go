package config

import (
	"sync"
	"time"
)

// Config is the root configuration for the outreach engine.
type Config struct {
	Engine      EngineConfig      `json:"engine"`
	Throttle    ThrottleConfig    `json:"throttle"`
	Triggers    TriggersConfig    `json:"triggers"`
	Priorities  map[string]int    `json:"priorities,omitempty"` // agent type → rank overrides
	Channels    ChannelsConfig    `json:"channels"`
	Composer    ComposerConfig    `json:"composer"`
	Database    DatabaseConfig    `json:"database,omitempty"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
	Telemetry   TelemetryConfig   `json:"telemetry,omitempty"`
	mu          sync.RWMutex
}

// EngineConfig configures the sweep loops.
type EngineConfig struct {
	TriggerInterval  string `json:"trigger_interval,omitempty"`  // Go duration, default "15m"
	DispatchInterval string `json:"dispatch_interval,omitempty"` // Go duration, default "1m"
	DispatchBatch    int    `json:"dispatch_batch,omitempty"`    // messages claimed per pass (default 100)
	Workers          int    `json:"workers,omitempty"`           // bounded pool per sweep (default 8)
	StaleClaimAfter  string `json:"stale_claim_after,omitempty"` // claimed rows older than this go back to pending (default "10m")
}

// ThrottleConfig configures the per-contact frequency gate.
type ThrottleConfig struct {
	MaxPerDay   int `json:"max_per_day,omitempty"`   // default 2
	MaxPerWeek  int `json:"max_per_week,omitempty"`  // default 5
	MinGapHours int `json:"min_gap_hours,omitempty"` // default 12
}

// TriggersConfig configures the trigger rule windows.
type TriggersConfig struct {
	CheckinDay            int `json:"checkin_day,omitempty"`             // day-N check-in (default 1)
	ProgressDay           int `json:"progress_day,omitempty"`            // week progress (default 7)
	InactivityDays        int `json:"inactivity_days,omitempty"`         // no-engagement window start (default 7)
	ExpiryWarningDays     int `json:"expiry_warning_days,omitempty"`     // days before expiration (default 5)
	UpsellLookbackDays    int `json:"upsell_lookback_days,omitempty"`    // suppression window (default 7)
	UpsellMinScore        int `json:"upsell_min_score,omitempty"`        // engagement score floor (default 60)
	ChurnInactiveDays     int `json:"churn_inactive_days,omitempty"`     // no-login window for subscription agents (default 7)
	ConversationHistLimit int `json:"conversation_hist_limit,omitempty"` // history lines handed to the composer (default 20)
}

// ChannelsConfig configures outbound senders.
type ChannelsConfig struct {
	SMS   SMSConfig   `json:"sms"`
	Email EmailConfig `json:"email"`
}

// SMSConfig configures the HTTP SMS gateway.
// APIKey comes from env OUTREACH_SMS_API_KEY only (secret).
type SMSConfig struct {
	Enabled    bool    `json:"enabled,omitempty"`
	BaseURL    string  `json:"base_url,omitempty"` // gateway endpoint
	From       string  `json:"from,omitempty"`     // sender number
	APIKey     string  `json:"-"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"` // outbound rate limit (default 1)
}

// EmailConfig configures the SMTP sender.
// Password comes from env OUTREACH_SMTP_PASSWORD only (secret).
type EmailConfig struct {
	Enabled    bool    `json:"enabled,omitempty"`
	Host       string  `json:"host,omitempty"`
	Port       int     `json:"port,omitempty"` // default 587
	From       string  `json:"from,omitempty"`
	Username   string  `json:"username,omitempty"`
	Password   string  `json:"-"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"` // default 5
}

// ComposerConfig configures the external content composer.
// APIKey comes from env OUTREACH_COMPOSER_API_KEY only (secret).
type ComposerConfig struct {
	BaseURL    string `json:"base_url,omitempty"` // OpenAI-compatible endpoint
	Model      string `json:"model,omitempty"`
	APIKey     string `json:"-"`
	TimeoutSec int    `json:"timeout_sec,omitempty"` // request timeout (default 30)
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is NEVER read from the config file (secret) — only from
// env OUTREACH_POSTGRES_DSN. Empty DSN means standalone SQLite mode.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	SQLitePath  string `json:"sqlite_path,omitempty"` // default ~/.outreach/outreach.db
}

// MaintenanceConfig configures counter resets and agent expiry.
// Schedules are cron expressions evaluated once per engine tick.
type MaintenanceConfig struct {
	DailyResetSchedule  string `json:"daily_reset_schedule,omitempty"`  // default "0 0 * * *"
	WeeklyResetSchedule string `json:"weekly_reset_schedule,omitempty"` // default "0 0 * * 1" (Monday)
	ExpiryCheckSchedule string `json:"expiry_check_schedule,omitempty"` // default "30 0 * * *"
}

// TelemetryConfig configures OpenTelemetry export of sweep spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"` // OTLP endpoint
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"` // default "outreach-engine"
	Headers     map[string]string `json:"headers,omitempty"`
}

// TriggerIntervalDuration parses the trigger sweep interval with its default.
func (e EngineConfig) TriggerIntervalDuration() time.Duration {
	return parseDuration(e.TriggerInterval, 15*time.Minute)
}

// DispatchIntervalDuration parses the dispatch sweep interval.
func (e EngineConfig) DispatchIntervalDuration() time.Duration {
	return parseDuration(e.DispatchInterval, time.Minute)
}

// StaleClaimAfterDuration parses the stale-claim recovery threshold.
func (e EngineConfig) StaleClaimAfterDuration() time.Duration {
	return parseDuration(e.StaleClaimAfter, 10*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ReplaceFrom copies all data fields from src into c, preserving c's
// mutex. Used by the fsnotify watcher on hot reload.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Engine = src.Engine
	c.Throttle = src.Throttle
	c.Triggers = src.Triggers
	c.Priorities = src.Priorities
	c.Channels = src.Channels
	c.Composer = src.Composer
	c.Database = src.Database
	c.Maintenance = src.Maintenance
	c.Telemetry = src.Telemetry
}

// Snapshot returns a copy of the hot-reloadable tunables under the
// read lock. Sweep loops call this at the top of each pass so a
// reload applies on the next sweep, never mid-pass.
func (c *Config) Snapshot() (ThrottleConfig, TriggersConfig, map[string]int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Throttle, c.Triggers, c.Priorities
}
