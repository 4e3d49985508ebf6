package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Engine: EngineConfig{
			TriggerInterval:  "15m",
			DispatchInterval: "1m",
			DispatchBatch:    100,
			Workers:          8,
			StaleClaimAfter:  "10m",
		},
		Throttle: ThrottleConfig{
			MaxPerDay:   2,
			MaxPerWeek:  5,
			MinGapHours: 12,
		},
		Triggers: TriggersConfig{
			CheckinDay:            1,
			ProgressDay:           7,
			InactivityDays:        7,
			ExpiryWarningDays:     5,
			UpsellLookbackDays:    7,
			UpsellMinScore:        60,
			ChurnInactiveDays:     7,
			ConversationHistLimit: 20,
		},
		Channels: ChannelsConfig{
			SMS:   SMSConfig{RatePerSec: 1},
			Email: EmailConfig{Port: 587, RatePerSec: 5},
		},
		Composer: ComposerConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			TimeoutSec: 30,
		},
		Database: DatabaseConfig{
			SQLitePath: filepath.Join(home, ".outreach", "outreach.db"),
		},
		Maintenance: MaintenanceConfig{
			DailyResetSchedule:  "0 0 * * *",
			WeeklyResetSchedule: "0 0 * * 1",
			ExpiryCheckSchedule: "30 0 * * *",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "outreach-engine",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets are env-only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Secrets
	envStr("OUTREACH_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("OUTREACH_COMPOSER_API_KEY", &c.Composer.APIKey)
	envStr("OUTREACH_SMS_API_KEY", &c.Channels.SMS.APIKey)
	envStr("OUTREACH_SMTP_PASSWORD", &c.Channels.Email.Password)

	// Composer endpoint/model
	envStr("OUTREACH_COMPOSER_BASE_URL", &c.Composer.BaseURL)
	envStr("OUTREACH_COMPOSER_MODEL", &c.Composer.Model)

	// Channel endpoints
	envStr("OUTREACH_SMS_BASE_URL", &c.Channels.SMS.BaseURL)
	envStr("OUTREACH_SMS_FROM", &c.Channels.SMS.From)
	envStr("OUTREACH_SMTP_HOST", &c.Channels.Email.Host)
	envStr("OUTREACH_SMTP_USERNAME", &c.Channels.Email.Username)
	envStr("OUTREACH_EMAIL_FROM", &c.Channels.Email.From)
	if v := os.Getenv("OUTREACH_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Channels.Email.Port = port
		}
	}

	// Auto-enable channels when credentials arrive via env
	if c.Channels.SMS.APIKey != "" && c.Channels.SMS.BaseURL != "" {
		c.Channels.SMS.Enabled = true
	}
	if c.Channels.Email.Host != "" && c.Channels.Email.Password != "" {
		c.Channels.Email.Enabled = true
	}

	// Sweep intervals
	envStr("OUTREACH_TRIGGER_INTERVAL", &c.Engine.TriggerInterval)
	envStr("OUTREACH_DISPATCH_INTERVAL", &c.Engine.DispatchInterval)

	// Database
	envStr("OUTREACH_SQLITE_PATH", &c.Database.SQLitePath)

	// Telemetry
	envStr("OUTREACH_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("OUTREACH_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("OUTREACH_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("OUTREACH_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OUTREACH_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// IsManagedMode reports whether a Postgres DSN selects managed mode.
func (c *Config) IsManagedMode() bool {
	return c.Database.PostgresDSN != ""
}
