package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Throttle.MaxPerDay != 2 || cfg.Throttle.MaxPerWeek != 5 || cfg.Throttle.MinGapHours != 12 {
		t.Fatalf("throttle defaults = %+v", cfg.Throttle)
	}
	if cfg.Engine.TriggerIntervalDuration() != 15*time.Minute {
		t.Fatalf("trigger interval = %v", cfg.Engine.TriggerIntervalDuration())
	}
	if cfg.IsManagedMode() {
		t.Fatal("managed mode without a DSN")
	}
}

func TestLoadParsesJSON5WithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		// tightened caps for this deployment
		throttle: { max_per_day: 1, min_gap_hours: 24 },
		engine: { trigger_interval: "5m" },
		priorities: { vip_concierge: 20 },
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Throttle.MaxPerDay != 1 || cfg.Throttle.MinGapHours != 24 {
		t.Fatalf("throttle = %+v", cfg.Throttle)
	}
	// Untouched fields keep their defaults.
	if cfg.Throttle.MaxPerWeek != 5 {
		t.Fatalf("max_per_week = %d, want default 5", cfg.Throttle.MaxPerWeek)
	}
	if cfg.Engine.TriggerIntervalDuration() != 5*time.Minute {
		t.Fatalf("trigger interval = %v", cfg.Engine.TriggerIntervalDuration())
	}
	if cfg.Priorities["vip_concierge"] != 20 {
		t.Fatalf("priorities = %v", cfg.Priorities)
	}
}

func TestEnvOverridesWinAndEnableChannels(t *testing.T) {
	t.Setenv("OUTREACH_POSTGRES_DSN", "postgres://u:p@localhost/outreach")
	t.Setenv("OUTREACH_SMS_API_KEY", "sk-sms")
	t.Setenv("OUTREACH_SMS_BASE_URL", "https://sms.example.com")
	t.Setenv("OUTREACH_SMTP_HOST", "smtp.example.com")
	t.Setenv("OUTREACH_SMTP_PASSWORD", "hunter2")
	t.Setenv("OUTREACH_TRIGGER_INTERVAL", "1m")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsManagedMode() {
		t.Fatal("DSN from env should select managed mode")
	}
	if !cfg.Channels.SMS.Enabled || !cfg.Channels.Email.Enabled {
		t.Fatalf("channels not auto-enabled: sms=%v email=%v", cfg.Channels.SMS.Enabled, cfg.Channels.Email.Enabled)
	}
	if cfg.Engine.TriggerIntervalDuration() != time.Minute {
		t.Fatalf("trigger interval = %v", cfg.Engine.TriggerIntervalDuration())
	}
}

func TestSnapshotAndReplaceFrom(t *testing.T) {
	cfg := Default()
	next := Default()
	next.Throttle.MaxPerDay = 9
	next.Priorities = map[string]int{"sales": 7}

	cfg.ReplaceFrom(next)

	throttle, _, ranks := cfg.Snapshot()
	if throttle.MaxPerDay != 9 {
		t.Fatalf("snapshot throttle = %+v", throttle)
	}
	if ranks["sales"] != 7 {
		t.Fatalf("snapshot ranks = %v", ranks)
	}
}
