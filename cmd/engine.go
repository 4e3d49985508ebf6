package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nextlevelbuilder/outreach/internal/channels"
	"github.com/nextlevelbuilder/outreach/internal/channels/email"
	"github.com/nextlevelbuilder/outreach/internal/channels/sms"
	"github.com/nextlevelbuilder/outreach/internal/composer"
	"github.com/nextlevelbuilder/outreach/internal/config"
	"github.com/nextlevelbuilder/outreach/internal/dispatch"
	"github.com/nextlevelbuilder/outreach/internal/engine"
	"github.com/nextlevelbuilder/outreach/internal/maintenance"
	"github.com/nextlevelbuilder/outreach/internal/scheduler"
	"github.com/nextlevelbuilder/outreach/internal/store"
	"github.com/nextlevelbuilder/outreach/internal/store/pg"
	"github.com/nextlevelbuilder/outreach/internal/store/sqlite"
	"github.com/nextlevelbuilder/outreach/internal/telemetry"
	"github.com/nextlevelbuilder/outreach/internal/trigger"
)

func runEngine() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	stores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	senders := buildSenders(cfg, logger)
	if len(senders.Channels()) == 0 {
		slog.Error("no delivery channels configured; set sms or email credentials")
		os.Exit(1)
	}

	comp := composer.NewOpenAI(cfg.Composer.APIKey, cfg.Composer.BaseURL, cfg.Composer.Model)
	sched := scheduler.New(stores.Messages, logger)
	evaluator := trigger.NewEvaluator(stores, comp, sched, cfg, logger)

	effects := dispatch.NewEffects(stores.Activity, logger)
	defer effects.Close()
	dispatcher := dispatch.NewDispatcher(stores, senders, effects, cfg, logger)

	maint := maintenance.NewRunner(stores, cfg.Maintenance, logger)

	// Hot reload: throttle caps, trigger offsets, and the priority
	// table apply on the next sweep after a config file change.
	go func() {
		if err := config.Watch(ctx, cfgPath, cfg); err != nil && ctx.Err() == nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	eng := engine.New(evaluator, dispatcher, maint, cfg, logger)
	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "error", err)
		os.Exit(1)
	}
}

// openStores picks Postgres (managed mode) when a DSN is present,
// otherwise standalone SQLite.
func openStores(cfg *config.Config) (*store.Stores, error) {
	sc := store.StoreConfig{
		PostgresDSN: cfg.Database.PostgresDSN,
		SQLitePath:  cfg.Database.SQLitePath,
	}
	if cfg.IsManagedMode() {
		slog.Info("managed mode: using postgres store")
		return pg.NewPGStores(sc)
	}
	slog.Info("standalone mode: using sqlite store", "path", sc.SQLitePath)
	return sqlite.NewSQLiteStores(sc)
}

func buildSenders(cfg *config.Config, logger *slog.Logger) *channels.Manager {
	mgr := channels.NewManager()

	if smsCfg := cfg.Channels.SMS; smsCfg.Enabled && smsCfg.APIKey != "" {
		rate := smsCfg.RatePerSec
		if rate <= 0 {
			rate = 1
		}
		mgr.Register(sms.New(smsCfg.BaseURL, smsCfg.APIKey, smsCfg.From), rate)
		logger.Info("sms channel enabled", "from", smsCfg.From)
	}

	if emCfg := cfg.Channels.Email; emCfg.Enabled && emCfg.Host != "" {
		port := emCfg.Port
		if port == 0 {
			port = 587
		}
		rate := emCfg.RatePerSec
		if rate <= 0 {
			rate = 5
		}
		mgr.Register(email.New(emCfg.Host, port, emCfg.From, emCfg.Username, emCfg.Password), rate)
		logger.Info("email channel enabled", "host", emCfg.Host, "from", emCfg.From)
	}

	return mgr
}
