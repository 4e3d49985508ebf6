package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/outreach/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("outreach doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.IsManagedMode() {
		fmt.Printf("    %-12s managed (postgres)\n", "Mode:")
		db, dbErr := sql.Open("pgx", cfg.Database.PostgresDSN)
		if dbErr != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", dbErr)
		} else if pingErr := db.Ping(); pingErr != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", pingErr)
			db.Close()
		} else {
			defer db.Close()
			fmt.Printf("    %-12s connected\n", "Status:")
			var v int
			var dirty bool
			row := db.QueryRow("SELECT version, dirty FROM schema_migrations")
			if scanErr := row.Scan(&v, &dirty); scanErr != nil {
				fmt.Printf("    %-12s unknown (run: outreach migrate up)\n", "Schema:")
			} else if dirty {
				fmt.Printf("    %-12s v%d (DIRTY — run: outreach migrate force %d)\n", "Schema:", v, v-1)
			} else {
				fmt.Printf("    %-12s v%d\n", "Schema:", v)
			}
		}
	} else {
		fmt.Printf("    %-12s standalone (sqlite)\n", "Mode:")
		fmt.Printf("    %-12s %s\n", "Path:", cfg.Database.SQLitePath)
	}

	fmt.Println()
	fmt.Println("  Composer:")
	checkSecret("API key", cfg.Composer.APIKey)
	if cfg.Composer.Model != "" {
		fmt.Printf("    %-12s %s\n", "Model:", cfg.Composer.Model)
	}

	fmt.Println()
	fmt.Println("  Channels:")
	checkChannel("sms", cfg.Channels.SMS.Enabled, cfg.Channels.SMS.APIKey != "")
	checkChannel("email", cfg.Channels.Email.Enabled, cfg.Channels.Email.Password != "")

	fmt.Println()
	fmt.Println("  Throttle:")
	fmt.Printf("    %-12s %d/day, %d/week, %dh gap\n", "Limits:",
		orDefault(cfg.Throttle.MaxPerDay, 2),
		orDefault(cfg.Throttle.MaxPerWeek, 5),
		orDefault(cfg.Throttle.MinGapHours, 12))

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkSecret(name, value string) {
	if value == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	masked := value
	if len(value) > 8 {
		masked = value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}
	fmt.Printf("    %-12s %s\n", name+":", masked)
}

func checkChannel(name string, enabled, hasCredentials bool) {
	status := "disabled"
	if enabled && hasCredentials {
		status = "enabled"
	} else if enabled {
		status = "enabled (missing credentials)"
	}
	fmt.Printf("    %-12s %s\n", name+":", status)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
