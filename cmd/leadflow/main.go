package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/carebridge/leadflow/internal/api"
	"github.com/carebridge/leadflow/internal/flow"
	"github.com/carebridge/leadflow/internal/notify"
	"github.com/carebridge/leadflow/internal/reaper"
	"github.com/carebridge/leadflow/internal/store"
	"github.com/carebridge/leadflow/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for leadflow state data.
	DefaultStateDir = "/var/lib/leadflow"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "leadflow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	table := flow.DefaultScript()
	if err := table.Validate(); err != nil {
		slog.Error("Intake script failed validation", "error", err)
		os.Exit(1)
	}

	notifier := buildNotifier(flags)
	completion := flow.NewCompletionHandler(st, notifier)
	controller := flow.NewController(table, st, completion)

	rp := reaper.New(st, util.ParseDurationEnv("SESSION_IDLE_WINDOW", reaper.DefaultIdleWindow))
	if err := rp.Start(*flags.reaperSchedule); err != nil {
		slog.Error("Failed to start session reaper", "error", err)
		os.Exit(1)
	}
	defer rp.Stop()

	server := api.NewServer(controller, st, api.WithAddr(*flags.apiAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("API server shutdown failed", "error", err)
		}
	}()

	slog.Info("Bootstrapping leadflow with configured modules", "api_addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "")
	if err := server.Run(); err != nil {
		slog.Error("leadflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("leadflow exited successfully")
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL    string
	StateDir       string
	APIAddr        string
	ReaperSchedule string
	SMTPHost       string
	SMTPFrom       string
}

// Flags holds command line flag values.
type Flags struct {
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	reaperSchedule *string
	smtpHost       *string
	smtpFrom       *string
}

// initializeLogger sets up structured logging. Debug level is opt-in via
// LEADFLOW_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LEADFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("LEADFLOW_STATE_DIR"),
		APIAddr:        os.Getenv("API_ADDR"),
		ReaperSchedule: os.Getenv("REAPER_SCHEDULE"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPFrom:       os.Getenv("SMTP_FROM"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for leadflow data (overrides $LEADFLOW_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN: SQLite path or postgres:// URL (overrides $DATABASE_URL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		reaperSchedule: flag.String("reaper-schedule", config.ReaperSchedule, "cron schedule for the session reaper (overrides $REAPER_SCHEDULE)"),
		smtpHost:       flag.String("smtp-host", config.SMTPHost, "SMTP host for confirmation email (overrides $SMTP_HOST)"),
		smtpFrom:       flag.String("smtp-from", config.SMTPFrom, "From address for confirmation email (overrides $SMTP_FROM)"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"reaperSchedule", *flags.reaperSchedule,
		"smtpHost_set", *flags.smtpHost != "")

	return flags
}

// openStore picks the Postgres backend for postgres-style DSNs and SQLite
// otherwise.
func openStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildNotifier assembles the notification service from whatever channels are
// configured. Missing credentials simply disable a channel.
func buildNotifier(flags Flags) *notify.Service {
	var sms notify.SMSSender
	if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		sender, err := notify.NewTwilioSender()
		if err != nil {
			slog.Warn("Twilio sender not configured, SMS disabled", "error", err)
		} else {
			sms = sender
		}
	} else {
		slog.Debug("TWILIO_ACCOUNT_SID not set, SMS disabled")
	}

	var email notify.EmailSender
	if *flags.smtpHost != "" && *flags.smtpFrom != "" {
		port := 587
		if p := os.Getenv("SMTP_PORT"); p != "" {
			if parsed, err := parsePort(p); err == nil {
				port = parsed
			} else {
				slog.Warn("Invalid SMTP_PORT, using default", "value", p, "default", port)
			}
		}
		email = notify.NewSMTPSender(*flags.smtpHost, port, *flags.smtpFrom, os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"))
	} else {
		slog.Debug("SMTP not configured, confirmation email disabled")
	}

	return notify.NewService(sms, email)
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, strconv.ErrRange
	}
	return port, nil
}
