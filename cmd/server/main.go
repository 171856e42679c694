// Package main implements the entry point for the taskhive server, which
// serves the task API and runs the reminder and recurrence jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/config"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/service/auth"
)

// cliFlags holds the one-shot commands accepted on the command line.
type cliFlags struct {
	migrate    string
	issueToken string
}

func parseFlags(args []string, output io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("taskhive", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.migrate, "migrate", "", "run a migration command (up|down|reset|status|version) and exit")
	fs.StringVar(&f.issueToken, "issue-token", "", "print an access token for the given user ID and exit")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

func main() {
	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	cfg, err := loadAppConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.migrate != "":
		err = runMigrations(ctx, cfg, flags.migrate, l)
	case flags.issueToken != "":
		err = issueToken(ctx, cfg, flags.issueToken, os.Stdout)
	default:
		err = run(ctx, cfg, l)
	}
	if err != nil {
		l.Error("taskhive exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadAppConfig loads the configuration and logs a summary without secrets.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"scheduler_enabled", cfg.Scheduler.Enabled)
	if cfg.Redis.URL != "" {
		slog.Debug("Redis configuration", "url_present", true)
	}
	return cfg, nil
}

// run starts the application and blocks until ctx is canceled or the HTTP
// server fails.
func run(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// issueToken prints a signed access token for userID. Token issuance is not
// part of the API; this exists for local development and operations.
func issueToken(ctx context.Context, cfg *config.Config, rawUserID string, out io.Writer) error {
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", rawUserID, err)
	}
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	token, err := jwtService.GenerateToken(ctx, userID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
