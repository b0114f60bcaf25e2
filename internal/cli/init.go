// Package cli provides common CLI initialization utilities shared by
// cmd/nota and cmd/nota-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"nota/internal/backend"
	"nota/internal/config"
	applog "nota/internal/log"
)

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level, format string, w io.Writer) (*applog.Logger, error) {
	lvl, err := applog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	handler, err := applog.NewHandler(format, lvl, w)
	if err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     lvl,
		Format:    format,
		Component: applog.ComponentApp,
		Handler:   handler,
	})
	applog.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads .env files for local development. A missing file is
// not an error; a malformed one is.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend opens the configured store and returns a hydrated service.
func OpenBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	var l *slog.Logger
	if logger != nil {
		l = logger.Logger.With(applog.FieldComponent, applog.ComponentStorage)
	}
	return backend.NewFactory(l).CreateBackend(ctx, bcfg)
}

// Shutdowner is anything with a graceful, deadline-bound stop.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// GracefulShutdown waits for ctx to end and then stops srv within timeout.
// It is meant to run next to the server loop in an errgroup.
func GracefulShutdown(ctx context.Context, srv Shutdowner, timeout time.Duration) error {
	<-ctx.Done()
	slog.Info("Shutdown signal received", "reason", context.Cause(ctx))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}
