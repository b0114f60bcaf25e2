package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"nota/internal/amqp"
	"nota/internal/backend"
	"nota/internal/cli"
	"nota/internal/config"
	applog "nota/internal/log"
	"nota/internal/sheets/google"
	"nota/internal/worker"
)

func main() {
	configFile := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile, *envFile); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile, envFile string) error {
	if err := cli.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := cli.LoadAndValidateConfig(configFile)
	if err != nil {
		return err
	}
	if err := checkWorkerConfig(cfg); err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.InfoContext(ctx, "Starting nota-worker",
		"backend", cfg.DataBackend,
		"queue", cfg.AMQPQueue,
		"sync_interval", cfg.SyncInterval)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.NewStore(bcfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sheetsClient, err := google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(store, sheetsClient)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeChanges(gctx, syncWorker.HandleChange)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// Catches changes whose messages were lost while the broker was down.
		return syncWorker.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "Worker stopped with error", "error", err)
		return err
	}
	logger.InfoContext(ctx, "Worker shutdown complete", "syncs", syncWorker.Syncs())
	return nil
}

// checkWorkerConfig rejects settings under which the worker has nothing to do.
func checkWorkerConfig(cfg *config.Config) error {
	var problems []error
	if cfg.AMQPURL == "" {
		problems = append(problems, errors.New("AMQP_URL is required for the worker"))
	}
	if !cfg.SheetsEnabled() {
		problems = append(problems, errors.New("GOOGLE_SPREADSHEET_ID is required for the worker"))
	}
	if cfg.DataBackend == string(backend.MemoryBackend) {
		problems = append(problems, errors.New("the memory backend is private to one process; use csv or sqlite"))
	}
	return errors.Join(problems...)
}
