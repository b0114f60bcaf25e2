package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nota/internal/cli"
	"nota/internal/config"
	applog "nota/internal/log"
)

var version = "dev"

// app carries what the persistent pre-run resolved for the subcommands.
type app struct {
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
	dataPath  string
	backend   string

	cfg    *config.Config
	logger *applog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "nota",
		Short: "Catatan nota harian: penjualan dan pembelian",
		Long: `nota keeps daily sales/purchase notes (date, item, quantity, unit price)
in a CSV file or an SQLite database, shows per-day and overall totals,
and serves the "Tambah Nota" and "Kelola Nota" pages.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file (keys as lower-case env names)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (text, json)")
	flags.StringVar(&a.dataPath, "data", "", "CSV file or SQLite database, depending on --backend")
	flags.StringVar(&a.backend, "backend", "", "storage backend (csv, sqlite, memory)")

	root.AddCommand(
		a.serveCmd(),
		a.addCmd(),
		a.listCmd(),
		a.editCmd(),
		a.deleteCmd(),
		a.totalsCmd(),
		a.syncSheetsCmd(),
		versionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if err := cli.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.DataBackend = a.backend
	}
	if flags.Changed("data") {
		switch cfg.DataBackend {
		case "sqlite":
			cfg.SQLiteDBPath = a.dataPath
		default:
			cfg.CSVPath = a.dataPath
		}
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nota %s\n", version)
		},
	}
}
