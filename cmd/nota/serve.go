package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"nota/internal/cli"
	apphttp "nota/internal/http"
)

const shutdownTimeout = 30 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var rpm int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the nota pages and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			res, err := cli.OpenBackend(ctx, a.logger, a.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					a.logger.ErrorContext(ctx, "Failed to close backend", "error", err)
				}
			}()

			srv, err := apphttp.NewServer(":"+a.cfg.Port, res.Service, apphttp.Options{
				Logger:            a.logger,
				RequestsPerMinute: rpm,
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.InfoContext(gctx, "Starting nota server",
					"port", a.cfg.Port,
					"backend", a.cfg.DataBackend,
					"records", res.Service.Len())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen on %s: %w", srv.Addr, err)
				}
				return nil
			})
			g.Go(func() error {
				return cli.GracefulShutdown(gctx, srv, shutdownTimeout)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	cmd.Flags().IntVar(&rpm, "rate-limit", 60, "mutating requests per minute per client")
	return cmd
}
