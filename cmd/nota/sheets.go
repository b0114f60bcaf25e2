package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"nota/internal/backend"
	"nota/internal/cli"
	"nota/internal/sheets/google"
	"nota/internal/worker"
)

func (a *app) syncSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-sheets",
		Short: "Push the whole collection to the configured Google Sheet once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !a.cfg.SheetsEnabled() {
				return errors.New("sheets mirror disabled: set GOOGLE_SPREADSHEET_ID")
			}

			bcfg, err := backend.FromAppConfig(a.cfg)
			if err != nil {
				return err
			}
			store, err := backend.NewStore(bcfg)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := google.New(ctx, google.Options{
				SpreadsheetID:   a.cfg.GoogleSpreadsheetID,
				SheetName:       a.cfg.GoogleSheetName,
				CredentialsJSON: a.cfg.GoogleServiceAccountJSON,
				CredentialsFile: a.cfg.GoogleServiceAccountFile,
			})
			if err != nil {
				return err
			}

			if err := worker.NewSyncWorker(store, client).SyncNow(ctx); err != nil {
				return err
			}
			mirrored, err := client.ReadAll(ctx)
			if err != nil {
				return fmt.Errorf("read back mirror: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("%d nota mirrored to sheet %q", len(mirrored), a.cfg.GoogleSheetName)))
			return nil
		},
	}
}
