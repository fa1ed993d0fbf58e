package main

import (
	"context"
	"fmt"
	"os"

	"github.com/parlatech/plenum/internal/snapshot"
	"github.com/parlatech/plenum/internal/store/postgres"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export the projection as JSONL",
	Long: `Export every session, law, and vote from the projection store as one
JSON object per line, for audit and reporting consumers. Connects directly
to the database (PLENUM_DATABASE_URL or --database-url), bypassing the
engine API.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseURL, _ := cmd.Flags().GetString("database-url")
		if databaseURL == "" {
			databaseURL = os.Getenv("PLENUM_DATABASE_URL")
		}
		if databaseURL == "" {
			return fmt.Errorf("a database is required: pass --database-url or set PLENUM_DATABASE_URL")
		}

		store, err := postgres.New(databaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		return snapshot.ExportJSONL(context.Background(), store, out)
	},
}

func init() {
	snapshotCmd.Flags().String("database-url", "", "projection database URL (defaults to PLENUM_DATABASE_URL)")
	snapshotCmd.Flags().String("output", "", "write to a file instead of stdout")
}
