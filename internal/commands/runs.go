package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"docverify/internal/platform/postgres"
	"docverify/internal/storage/results"
	"docverify/internal/verification/ports"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored run artifacts",
	}
	cmd.AddCommand(newRunsGetCmd())
	cmd.AddCommand(newRunsFindCmd())
	return cmd
}

func newRunsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Print the artifact of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var store ports.ResultStore
			if cfg.Storage.ResultBackend == "postgres" {
				db, err := postgres.Open(ctx, cfg.Postgres)
				if err != nil {
					return err
				}
				defer db.Close()
				store = results.NewPostgresStore(db)
			} else {
				fs, err := results.NewFSStore(cfg.Storage.ResultDir)
				if err != nil {
					return err
				}
				store = fs
			}

			artifact, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), artifact)
		},
	}
}

func newRunsFindCmd() *cobra.Command {
	var (
		code  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List recent runs that reported an error code (postgres backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.ResultBackend != "postgres" {
				return errors.New("runs find requires RESULT_BACKEND=postgres")
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			summaries, err := results.NewPostgresStore(db).ListByErrorCode(ctx, code, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summaries)
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Error code, e.g. FIO_MISMATCH")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of runs")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
