// Package commands implements the docverify command-line interface.
package commands

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"docverify/internal/platform/config"
	"docverify/internal/platform/logger"
)

// Execute runs the CLI application.
func Execute(version string) error {
	root := NewRootCmd(version)
	err := root.Execute()
	if err != nil {
		slog.Error("command failed", "error", err.Error())
	}
	return err
}

// NewRootCmd builds the command tree. Tests call it directly.
func NewRootCmd(version string) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "docverify",
		Short:         "Verify loan-deferment certificates and inspect stored runs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Read environment variables from this file when it exists")

	root.AddCommand(newVerifyCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newMatchCmd())
	root.AddCommand(newValidityCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newAdminHashCmd())
	return root
}

// loadConfig reads and validates the environment. The logger writes to
// stderr so stdout stays machine readable.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
