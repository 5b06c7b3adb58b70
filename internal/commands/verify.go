package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"docverify/internal/app"
	"docverify/internal/verification"
	"docverify/internal/verification/models"
)

func newVerifyCmd() *cobra.Command {
	var (
		file        string
		fio         string
		contentType string
		meta        []string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run one document through the pipeline and print the artifact",
		Long: `Runs the full pipeline with the collaborators and stores configured in the
environment, stores the artifact and prints it. Use --file - to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			src, err := readSource(cmd, file, contentType)
			if err != nil {
				return err
			}
			metadata["submitted_by"] = "cli"

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			application, err := app.Build(ctx, cfg, log,
				app.WithoutJobs(),
				app.WithRegisterer(prometheus.NewRegistry()),
			)
			if err != nil {
				return err
			}
			defer func() { _ = application.Close(ctx) }()

			res, err := application.Orchestrator.Run(ctx, verification.RunRequest{
				ClaimedFIO: fio,
				Source:     src,
				Metadata:   metadata,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res.Artifact); err != nil {
				return err
			}
			return res.Failure()
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path of the document to verify (- for stdin)")
	cmd.Flags().StringVar(&fio, "fio", "", "Full name the applicant claims")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Declared content type (default: detected from the file)")
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Extra metadata as key=value, repeatable")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("fio")
	return cmd
}

func readSource(cmd *cobra.Command, path, contentType string) (models.Source, error) {
	var (
		data []byte
		err  error
		name = filepath.Base(path)
	)
	if path == "-" {
		name = "stdin"
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return models.Source{Filename: name, ContentType: contentType, Data: data}, nil
}

func parseMetadata(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs)+1)
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New("metadata must be key=value: " + p)
		}
		out[k] = v
	}
	return out, nil
}
