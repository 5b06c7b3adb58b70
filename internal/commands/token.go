package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docverify/pkg/platform/middleware/admin"
	"docverify/pkg/platform/middleware/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the /v1 API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSigningKey == "" {
				return errors.New("JWT_SIGNING_KEY is not set")
			}
			token, err := auth.Sign(cfg.Auth.JWTSigningKey, subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject recorded as submitted_by")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newAdminHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "admin-hash",
		Short: "Read an admin token from stdin and print its bcrypt hash for ADMIN_API_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no token on stdin")
			}
			hashed, err := admin.HashToken(strings.TrimSpace(line))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return err
		},
	}
}
