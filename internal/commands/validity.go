package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docverify/internal/app"
	"docverify/internal/validity"
)

type validityReport struct {
	DocType      string              `json:"doc_type"`
	Known        bool                `json:"known"`
	IssueDate    string              `json:"issue_date"`
	Policy       validity.PolicyKind `json:"policy"`
	WindowDays   int                 `json:"window_days"`
	ValidUntil   *string             `json:"valid_until"`
	Now          string              `json:"now"`
	WithinWindow *bool               `json:"within_window"`
}

func newValidityCmd() *cobra.Command {
	var (
		docType string
		date    string
		at      string
	)
	cmd := &cobra.Command{
		Use:   "validity",
		Short: "Compute the validity deadline of a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, err := app.LoadCatalog(cfg)
			if err != nil {
				return err
			}

			now := time.Now()
			if at != "" {
				if now, err = validity.ParseDate(at); err != nil {
					return fmt.Errorf("--now %q: %w", at, err)
				}
			}

			code := docType
			if canonical, ok := catalog.Canonicalize(docType); ok {
				code = canonical
			}
			v := catalog.ValidityEngine().ComputeValidUntil(code, date)
			report := validityReport{
				DocType:      code,
				Known:        catalog.Known(code),
				IssueDate:    date,
				Policy:       v.Policy,
				WindowDays:   v.WindowDays,
				Now:          now.In(validity.Zone).Format(time.RFC3339),
				WithinWindow: validity.IsWithinValidity(v.Deadline, now),
			}
			if v.Deadline != nil {
				s := v.Deadline.Format(time.DateOnly)
				report.ValidUntil = &s
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&docType, "type", "", "Document type code or alias")
	cmd.Flags().StringVar(&date, "date", "", "Issue date, YYYY-MM-DD or DD.MM.YYYY")
	cmd.Flags().StringVar(&at, "now", "", "Evaluate at this date instead of today")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
