package commands

import (
	"github.com/spf13/cobra"

	"docverify/internal/identity/namematch"
)

func newMatchCmd() *cobra.Command {
	var (
		claimed   string
		extracted string
		strict    bool
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Compare a claimed full name with an extracted one",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := namematch.New(
				namematch.WithFuzzy(!strict),
				namematch.WithThreshold(threshold),
			)
			return printJSON(cmd.OutOrStdout(), m.Match(claimed, extracted))
		},
	}
	cmd.Flags().StringVar(&claimed, "claimed", "", "Name as entered by the applicant")
	cmd.Flags().StringVar(&extracted, "extracted", "", "Name as read from the document")
	cmd.Flags().BoolVar(&strict, "strict", false, "Disable the fuzzy fallback")
	cmd.Flags().Float64Var(&threshold, "threshold", namematch.DefaultFuzzyThreshold, "Fuzzy score a match must reach")
	_ = cmd.MarkFlagRequired("claimed")
	_ = cmd.MarkFlagRequired("extracted")
	return cmd
}
