package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/draft"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
)

var (
	draftLeadID  string
	draftContext string
	draftSave    bool
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Generate a cold email for a stored lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("discover"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, draftLeadID)
		if err != nil {
			return err
		}

		drafter := draft.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.DraftModel)
		email, err := drafter.ColdEmail(ctx, lead, draftContext)
		if err != nil {
			return eris.Wrap(err, "draft email")
		}

		if draftSave {
			if err := st.UpdateLeadEmail(ctx, lead.ID, email.Subject, email.Body); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(email)
	},
}

func init() {
	draftCmd.Flags().StringVar(&draftLeadID, "lead", "", "lead ID (required)")
	draftCmd.Flags().StringVar(&draftContext, "context", "", "sender context to personalize the email")
	draftCmd.Flags().BoolVar(&draftSave, "save", false, "persist the drafted email on the lead")
	_ = draftCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(draftCmd)
}
