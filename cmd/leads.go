package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var (
	leadsCampaign string
	leadsStatus   string
	leadsLimit    int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List stored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			CampaignID: leadsCampaign,
			Status:     model.LeadStatus(leadsStatus),
			Limit:      leadsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leads)
	},
}

var repliedLeadID string

var repliedCmd = &cobra.Command{
	Use:   "mark-replied",
	Short: "Mark a lead as replied, suppressing further follow-ups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.MarkReplied(ctx, repliedLeadID); err != nil {
			return err
		}
		zap.L().Info("lead marked replied", zap.String("lead_id", repliedLeadID))
		return nil
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsCampaign, "campaign", "", "filter by campaign ID")
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status (found|emailed|followed_up)")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 100, "maximum rows")
	rootCmd.AddCommand(leadsCmd)

	repliedCmd.Flags().StringVar(&repliedLeadID, "lead", "", "lead ID (required)")
	_ = repliedCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(repliedCmd)
}
