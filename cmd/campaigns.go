package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var (
	campaignName  string
	campaignQuery string
	campaignNotes string
)

var campaignsCmd = &cobra.Command{
	Use:   "campaigns",
	Short: "List campaigns with lead counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaigns, err := st.ListCampaigns(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(campaigns)
	},
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		campaign, err := st.CreateCampaign(ctx, campaignName, campaignQuery, campaignNotes)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(campaign)
	},
}

func init() {
	campaignCreateCmd.Flags().StringVar(&campaignName, "name", "", "campaign name (required)")
	campaignCreateCmd.Flags().StringVar(&campaignQuery, "query", "", "search query the campaign is built around")
	campaignCreateCmd.Flags().StringVar(&campaignNotes, "notes", "", "free-form notes")
	_ = campaignCreateCmd.MarkFlagRequired("name")

	campaignsCmd.AddCommand(campaignCreateCmd)
	rootCmd.AddCommand(campaignsCmd)
}
