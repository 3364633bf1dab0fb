package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	discoverQuery    string
	discoverContext  string
	discoverCampaign string
	discoverMax      int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover and persist leads for a search query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initDiscovery(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if discoverCampaign != "" {
			if _, err := env.Store.GetCampaign(ctx, discoverCampaign); err != nil {
				return eris.Wrapf(err, "campaign %s", discoverCampaign)
			}
		}

		report, err := env.Pipeline.Discover(ctx, pipeline.DiscoverRequest{
			Query:       discoverQuery,
			UserContext: discoverContext,
			CampaignID:  discoverCampaign,
			MaxLeads:    discoverMax,
		})
		if err != nil {
			return eris.Wrap(err, "discovery run")
		}

		if report.SearchDegraded {
			zap.L().Warn("search was degraded, results may be incomplete")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverQuery, "query", "", "free-text company search query (required)")
	discoverCmd.Flags().StringVar(&discoverContext, "context", "", "extra intent context for validation and drafting")
	discoverCmd.Flags().StringVar(&discoverCampaign, "campaign", "", "campaign ID to attach leads to")
	discoverCmd.Flags().IntVar(&discoverMax, "max-leads", 10, "maximum leads to persist")
	_ = discoverCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(discoverCmd)
}
