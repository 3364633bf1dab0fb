package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/draft"
)

var (
	sendLeadID  string
	sendContext string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send the initial outreach email to a lead",
	Long:  "Sends the lead's drafted email, drafting one first if none is stored. On success the lead transitions to emailed and its follow-up is scheduled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initOutreach(ctx, sendContext)
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Store.GetLead(ctx, sendLeadID)
		if err != nil {
			return err
		}

		email := draft.Email{Subject: lead.EmailSubject, Body: lead.EmailBody}
		if email.Subject == "" || email.Body == "" {
			drafted, err := env.Drafter.ColdEmail(ctx, lead, sendContext)
			if err != nil {
				return eris.Wrap(err, "draft before send")
			}
			email = *drafted
		}

		if err := env.Sender.SendInitial(ctx, lead.ID, email); err != nil {
			return err
		}

		zap.L().Info("sent", zap.String("lead_id", lead.ID), zap.String("email", lead.Email))
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendLeadID, "lead", "", "lead ID (required)")
	sendCmd.Flags().StringVar(&sendContext, "context", "", "sender context used if drafting is needed")
	_ = sendCmd.MarkFlagRequired("lead")
	rootCmd.AddCommand(sendCmd)
}
