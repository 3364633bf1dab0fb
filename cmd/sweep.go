package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sweepContext string
	sweepWatch   bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send follow-ups to leads whose follow-up date has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initOutreach(ctx, sweepContext)
		if err != nil {
			return err
		}
		defer env.Close()

		if sweepWatch {
			env.Scheduler.Start(ctx)
			return nil
		}

		sent, err := env.Scheduler.RunSweep(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("sweep complete", zap.Int("sent", sent))
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepContext, "context", "", "sender context for follow-up drafting")
	sweepCmd.Flags().BoolVar(&sweepWatch, "watch", false, "keep sweeping at the configured interval")
	rootCmd.AddCommand(sweepCmd)
}
