package cli

import (
	"github.com/spf13/cobra"
)

var simulateSample string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Deliver a sample alert through the configured notifier without storing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), simulateSample)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSample, "sample", "buy", "Sample alert: buy, profit or loss")
}
