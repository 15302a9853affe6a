package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tvwebhook/internal/app"
	"tvwebhook/internal/query"
)

var (
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the most recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < query.MinCount || showLimit > query.MaxCount {
			return fmt.Errorf("--limit must be between %d and %d", query.MinCount, query.MaxCount)
		}

		opts := app.ShowOptions{
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", query.DefaultCount, "Number of alerts to display")
}
