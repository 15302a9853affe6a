package cli

import (
	"time"

	"github.com/spf13/cobra"

	"tvwebhook/internal/app"
)

var (
	sendURL      string
	sendSamples  []string
	sendTest     bool
	sendCount    int
	sendInterval time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Post sample alerts to a running service and read them back",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Send(cmd.Context(), app.SendOptions{
			BaseURL:  sendURL,
			Samples:  sendSamples,
			Test:     sendTest,
			Count:    sendCount,
			Interval: sendInterval,
		})
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendURL, "url", "", "Service base URL (defaults to client.base_url)")
	sendCmd.Flags().StringSliceVar(&sendSamples, "sample", nil, "Sample alerts to post: buy, profit, loss (default all)")
	sendCmd.Flags().BoolVar(&sendTest, "test", false, "Call the /test endpoint")
	sendCmd.Flags().IntVar(&sendCount, "count", 5, "Number of alerts to read back")
	sendCmd.Flags().DurationVar(&sendInterval, "interval", time.Second, "Pause between posts")
}
