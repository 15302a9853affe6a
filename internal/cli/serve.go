package cli

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Handle API Gateway events inside AWS Lambda",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Lambda(cmd.Context())
	},
}
