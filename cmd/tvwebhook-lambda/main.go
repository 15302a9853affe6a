// Command tvwebhook-lambda is the Lambda bootstrap. Configuration comes from
// TVWEBHOOK_* environment variables.
package main

import "tvwebhook/internal/cli"

func main() {
	cli.ExecuteArgs([]string{"lambda"})
}
