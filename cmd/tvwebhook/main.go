package main

import "tvwebhook/internal/cli"

func main() {
	cli.Execute()
}
