// Package main is the supervisor and action-invocation CLI entrypoint:
// daemon start/stop/status subcommands plus the action surface
// (start-test/stop-test/test-status/fetch-metrics/status).
package main

import (
	"os"

	ourcli "github.com/sabaini/chopsticks/cli"
)

var commit = "unknown"

func main() {
	app := ourcli.App("dev", commit)
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
