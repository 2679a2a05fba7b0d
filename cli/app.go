package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// App builds the "chopsticks" CLI: daemon lifecycle management plus the
// action surface (start-test/stop-test/test-status/fetch-metrics/status).
// version is the module version string; commit is set by the caller via
// ldflags.
func App(version, commit string) *cli.App {
	return &cli.App{
		Name:           "chopsticks",
		Usage:          "Coordinate and observe a distributed load-generation test run",
		Version:        fmt.Sprintf("%s (commit: %s)", version, commit),
		ExitErrHandler: ExitErrHandler,
		Commands: []*cli.Command{
			DaemonCommand(),
			startTestCommand(),
			stopTestCommand(),
			testStatusCommand(),
			fetchMetricsCommand(),
			StatusCommand(),
		},
	}
}

// ExitErrHandler preserves exit codes set via cli.Exit across the action
// surface, so a failed guard (e.g. "not the leader") reports a non-zero
// exit code without urfave/cli's default double-printing of the message.
func ExitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
