// Package main is the Metrics Daemon process entrypoint: a long-running
// process that ingests workload-reported operation records over a Unix
// socket and exposes them as Prometheus metrics over HTTP, until asked to
// stop by its supervisor or by a termination signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	ourcli "github.com/sabaini/chopsticks/cli"
	"github.com/sabaini/chopsticks/daemon"
	"github.com/sabaini/chopsticks/log"
)

var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "chopsticksd",
		Usage:          "Run the chopsticks metrics daemon in the foreground",
		Version:        fmt.Sprintf("dev (commit: %s)", commit),
		ExitErrHandler: ourcli.ExitErrHandler,
		Flags:          ourcli.DaemonFlags(),
		Action:         run,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := daemon.Config{
		Host:       c.String("host"),
		Port:       c.Int("port"),
		SocketPath: c.String("socket-path"),
		PIDFile:    c.String("pid-file"),
		StateFile:  c.String("state-file"),
	}

	logger := log.NewLogger(log.UnitContext{UnitID: "chopsticksd"})
	d := daemon.New(cfg, logger)

	if err := d.Listen(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := d.Run(ctx); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
