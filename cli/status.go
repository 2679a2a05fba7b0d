package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sabaini/chopsticks/cli/tui"
	"github.com/sabaini/chopsticks/cluster"
	"github.com/sabaini/chopsticks/metrics"
)

// StatusCommand returns the "status" action: an interactive dashboard (or,
// with --static, a single rendered snapshot) combining the Coordinator's
// presentation status and the local Metrics Daemon's family totals. It
// works on any unit, leader or worker.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show test state and metrics for this unit",
		Flags: append(CoordinatorFlags(),
			&cli.StringFlag{Name: "metrics-host", Value: "127.0.0.1", Usage: "metrics daemon host to poll"},
			&cli.IntFlag{Name: "metrics-port", Value: 9090, Usage: "metrics daemon port to poll"},
			&cli.DurationFlag{Name: "interval", Value: 2 * time.Second, Usage: "dashboard refresh interval"},
			&cli.BoolFlag{Name: "static", Usage: "print one snapshot and exit instead of an interactive dashboard"},
		),
		Action: func(c *cli.Context) error {
			coord, err := newCoordinator(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			metricsURL := fmt.Sprintf("http://%s:%d/metrics", c.String("metrics-host"), c.Int("metrics-port"))

			fetch := func() (tui.StatusSnapshot, error) {
				ctx := context.Background()
				if err := coord.Dispatch(ctx, cluster.EventUpdateStatus); err != nil {
					return tui.StatusSnapshot{}, err
				}
				test, err := coord.TestStatus(ctx)
				if err != nil {
					return tui.StatusSnapshot{}, err
				}
				snap := tui.StatusSnapshot{Status: coord.Status(), Test: test}
				if m, mErr := metrics.FetchSnapshot(metricsURL, 2*time.Second); mErr == nil {
					snap.Metrics = m
				}
				return snap, nil
			}

			if c.Bool("static") {
				snap, err := fetch()
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				fmt.Println(tui.RenderStatusStatic(snap))
				return nil
			}

			return tui.RunStatusTUI(fetch, c.Duration("interval"))
		},
	}
}
