package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/sabaini/chopsticks/cluster"
	"github.com/sabaini/chopsticks/config"
	"github.com/sabaini/chopsticks/coordinator"
	"github.com/sabaini/chopsticks/log"
	"github.com/sabaini/chopsticks/systemd"
)

// ActionCommands returns the action-surface subcommands: start-test,
// stop-test, test-status, fetch-metrics, status. Each constructs a Coordinator
// against LocalMembership, so a real cluster-management substrate can be
// substituted by swapping how newCoordinator resolves its
// cluster.MembershipService.
func ActionCommands() []*cli.Command {
	return []*cli.Command{
		startTestCommand(),
		stopTestCommand(),
		testStatusCommand(),
		fetchMetricsCommand(),
		StatusCommand(),
	}
}

func newCoordinator(c *cli.Context) (*coordinator.Coordinator, error) {
	membership, err := cluster.NewLocalMembership(c.String("unit-name"), c.String("membership-state"))
	if err != nil {
		return nil, err
	}

	creds, err := config.LoadS3Credentials(c.String("config-dir") + "/s3.yaml")
	if err != nil {
		creds = config.S3Credentials{}
	}

	paths := coordinator.Paths{
		InstallRoot:  c.String("install-root"),
		ConfigDir:    c.String("config-dir"),
		DataDir:      c.String("data-dir"),
		S3ConfigPath: c.String("config-dir") + "/s3.yaml",
		VenvDir:      c.String("venv-dir"),
		SystemdDir:   c.String("systemd-dir"),
	}
	locustCfg := coordinator.LocustConfig{
		LeaderPort:       c.Int("leader-port"),
		WebPort:          c.Int("web-port"),
		LogLevel:         c.String("log-level"),
		AutostartWorkers: true,
	}

	logger := log.NewLogger(log.UnitContext{UnitID: c.String("unit-name")})
	coord := coordinator.New(membership, systemd.NewSystemctlControl(), logger, paths, locustCfg)
	coord.SetCredentials(creds)
	return coord, nil
}

func startTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "start-test",
		Usage: "Start a test run on the leader unit",
		Flags: append(CoordinatorFlags(),
			&cli.StringFlag{Name: "users", Required: true, Usage: "target concurrent users"},
			&cli.StringFlag{Name: "spawn-rate", Required: true, Usage: "user spawn rate per second"},
			&cli.StringFlag{Name: "duration", Required: true, Usage: "run duration, e.g. 30s"},
			&cli.StringFlag{Name: "scenario-file", Required: true, Usage: "scenario file, relative to the install root"},
			&cli.BoolFlag{Name: "headless", Value: true, Usage: "run without the web UI"},
		),
		Action: func(c *cli.Context) error {
			coord, err := newCoordinator(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			result, err := coord.StartTest(context.Background(), coordinator.StartTestParams{
				Users:        c.String("users"),
				SpawnRate:    c.String("spawn-rate"),
				Duration:     c.String("duration"),
				ScenarioFile: c.String("scenario-file"),
				Headless:     c.Bool("headless"),
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("status=%s test-run-id=%s users=%d spawn-rate=%g duration=%s metrics-dir=%s\n",
				result.Status, result.TestRunID, result.Users, result.SpawnRate, result.Duration, result.MetricsDir)
			if result.WebURL != "" {
				fmt.Printf("web-ui=%s\n", result.WebURL)
			}
			return nil
		},
	}
}

func stopTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop-test",
		Usage: "Stop the current test run on the leader unit",
		Flags: CoordinatorFlags(),
		Action: func(c *cli.Context) error {
			coord, err := newCoordinator(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			result, err := coord.StopTest(context.Background())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("status=%s test-run-id=%s\n", result.Status, result.TestRunID)
			return nil
		},
	}
}

func testStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "test-status",
		Usage: "Report the current test run status (any unit)",
		Flags: CoordinatorFlags(),
		Action: func(c *cli.Context) error {
			coord, err := newCoordinator(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			result, err := coord.TestStatus(context.Background())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("test_state=%s test_run_id=%s leader_address=%s is_leader=%t leader_running=%t worker_running=%t peer_count=%d\n",
				result.TestState, result.TestRunID, result.LeaderAddress, result.IsLeader, result.LeaderRunning, result.WorkerRunning, result.PeerCount)
			return nil
		},
	}
}

func fetchMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch-metrics",
		Usage: "Package the current test run's metrics into an archive (leader only)",
		Flags: append(CoordinatorFlags(),
			&cli.StringFlag{Name: "format", Value: "tar.gz", Usage: "archive format"},
		),
		Action: func(c *cli.Context) error {
			coord, err := newCoordinator(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			result, err := coord.FetchMetrics(context.Background(), coordinator.FetchMetricsParams{Format: c.String("format")})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("archive=%s remote-ref=%s files=%v\n", result.ArchivePath, result.RemoteRef, result.Files)
			if result.Warning != "" {
				fmt.Printf("warning: %s\n", result.Warning)
			}
			if result.Preview != "" {
				fmt.Printf("\n--- preview ---\n%s\n", result.Preview)
			}
			return nil
		},
	}
}
