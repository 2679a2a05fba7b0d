package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/sabaini/chopsticks/daemon"
	"github.com/sabaini/chopsticks/supervisor"
)

// DaemonCommand returns the "daemon" command group: start/stop/status for
// the metrics daemon, driven through the supervisor package.
func DaemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Manage the metrics daemon process",
		Subcommands: []*cli.Command{
			daemonStartCommand(),
			daemonStopCommand(),
			daemonStatusCommand(),
		},
	}
}

func binaryPathFlag() cli.Flag {
	return &cli.StringFlag{Name: "binary-path", Usage: "path to the chopsticksd binary", Value: "chopsticksd"}
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{Name: "force", Usage: "stop and restart an already-running daemon"}
}

func supervisorFromContext(c *cli.Context) *supervisor.Supervisor {
	cfg := supervisor.Config{
		Config: daemon.Config{
			Host:       c.String("host"),
			Port:       c.Int("port"),
			SocketPath: c.String("socket-path"),
			PIDFile:    c.String("pid-file"),
			StateFile:  c.String("state-file"),
		},
		BinaryPath:         c.String("binary-path"),
		PersistenceEnabled: c.Bool("persistence-enabled"),
	}
	return supervisor.New(cfg)
}

func daemonStartCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start the metrics daemon if it is not already running",
		Flags: append(DaemonFlags(), binaryPathFlag(), forceFlag()),
		Action: func(c *cli.Context) error {
			s := supervisorFromContext(c)
			force := c.Bool("force")

			running, err := s.IsRunning()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if running {
				if !force {
					status, _, _ := s.Status()
					fmt.Printf("metrics daemon already running: pid=%d %s:%d\n", status.PID, status.Host, status.Port)
					fmt.Println("use --force to stop and restart")
					return nil
				}
				fmt.Println("metrics daemon already running, stopping it (--force)")
			}
			if err := s.Start(force); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Println("metrics daemon started")
			return nil
		},
	}
}

func daemonStopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Stop the running metrics daemon",
		Flags: DaemonFlags(),
		Action: func(c *cli.Context) error {
			s := supervisorFromContext(c)
			if err := s.Stop(); err != nil {
				fmt.Println(err.Error())
				return nil
			}
			fmt.Println("metrics daemon stopped")
			return nil
		},
	}
}

func daemonStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report whether the metrics daemon is running",
		Flags: DaemonFlags(),
		Action: func(c *cli.Context) error {
			s := supervisorFromContext(c)
			state, running, err := s.Status()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if !running {
				fmt.Println("metrics daemon is not running")
				return nil
			}
			fmt.Printf("metrics daemon running: pid=%d addr=%s:%d started=%s\n",
				state.PID, state.Host, state.Port, state.StartedAt)
			return nil
		},
	}
}
