// Package cli wires the chopsticks and chopsticksd command-line surfaces
// on top of the supervisor, coordinator, and daemon packages.
package cli

import "github.com/urfave/cli/v2"

// DaemonFlags are the flags shared by every subcommand that needs to
// locate a metrics daemon's lifecycle files and listening address.
func DaemonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "HTTP bind host", Value: "0.0.0.0"},
		&cli.IntFlag{Name: "port", Usage: "HTTP bind port", Value: 9090},
		&cli.StringFlag{Name: "socket-path", Usage: "IPC socket path", Value: "/tmp/chopsticks_metrics.sock"},
		&cli.StringFlag{Name: "pid-file", Usage: "PID file path", Value: "/tmp/chopsticks_metrics.pid"},
		&cli.StringFlag{Name: "state-file", Usage: "State file path", Value: "/tmp/chopsticks_metrics_state.json"},
		&cli.BoolFlag{Name: "persistence-enabled", Usage: "whether the persistent metrics server is enabled", Value: true},
	}
}

// CoordinatorFlags locate the filesystem layout the Coordinator and its
// action handlers operate on.
func CoordinatorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "install-root", Usage: "scenario/driver install root", Value: "/var/lib/chopsticks/install"},
		&cli.StringFlag{Name: "config-dir", Usage: "credentials config directory", Value: "/var/lib/chopsticks/config"},
		&cli.StringFlag{Name: "data-dir", Usage: "metrics data directory", Value: "/var/lib/chopsticks/data"},
		&cli.StringFlag{Name: "venv-dir", Usage: "workload virtualenv directory", Value: "/var/lib/chopsticks/venv"},
		&cli.StringFlag{Name: "systemd-dir", Usage: "systemd unit directory", Value: "/etc/systemd/system"},
		&cli.StringFlag{Name: "unit-name", Usage: "this unit's stable identifier", Value: "chopsticks/0"},
		&cli.StringFlag{Name: "membership-state", Usage: "local single-node membership state file", Value: "/var/lib/chopsticks/membership.json"},
		&cli.IntFlag{Name: "leader-port", Usage: "workload leader bind port", Value: 5557},
		&cli.IntFlag{Name: "web-port", Usage: "workload web UI port", Value: 8089},
		&cli.StringFlag{Name: "log-level", Usage: "workload log level", Value: "INFO"},
	}
}
