// Package runner builds the argv contract for the Locust workload
// processes that actually drive S3 traffic (their environment is set by
// the systemd unit renderer). The coordinator never
// execs these processes itself — it hands the built command line to the
// systemd package, which renders it into a unit file and starts it via
// systemctl. Keeping the contract here, independent of both the unit
// renderer and the coordinator, lets each be tested without the other two.
package runner

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Role identifies which part a workload process plays in a test run.
type Role string

const (
	// RoleLeaderHeadless runs the Locust master with no web UI, driving a
	// fixed user count for a fixed duration and writing CSV/HTML reports.
	RoleLeaderHeadless Role = "leader-headless"
	// RoleLeaderWebUI runs the Locust master with its web UI exposed,
	// leaving load parameters to be set interactively.
	RoleLeaderWebUI Role = "leader-webui"
	// RoleWorker runs a Locust worker that connects out to a leader.
	RoleWorker Role = "worker"
)

// Spec holds every parameter needed to build an argv for any Role. Fields
// irrelevant to a given Role are ignored by BuildArgv for that Role.
type Spec struct {
	ScenarioPath string
	LeaderPort   int
	WebPort      int
	LogLevel     string

	// Leader-headless only.
	Users      int
	SpawnRate  float64
	Duration   string
	TestRunID  string
	DataDir    string

	// Worker only.
	LeaderHost string
}

// csvPrefix and htmlReportPath are the report file paths a headless run
// writes into, keyed by the test run's own ID so concurrent or successive
// runs never collide.
func (s Spec) csvPrefix() string {
	return filepath.Join(s.DataDir, s.TestRunID, "metrics")
}

func (s Spec) htmlReportPath() string {
	return filepath.Join(s.DataDir, s.TestRunID, "report.html")
}

// BuildArgv returns the locust command-line arguments for role, in the
// order the original charm's systemd units lay them out. The caller is
// expected to prefix this with the interpreter/locust executable path.
func BuildArgv(role Role, s Spec) ([]string, error) {
	loglevel := s.LogLevel
	if loglevel == "" {
		loglevel = "INFO"
	}

	switch role {
	case RoleLeaderHeadless:
		if s.TestRunID == "" {
			return nil, fmt.Errorf("runner: leader-headless requires a test run ID")
		}
		return []string{
			"-f", s.ScenarioPath,
			"--master",
			"--master-bind-port=" + strconv.Itoa(s.LeaderPort),
			"--loglevel=" + loglevel,
			"--headless",
			"--users=" + strconv.Itoa(s.Users),
			"--spawn-rate=" + formatRate(s.SpawnRate),
			"--run-time=" + s.Duration,
			"--csv=" + s.csvPrefix(),
			"--html=" + s.htmlReportPath(),
		}, nil

	case RoleLeaderWebUI:
		return []string{
			"-f", s.ScenarioPath,
			"--master",
			"--master-bind-port=" + strconv.Itoa(s.LeaderPort),
			"--loglevel=" + loglevel,
			"--web-port=" + strconv.Itoa(s.WebPort),
		}, nil

	case RoleWorker:
		if s.LeaderHost == "" {
			return nil, fmt.Errorf("runner: worker requires a leader host")
		}
		return []string{
			"-f", s.ScenarioPath,
			"--worker",
			"--master-host=" + s.LeaderHost,
			"--master-port=" + strconv.Itoa(s.LeaderPort),
			"--loglevel=" + loglevel,
		}, nil

	default:
		return nil, fmt.Errorf("runner: unknown role %q", role)
	}
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
