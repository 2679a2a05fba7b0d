package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabaini/chopsticks/archive"
	"github.com/sabaini/chopsticks/cluster"
	"github.com/sabaini/chopsticks/runner"
	"github.com/sabaini/chopsticks/systemd"
)

// notLeaderMessage is the error text, prefixed with the action name, that
// every leader-only action returns on a non-leader unit. There is no
// sentinel error value: callers match on the substring "leader", since
// the action surface is exposed as plain strings to the invoking side.
const notLeaderMessage = "action requires the leader unit"

// readinessPoll and readinessTimeout bound the wait for the leader
// workload's unit to report active before start-test returns, narrowing
// the race where a slow host reports "started" before the workload is
// really listening.
const (
	readinessPoll    = 200 * time.Millisecond
	readinessTimeout = 5 * time.Second
)

// StartTestParams are the raw, unparsed arguments to StartTest. Users and
// SpawnRate arrive as strings because the action surface is untyped RPC;
// parsing failures are guard failures, not programmer errors.
type StartTestParams struct {
	Users        string
	SpawnRate    string
	Duration     string
	ScenarioFile string
	Headless     bool
}

// StartTestResult is returned to the action caller on success.
type StartTestResult struct {
	TestRunID  string
	Status     string
	Users      int
	SpawnRate  float64
	Duration   string
	MetricsDir string
	WebURL     string // empty for headless runs
}

// StartTest allocates a new test run and starts the leader workload,
// enforcing the ordered guards from the action's precondition contract.
// Any guard failure returns an error and leaves peer state untouched.
func (c *Coordinator) StartTest(ctx context.Context, p StartTestParams) (StartTestResult, error) {
	var zero StartTestResult

	if !c.membership.IsLeader() {
		return zero, fmt.Errorf("start-test: %s", notLeaderMessage)
	}

	if !c.desiredCreds.Valid() {
		return zero, fmt.Errorf("start-test: configuration is invalid or incomplete")
	}

	state, _ := c.membership.GetPeerData(cluster.KeyTestState)
	if DefaultIfEmpty(state) == TestStateRunning {
		return zero, fmt.Errorf("start-test: a test is already running")
	}

	users, err := strconv.Atoi(strings.TrimSpace(p.Users))
	if err != nil || users <= 0 {
		return zero, fmt.Errorf("start-test: invalid numeric value for users: %q", p.Users)
	}
	spawnRate, err := strconv.ParseFloat(strings.TrimSpace(p.SpawnRate), 64)
	if err != nil || spawnRate <= 0 {
		return zero, fmt.Errorf("start-test: invalid numeric value for spawn-rate: %q", p.SpawnRate)
	}

	scenarioAbs := filepath.Join(c.paths.InstallRoot, p.ScenarioFile)
	info, err := os.Stat(scenarioAbs)
	if err != nil || info.IsDir() {
		return zero, fmt.Errorf("start-test: scenario file %q does not exist under the install root", p.ScenarioFile)
	}

	testRunID := uuid.NewString()
	metricsDir := filepath.Join(c.paths.DataDir, testRunID)
	if err := os.MkdirAll(metricsDir, 0o755); err != nil {
		return zero, fmt.Errorf("start-test: failed to create metrics directory: %w", err)
	}

	c.stopAllServices(ctx)

	role := runner.RoleLeaderHeadless
	if !p.Headless {
		role = runner.RoleLeaderWebUI
	}
	spec := runner.Spec{
		ScenarioPath: scenarioAbs,
		LeaderPort:   c.locustCfg.LeaderPort,
		WebPort:      c.locustCfg.WebPort,
		LogLevel:     c.locustCfg.LogLevel,
		Users:        users,
		SpawnRate:    spawnRate,
		Duration:     p.Duration,
		TestRunID:    testRunID,
		DataDir:      c.paths.DataDir,
		LeaderHost:   "0.0.0.0",
	}

	if err := c.startLeaderWorkload(ctx, role, spec); err != nil {
		_ = c.membership.SetPeerData(cluster.KeyTestState, string(TestStateFailed))
		return zero, fmt.Errorf("start-test: failed to start leader workload: %w", err)
	}

	if err := c.writeTestStartedPeerState(testRunID, p.ScenarioFile); err != nil {
		_ = c.membership.SetPeerData(cluster.KeyTestState, string(TestStateFailed))
		return zero, fmt.Errorf("start-test: failed to publish test state: %w", err)
	}

	c.waitForLeaderReadiness(ctx, role)
	c.refreshStatus(ctx)

	result := StartTestResult{
		TestRunID:  testRunID,
		Status:     "started",
		Users:      users,
		SpawnRate:  spawnRate,
		Duration:   p.Duration,
		MetricsDir: metricsDir,
	}
	if !p.Headless {
		addr, _ := c.membership.PrivateAddress()
		result.WebURL = fmt.Sprintf("http://%s:%d", addr, c.locustCfg.WebPort)
	}
	return result, nil
}

func (c *Coordinator) startLeaderWorkload(ctx context.Context, role runner.Role, spec runner.Spec) error {
	if _, err := systemd.WriteUnit(role, spec, c.paths.systemdPaths()); err != nil {
		return err
	}
	if err := c.control.DaemonReload(ctx); err != nil {
		return err
	}
	unit := systemd.UnitLeaderHeadless
	if role == runner.RoleLeaderWebUI {
		unit = systemd.UnitLeaderWebUI
	}
	return c.control.Start(ctx, unit)
}

func (c *Coordinator) writeTestStartedPeerState(testRunID, scenarioFile string) error {
	if err := c.membership.SetPeerData(cluster.KeyTestState, string(TestStateRunning)); err != nil {
		return err
	}
	if err := c.membership.SetPeerData(cluster.KeyTestRunID, testRunID); err != nil {
		return err
	}
	return c.membership.SetPeerData(cluster.KeyScenario, scenarioFile)
}

// waitForLeaderReadiness polls, best-effort and bounded, for the started
// unit to report active before returning. This resolves the open question
// on whether "status: started" may race ahead of the workload actually
// listening: we choose to narrow, not eliminate, the race.
func (c *Coordinator) waitForLeaderReadiness(ctx context.Context, role runner.Role) {
	unit := systemd.UnitLeaderHeadless
	if role == runner.RoleLeaderWebUI {
		unit = systemd.UnitLeaderWebUI
	}

	deadline := time.Now().Add(readinessTimeout)
	for time.Now().Before(deadline) {
		active, err := c.control.IsActive(ctx, unit)
		if err == nil && active {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(readinessPoll):
		}
	}
}

// StopTestResult is returned by StopTest.
type StopTestResult struct {
	Status    string
	TestRunID string
}

// StopTest stops both leader workload variants and marks the current run
// stopped. Leader-only.
func (c *Coordinator) StopTest(ctx context.Context) (StopTestResult, error) {
	if !c.membership.IsLeader() {
		return StopTestResult{}, fmt.Errorf("stop-test: %s", notLeaderMessage)
	}

	_ = c.control.Stop(ctx, systemd.UnitLeaderHeadless)
	_ = c.control.Stop(ctx, systemd.UnitLeaderWebUI)

	testRunID, _ := c.membership.GetPeerData(cluster.KeyTestRunID)
	if err := c.membership.SetPeerData(cluster.KeyTestState, string(TestStateStopped)); err != nil {
		return StopTestResult{}, fmt.Errorf("stop-test: failed to publish test state: %w", err)
	}

	c.refreshStatus(ctx)
	return StopTestResult{Status: string(TestStateStopped), TestRunID: testRunID}, nil
}

// TestStatusResult is returned by TestStatus. Allowed on any unit.
type TestStatusResult struct {
	TestState     string
	TestRunID     string
	LeaderAddress string
	IsLeader      bool
	LeaderRunning bool
	WorkerRunning bool
	PeerCount     int
}

// TestStatus returns a point-in-time snapshot. It is the only action
// permitted on a non-leader unit.
func (c *Coordinator) TestStatus(ctx context.Context) (TestStatusResult, error) {
	state, _ := c.membership.GetPeerData(cluster.KeyTestState)
	testRunID, _ := c.membership.GetPeerData(cluster.KeyTestRunID)
	leaderAddr, _ := c.membership.GetPeerData(cluster.KeyLeaderAddr)

	leaderRunning, err := c.leaderRunning(ctx)
	if err != nil {
		return TestStatusResult{}, fmt.Errorf("test-status: failed to query leader workload: %w", err)
	}
	workerRunning, err := c.control.IsActive(ctx, systemd.UnitWorker)
	if err != nil {
		return TestStatusResult{}, fmt.Errorf("test-status: failed to query worker workload: %w", err)
	}

	return TestStatusResult{
		TestState:     string(DefaultIfEmpty(state)),
		TestRunID:     testRunID,
		LeaderAddress: leaderAddr,
		IsLeader:      c.membership.IsLeader(),
		LeaderRunning: leaderRunning,
		WorkerRunning: workerRunning,
		PeerCount:     c.membership.PeerUnitCount(),
	}, nil
}

// FetchMetricsParams are the arguments to FetchMetrics.
type FetchMetricsParams struct {
	Format string // reserved for future archive formats; only tar.gz today
}

// FetchMetricsResult is returned by FetchMetrics. RemoteRef names the
// archive's location as "unit:path" so any out-of-band file transfer tool
// can retrieve it; this action never ships bytes itself.
type FetchMetricsResult struct {
	ArchivePath string
	RemoteRef   string
	Files       []string
	Preview     string
	Warning     string
}

const statsPreviewBytes = 2048

// FetchMetrics packages the current test run's metrics directory into a
// gzipped tar archive. Leader-only.
func (c *Coordinator) FetchMetrics(ctx context.Context, p FetchMetricsParams) (FetchMetricsResult, error) {
	var zero FetchMetricsResult

	if !c.membership.IsLeader() {
		return zero, fmt.Errorf("fetch-metrics: %s", notLeaderMessage)
	}

	testRunID, _ := c.membership.GetPeerData(cluster.KeyTestRunID)
	if testRunID == "" {
		return zero, fmt.Errorf("fetch-metrics: no test run has ever started on this unit")
	}

	runDir := filepath.Join(c.paths.DataDir, testRunID)
	if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
		return zero, fmt.Errorf("fetch-metrics: run directory for %s is missing", testRunID)
	}

	archivePath := filepath.Join(os.TempDir(), fmt.Sprintf("chopsticks-metrics-%s.tar.gz", testRunID))
	files, err := archive.CreateTarGz(runDir, archivePath)
	if err != nil {
		return zero, fmt.Errorf("fetch-metrics: failed to package metrics: %w", err)
	}

	result := FetchMetricsResult{
		ArchivePath: archivePath,
		RemoteRef:   fmt.Sprintf("%s:%s", c.membership.UnitName(), archivePath),
		Files:       files,
	}

	result.Preview = previewStatsFile(runDir, files)

	state, _ := c.membership.GetPeerData(cluster.KeyTestState)
	if DefaultIfEmpty(state) == TestStateRunning {
		result.Warning = "test is still running; metrics are incomplete"
	}

	return result, nil
}

func previewStatsFile(runDir string, files []string) string {
	for _, name := range files {
		if name == "metrics_stats.csv" {
			b, err := os.ReadFile(filepath.Join(runDir, name))
			if err != nil {
				return ""
			}
			if len(b) > statsPreviewBytes {
				b = b[:statsPreviewBytes]
			}
			return string(b)
		}
	}
	return ""
}
