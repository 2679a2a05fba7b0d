package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sabaini/chopsticks/cluster"
	"github.com/sabaini/chopsticks/systemd"
)

func writeScenario(t *testing.T, c *Coordinator, name string) string {
	t.Helper()
	path := filepath.Join(c.paths.InstallRoot, name)
	if err := os.WriteFile(path, []byte("# scenario\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return name
}

func TestStartTestThenTestStatusRoundTrip(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	c.SetCredentials(validCreds())
	scenario := writeScenario(t, c, "scenario.py")

	res, err := c.StartTest(context.Background(), StartTestParams{
		Users: "10", SpawnRate: "1.0", Duration: "20s", ScenarioFile: scenario, Headless: true,
	})
	if err != nil {
		t.Fatalf("StartTest: %v", err)
	}
	if res.Status != "started" || res.TestRunID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	status, err := c.TestStatus(context.Background())
	if err != nil {
		t.Fatalf("TestStatus: %v", err)
	}
	if status.TestState != string(TestStateRunning) {
		t.Fatalf("test_state = %q, want running", status.TestState)
	}
	if status.TestRunID != res.TestRunID {
		t.Fatalf("test_run_id mismatch: %q != %q", status.TestRunID, res.TestRunID)
	}
	if !status.LeaderRunning {
		t.Fatalf("expected leader_running = true")
	}
}

func TestStartTestStopTestStatusRoundTrip(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	c.SetCredentials(validCreds())
	scenario := writeScenario(t, c, "scenario.py")

	started, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "0.5", Duration: "20s", ScenarioFile: scenario, Headless: true,
	})
	if err != nil {
		t.Fatalf("StartTest: %v", err)
	}

	stopped, err := c.StopTest(context.Background())
	if err != nil {
		t.Fatalf("StopTest: %v", err)
	}
	if stopped.TestRunID != started.TestRunID {
		t.Fatalf("test_run_id changed across stop: %q != %q", stopped.TestRunID, started.TestRunID)
	}

	status, err := c.TestStatus(context.Background())
	if err != nil {
		t.Fatalf("TestStatus: %v", err)
	}
	if status.TestState != string(TestStateStopped) {
		t.Fatalf("test_state = %q, want stopped", status.TestState)
	}
	if status.TestRunID != started.TestRunID {
		t.Fatalf("test_run_id should be preserved across stop-test")
	}
}

func TestStartTestFailsWhenAlreadyRunning(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	c.SetCredentials(validCreds())
	scenario := writeScenario(t, c, "scenario.py")

	if _, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "1.0", Duration: "10s", ScenarioFile: scenario, Headless: true,
	}); err != nil {
		t.Fatalf("first StartTest: %v", err)
	}

	_, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "1.0", Duration: "10s", ScenarioFile: scenario, Headless: true,
	})
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected 'already running' error, got %v", err)
	}
}

func TestStartTestRejectsNonLeader(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/1", false)
	c.SetCredentials(validCreds())

	_, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "1.0", Duration: "10s", ScenarioFile: "scenario.py", Headless: true,
	})
	if err == nil || !strings.Contains(err.Error(), "leader") {
		t.Fatalf("expected a leader-mentioning error, got %v", err)
	}
}

func TestStopTestRejectsNonLeader(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/1", false)
	_, err := c.StopTest(context.Background())
	if err == nil || !strings.Contains(err.Error(), "leader") {
		t.Fatalf("expected a leader-mentioning error, got %v", err)
	}
}

func TestTestStatusSucceedsOnNonLeader(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/1", false)
	status, err := c.TestStatus(context.Background())
	if err != nil {
		t.Fatalf("TestStatus: %v", err)
	}
	if status.IsLeader {
		t.Fatalf("expected is_leader = false")
	}
}

func TestStartTestRejectsInvalidUsers(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	c.SetCredentials(validCreds())
	scenario := writeScenario(t, c, "scenario.py")

	for _, users := range []string{"0", "abc", "-3"} {
		_, err := c.StartTest(context.Background(), StartTestParams{
			Users: users, SpawnRate: "1.0", Duration: "10s", ScenarioFile: scenario, Headless: true,
		})
		if err == nil || !strings.Contains(err.Error(), "invalid numeric") {
			t.Fatalf("users=%q: expected invalid numeric error, got %v", users, err)
		}
	}

	state, _ := c.membership.GetPeerData(cluster.KeyTestState)
	if state != "" {
		t.Fatalf("test_state should be unset after rejected start-test, got %q", state)
	}
}

func TestStartTestRejectsMissingScenarioFile(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	c.SetCredentials(validCreds())

	_, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "1.0", Duration: "10s", ScenarioFile: "missing.py", Headless: true,
	})
	if err == nil {
		t.Fatalf("expected an error for a missing scenario file")
	}
	if _, statErr := os.Stat(filepath.Join(c.paths.DataDir)); statErr != nil {
		t.Fatalf("data dir should still exist: %v", statErr)
	}
	entries, err := os.ReadDir(c.paths.DataDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("no run directory should have been created, found %v", entries)
	}
}

func TestStartTestRejectsWhenConfigInvalid(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)

	_, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "1.0", Duration: "10s", ScenarioFile: "scenario.py", Headless: true,
	})
	if err == nil {
		t.Fatalf("expected an error when configuration is invalid")
	}
}

func TestFetchMetricsFailsWithoutPriorRun(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	_, err := c.FetchMetrics(context.Background(), FetchMetricsParams{})
	if err == nil {
		t.Fatalf("expected an error when no run has ever started")
	}
}

func TestFetchMetricsPackagesRunDirectory(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/0", true)
	c.SetCredentials(validCreds())
	scenario := writeScenario(t, c, "scenario.py")

	started, err := c.StartTest(context.Background(), StartTestParams{
		Users: "1", SpawnRate: "1.0", Duration: "10s", ScenarioFile: scenario, Headless: true,
	})
	if err != nil {
		t.Fatalf("StartTest: %v", err)
	}

	statsPath := filepath.Join(c.paths.DataDir, started.TestRunID, "metrics_stats.csv")
	if err := os.WriteFile(statsPath, []byte("op,count\nupload,5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := c.FetchMetrics(context.Background(), FetchMetricsParams{})
	if err != nil {
		t.Fatalf("FetchMetrics: %v", err)
	}
	if result.ArchivePath == "" {
		t.Fatalf("expected a non-empty archive path")
	}
	if !strings.Contains(result.Preview, "upload") {
		t.Fatalf("preview = %q, want it to contain csv contents", result.Preview)
	}
	if result.Warning == "" {
		t.Fatalf("expected a warning since test_state is still running")
	}
	if !strings.HasPrefix(result.RemoteRef, "chopsticks/0:") {
		t.Fatalf("remote ref = %q, want it prefixed with the unit name", result.RemoteRef)
	}
	_ = os.Remove(result.ArchivePath)
}

func TestFetchMetricsRejectsNonLeader(t *testing.T) {
	c, _, _ := newTestCoordinator(t, "chopsticks/1", false)
	_, err := c.FetchMetrics(context.Background(), FetchMetricsParams{})
	if err == nil || !strings.Contains(err.Error(), "leader") {
		t.Fatalf("expected a leader-mentioning error, got %v", err)
	}
}

func TestMaybeStartWorkerRespectsAllGuards(t *testing.T) {
	c, membership, control := newTestCoordinator(t, "chopsticks/1", false)

	// Guard: config invalid.
	if err := c.maybeStartWorker(context.Background()); err != nil {
		t.Fatalf("maybeStartWorker: %v", err)
	}
	if control.Active[systemd.UnitWorker] {
		t.Fatalf("worker must not start without valid configuration")
	}

	c.SetCredentials(validCreds())
	// Guard: no leader address yet.
	if err := c.maybeStartWorker(context.Background()); err != nil {
		t.Fatalf("maybeStartWorker: %v", err)
	}
	if control.Active[systemd.UnitWorker] {
		t.Fatalf("worker must not start without a leader address")
	}

	membership.SetLeader(true)
	_ = membership.SetPeerData(cluster.KeyLeaderAddr, "10.0.0.5")
	membership.SetLeader(false)

	if err := c.maybeStartWorker(context.Background()); err != nil {
		t.Fatalf("maybeStartWorker: %v", err)
	}
	if !control.Active[systemd.UnitWorker] {
		t.Fatalf("worker should start once all guards are satisfied")
	}

	startsBefore := len(control.Starts)
	if err := c.maybeStartWorker(context.Background()); err != nil {
		t.Fatalf("maybeStartWorker (already running): %v", err)
	}
	if len(control.Starts) != startsBefore {
		t.Fatalf("worker must not be started again while already running")
	}
}
