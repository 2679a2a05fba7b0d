// Package coordinator implements the per-unit, event-driven controller
// that reacts to cluster lifecycle and relation events, derives its role
// from leader election, and drives the workload processes (via the
// systemd package) and the peer databag (via the cluster package)
// accordingly. It never spawns a workload process directly.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sabaini/chopsticks/cluster"
	"github.com/sabaini/chopsticks/config"
	"github.com/sabaini/chopsticks/log"
	"github.com/sabaini/chopsticks/runner"
	"github.com/sabaini/chopsticks/systemd"
)

// Paths collects every filesystem location the coordinator reads from or
// writes to.
type Paths struct {
	InstallRoot  string // scenario files and workload driver binaries
	ConfigDir    string // mode 0700; holds the credentials YAML
	DataDir      string // one subdirectory per test_run_id
	S3ConfigPath string
	VenvDir      string
	SystemdDir   string
}

func (p Paths) systemdPaths() systemd.Paths {
	return systemd.Paths{
		RepoDir:      p.InstallRoot,
		VenvDir:      p.VenvDir,
		S3ConfigPath: p.S3ConfigPath,
		SystemdDir:   p.SystemdDir,
	}
}

// LocustConfig holds the workload parameters the coordinator needs but
// that do not change per test run: ports, log verbosity, and whether a
// non-leader should automatically attach to the leader once it is known.
type LocustConfig struct {
	LeaderPort       int
	WebPort          int
	LogLevel         string
	AutostartWorkers bool
}

// Coordinator is the event-driven controller. One Coordinator exists per
// unit; all event processing runs through Dispatch, which is not
// re-entrant — callers must serialize calls to it themselves (e.g. one
// goroutine reading cluster.MembershipService.Events()).
type Coordinator struct {
	membership cluster.MembershipService
	control    systemd.Control
	logger     *log.Logger
	paths      Paths
	locustCfg  LocustConfig

	desiredCreds config.S3Credentials
	wasLeader    bool
	haveRole     bool
	lastStatus   Status
}

// New constructs a Coordinator. Call SetCredentials before the first
// Dispatch if credentials are already known (e.g. loaded from disk at
// process start).
func New(membership cluster.MembershipService, control systemd.Control, logger *log.Logger, paths Paths, locustCfg LocustConfig) *Coordinator {
	return &Coordinator{
		membership: membership,
		control:    control,
		logger:     logger,
		paths:      paths,
		locustCfg:  locustCfg,
	}
}

// SetCredentials updates the coordinator's view of the S3 credentials.
// The caller is responsible for calling this before dispatching
// config-changed whenever the underlying configuration source changes.
func (c *Coordinator) SetCredentials(creds config.S3Credentials) {
	c.desiredCreds = creds
}

// Status returns the most recently computed presentation status.
func (c *Coordinator) Status() Status {
	return c.lastStatus
}

// Dispatch processes a single event to completion, mutating local
// services and the peer databag as needed. It never returns an error for
// conditions the state machine itself defines as valid outcomes (e.g.
// invalid configuration); a returned error indicates an unexpected
// failure talking to the service manager or the membership service.
func (c *Coordinator) Dispatch(ctx context.Context, event cluster.Event) error {
	c.reconcileRoleTransition(ctx)

	switch event {
	case cluster.EventInstall:
		return c.onInstall(ctx)
	case cluster.EventConfigChanged:
		return c.onConfigChanged(ctx)
	case cluster.EventStart:
		return c.onStart(ctx)
	case cluster.EventStop:
		return c.onStop(ctx)
	case cluster.EventRemove:
		return c.onRemove(ctx)
	case cluster.EventUpdateStatus:
		return c.onUpdateStatus(ctx)
	case cluster.EventLeaderElected:
		return c.onLeaderElected(ctx)
	case cluster.EventClusterChanged:
		return c.onClusterChanged(ctx)
	default:
		return fmt.Errorf("coordinator: unknown event %q", event)
	}
}

// reconcileRoleTransition stops the workload appropriate to the *previous*
// role whenever leadership flips, independent of which event triggered
// Dispatch. The first Dispatch call after construction always "transitions"
// from no-role, which is harmless: stopping an already-stopped unit is a
// no-op.
func (c *Coordinator) reconcileRoleTransition(ctx context.Context) {
	isLeader := c.membership.IsLeader()
	if c.haveRole && isLeader == c.wasLeader {
		return
	}
	c.haveRole = true
	c.wasLeader = isLeader

	if isLeader {
		_ = c.control.Stop(ctx, systemd.UnitWorker)
	} else {
		_ = c.control.Stop(ctx, systemd.UnitLeaderHeadless)
		_ = c.control.Stop(ctx, systemd.UnitLeaderWebUI)
	}
}

func (c *Coordinator) onInstall(ctx context.Context) error {
	if err := os.MkdirAll(c.paths.ConfigDir, 0o700); err != nil {
		return fmt.Errorf("coordinator: failed to create config dir: %w", err)
	}
	if err := os.MkdirAll(c.paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("coordinator: failed to create data dir: %w", err)
	}

	// Register service definitions without starting them: a placeholder
	// spec is enough, since start-test and maybe_start_worker always
	// re-render before starting.
	placeholder := runner.Spec{ScenarioPath: filepath.Join(c.paths.InstallRoot, "placeholder.py"), LeaderPort: c.locustCfg.LeaderPort, WebPort: c.locustCfg.WebPort, LogLevel: c.locustCfg.LogLevel, LeaderHost: "0.0.0.0"}
	for _, role := range []runner.Role{runner.RoleLeaderHeadless, runner.RoleLeaderWebUI, runner.RoleWorker} {
		spec := placeholder
		if role == runner.RoleLeaderHeadless {
			spec.TestRunID = "install"
			spec.Users = 1
			spec.SpawnRate = 1
			spec.Duration = "1s"
			spec.DataDir = c.paths.DataDir
		}
		if _, err := systemd.WriteUnit(role, spec, c.paths.systemdPaths()); err != nil {
			return err
		}
	}
	return c.control.DaemonReload(ctx)
}

func (c *Coordinator) onConfigChanged(ctx context.Context) error {
	if err := config.WriteS3Credentials(c.paths.S3ConfigPath, c.desiredCreds); err != nil {
		c.logger.Warn("failed to render S3 credentials", map[string]any{"error": err.Error()})
	}

	isLeader := c.membership.IsLeader()
	if isLeader {
		if err := c.publishLeaderAddress(ctx); err != nil {
			c.logger.Warn("failed to publish leader address", map[string]any{"error": err.Error()})
		}
	} else {
		if leaderAddr, ok := c.membership.GetPeerData(cluster.KeyLeaderAddr); ok && leaderAddr != "" {
			if err := c.renderWorkerUnit(ctx, leaderAddr); err != nil {
				c.logger.Warn("failed to render worker unit", map[string]any{"error": err.Error()})
			}
		}
	}

	if !c.desiredCreds.Valid() {
		c.setStatus(Status{Level: StatusBlocked, Message: "Missing S3 configuration"})
		return nil
	}

	if !isLeader && c.locustCfg.AutostartWorkers {
		if err := c.maybeStartWorker(ctx); err != nil {
			c.logger.Warn("failed to start worker", map[string]any{"error": err.Error()})
		}
	}

	c.refreshStatus(ctx)
	return nil
}

func (c *Coordinator) onStart(ctx context.Context) error {
	c.refreshStatus(ctx)
	return nil
}

func (c *Coordinator) onUpdateStatus(ctx context.Context) error {
	if c.membership.IsLeader() {
		state, _ := c.membership.GetPeerData(cluster.KeyTestState)
		if DefaultIfEmpty(state) == TestStateRunning {
			running, err := c.leaderRunning(ctx)
			if err == nil && !running {
				c.logger.Warn("test_state is running but leader service is not running; marking test as failed", nil)
				_ = c.membership.SetPeerData(cluster.KeyTestState, string(TestStateFailed))
			}
		}
	}
	c.refreshStatus(ctx)
	return nil
}

func (c *Coordinator) onStop(ctx context.Context) error {
	c.stopAllServices(ctx)
	return nil
}

func (c *Coordinator) onRemove(ctx context.Context) error {
	c.stopAllServices(ctx)

	for _, dir := range []string{c.paths.InstallRoot, c.paths.ConfigDir, c.paths.DataDir} {
		if dir == "" {
			continue
		}
		_ = os.RemoveAll(dir)
	}

	for _, unit := range []string{systemd.UnitLeaderHeadless, systemd.UnitLeaderWebUI, systemd.UnitWorker} {
		_ = os.Remove(filepath.Join(c.paths.SystemdDir, unit+".service"))
	}
	return c.control.DaemonReload(ctx)
}

func (c *Coordinator) onLeaderElected(ctx context.Context) error {
	c.stopAllServices(ctx)

	if err := c.publishLeaderAddress(ctx); err != nil {
		c.logger.Warn("failed to publish leader address", map[string]any{"error": err.Error()})
	}

	prevState, _ := c.membership.GetPeerData(cluster.KeyTestState)
	if DefaultIfEmpty(prevState) == TestStateRunning {
		c.logger.Warn("previous leader failed during test run; marking test as failed", nil)
		_ = c.membership.SetPeerData(cluster.KeyTestState, string(TestStateFailed))
	} else {
		_ = c.membership.SetPeerData(cluster.KeyTestState, string(TestStateIdle))
	}

	c.refreshStatus(ctx)
	return nil
}

func (c *Coordinator) onClusterChanged(ctx context.Context) error {
	if c.membership.IsLeader() {
		if err := c.publishLeaderAddress(ctx); err != nil {
			c.logger.Warn("failed to publish leader address", map[string]any{"error": err.Error()})
		}
	} else {
		newLeader, _ := c.membership.GetPeerData(cluster.KeyLeaderAddr)

		workerRunning, _ := c.control.IsActive(ctx, systemd.UnitWorker)
		if workerRunning {
			_ = c.control.Stop(ctx, systemd.UnitWorker)
			c.logger.Info("stopped worker due to leader change", map[string]any{"new_leader": newLeader})
		}

		if c.locustCfg.AutostartWorkers && newLeader != "" {
			if err := c.maybeStartWorker(ctx); err != nil {
				c.logger.Warn("failed to start worker", map[string]any{"error": err.Error()})
			}
		}
	}

	c.refreshStatus(ctx)
	return nil
}

// maybeStartWorker starts the worker workload iff all of: this unit is not
// the leader, the worker is not already running, configuration is valid,
// and a leader address is known. Any unmet guard returns nil silently.
func (c *Coordinator) maybeStartWorker(ctx context.Context) error {
	if c.membership.IsLeader() {
		return nil
	}

	running, _ := c.control.IsActive(ctx, systemd.UnitWorker)
	if running {
		return nil
	}

	if !c.desiredCreds.Valid() {
		return nil
	}

	leaderAddr, ok := c.membership.GetPeerData(cluster.KeyLeaderAddr)
	if !ok || leaderAddr == "" {
		return nil
	}

	if err := c.renderWorkerUnit(ctx, leaderAddr); err != nil {
		return err
	}
	if err := c.control.Start(ctx, systemd.UnitWorker); err != nil {
		return err
	}
	c.logger.Info("started worker connecting to leader", map[string]any{"leader_address": leaderAddr})
	return nil
}

func (c *Coordinator) renderWorkerUnit(ctx context.Context, leaderAddr string) error {
	scenario, _ := c.membership.GetPeerData(cluster.KeyScenario)
	spec := runner.Spec{
		ScenarioPath: filepath.Join(c.paths.InstallRoot, scenario),
		LeaderPort:   c.locustCfg.LeaderPort,
		LogLevel:     c.locustCfg.LogLevel,
		LeaderHost:   leaderAddr,
	}
	if _, err := systemd.WriteUnit(runner.RoleWorker, spec, c.paths.systemdPaths()); err != nil {
		return err
	}
	return c.control.DaemonReload(ctx)
}

func (c *Coordinator) publishLeaderAddress(ctx context.Context) error {
	if !c.membership.IsLeader() {
		return nil
	}
	addr, err := c.membership.PrivateAddress()
	if err != nil || addr == "" {
		return err
	}
	if err := c.membership.SetPeerData(cluster.KeyLeaderAddr, addr); err != nil {
		return err
	}
	return c.membership.SetPeerData(cluster.KeyLeaderUnit, c.membership.UnitName())
}

func (c *Coordinator) stopAllServices(ctx context.Context) {
	_ = c.control.Stop(ctx, systemd.UnitLeaderHeadless)
	_ = c.control.Stop(ctx, systemd.UnitLeaderWebUI)
	_ = c.control.Stop(ctx, systemd.UnitWorker)
}

func (c *Coordinator) leaderRunning(ctx context.Context) (bool, error) {
	headless, err := c.control.IsActive(ctx, systemd.UnitLeaderHeadless)
	if err != nil {
		return false, err
	}
	webui, err := c.control.IsActive(ctx, systemd.UnitLeaderWebUI)
	if err != nil {
		return false, err
	}
	return headless || webui, nil
}

func (c *Coordinator) setStatus(s Status) {
	c.lastStatus = s
	c.logger.Info("status updated", map[string]any{"level": string(s.Level), "message": s.Message})
}

// refreshStatus recomputes and records presentation status from current
// inputs. Errors querying the service manager degrade workerRunning to
// false rather than propagating, matching the "status projection never
// fails" contract.
func (c *Coordinator) refreshStatus(ctx context.Context) {
	state, _ := c.membership.GetPeerData(cluster.KeyTestState)
	leaderAddr, _ := c.membership.GetPeerData(cluster.KeyLeaderAddr)
	workerRunning, _ := c.control.IsActive(ctx, systemd.UnitWorker)

	s := computeStatus(
		c.membership.IsLeader(),
		c.desiredCreds.Valid(),
		string(DefaultIfEmpty(state)),
		workerRunning,
		leaderAddr,
		c.membership.PeerUnitCount(),
	)
	c.setStatus(s)
}
