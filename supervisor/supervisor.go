// Package supervisor manages the metrics daemon as a detached background
// process: starting it, verifying it came up, stopping it cleanly, and
// reclaiming lifecycle files left behind by a crashed or killed daemon.
// It never touches a process it cannot positively identify as one of its
// own daemons.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/sabaini/chopsticks/daemon"
)

// processMarker is the substring a daemon's command line must contain for
// CleanupStaleFiles to treat a PID as "ours" (IsRunning checks liveness
// only, not the command line). It deliberately names the daemon binary's
// base name rather than its whole path, since the binary may be invoked
// via an absolute path, a relative path, or a PATH lookup depending on how
// it was installed.
const processMarker = "chopsticksd"

// Config mirrors daemon.Config plus the supervisor's own knowledge of
// where the daemon binary lives and whether the operator has opted into
// running the persistent metrics server at all.
type Config struct {
	daemon.Config
	BinaryPath         string
	PersistenceEnabled bool
}

// Supervisor starts, stops, and inspects a metrics daemon process.
type Supervisor struct {
	cfg Config
}

// New constructs a Supervisor for the given daemon configuration.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Start launches the daemon as a detached background process and waits
// for it to report itself running via the PID file. It refuses outright
// if persistence is not enabled in config. If a daemon already appears
// to be running, Start returns an error unless force is set, in which
// case it stops the running daemon and reclaims its lifecycle files
// before spawning a replacement.
func (s *Supervisor) Start(force bool) error {
	if !s.cfg.PersistenceEnabled {
		return fmt.Errorf("supervisor: persistent metrics server not enabled in config")
	}

	running, err := s.IsRunning()
	if err != nil {
		return err
	}
	if running {
		if !force {
			return fmt.Errorf("supervisor: metrics daemon already running")
		}
		if err := s.Stop(); err != nil {
			return fmt.Errorf("supervisor: failed to stop existing daemon for --force restart: %w", err)
		}
	}

	if force {
		if err := s.CleanupStaleFiles(); err != nil {
			return err
		}
	}

	cmd := exec.Command(s.cfg.BinaryPath,
		"--host", s.cfg.Host,
		"--port", strconv.Itoa(s.cfg.Port),
		"--socket-path", s.cfg.SocketPath,
		"--pid-file", s.cfg.PIDFile,
		"--state-file", s.cfg.StateFile,
	)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: failed to start metrics daemon: %w", err)
	}
	// Detach: the supervisor does not wait on the child beyond this point,
	// and does not want Go to reap it as an attached subprocess.
	go func() { _ = cmd.Process.Release() }()

	if !waitForCondition(10*time.Second, 100*time.Millisecond, func() bool {
		_, err := os.Stat(s.cfg.PIDFile)
		return err == nil
	}) {
		return fmt.Errorf("supervisor: daemon failed to start — PID file not created")
	}

	time.Sleep(time.Second)
	running, err = s.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("supervisor: metrics daemon failed to start")
	}
	return nil
}

// Stop sends SIGTERM to the running daemon and waits for it to exit and
// clean up its own files. If the daemon does not clean up in time, Stop
// removes the lifecycle files itself.
func (s *Supervisor) Stop() error {
	running, err := s.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("supervisor: metrics daemon not running")
	}

	pid, err := readPID(s.cfg.PIDFile)
	if err != nil {
		return err
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("supervisor: failed to signal metrics daemon: %w", err)
	}

	waitForCondition(10*time.Second, 100*time.Millisecond, func() bool {
		return !processAlive(pid)
	})

	waitForCondition(3*time.Second, 100*time.Millisecond, func() bool {
		_, pidErr := os.Stat(s.cfg.PIDFile)
		_, stateErr := os.Stat(s.cfg.StateFile)
		return os.IsNotExist(pidErr) && os.IsNotExist(stateErr)
	})

	_ = os.Remove(s.cfg.PIDFile)
	_ = os.Remove(s.cfg.StateFile)
	return nil
}

// IsRunning reports whether the PID file names a live process. A stale
// PID file (process no longer exists) is removed as a side effect.
func (s *Supervisor) IsRunning() (bool, error) {
	pid, err := readPID(s.cfg.PIDFile)
	if err != nil {
		// Missing file means not running; a malformed one is a stale file
		// from a previous, unrelated PID write — both cases clear to "not
		// running" without surfacing an error to the caller.
		if !os.IsNotExist(err) {
			_ = os.Remove(s.cfg.PIDFile)
		}
		return false, nil
	}

	if !processAlive(pid) {
		_ = os.Remove(s.cfg.PIDFile)
		return false, nil
	}
	return true, nil
}

// Status returns the daemon's last-written state, annotated with whether
// it is currently running. If the state file is missing or unreadable, a
// minimal fallback state is returned instead, matching the daemon's own
// degraded-status behavior.
func (s *Supervisor) Status() (daemon.State, bool, error) {
	running, err := s.IsRunning()
	if err != nil {
		return daemon.State{}, false, err
	}
	if !running {
		return daemon.State{}, false, nil
	}

	state, err := daemon.ReadState(s.cfg.StateFile)
	if err != nil {
		pid, _ := readPID(s.cfg.PIDFile)
		return daemon.State{PID: pid, Host: s.cfg.Host, Port: s.cfg.Port}, true, nil
	}
	return state, true, nil
}

// CleanupStaleFiles removes lifecycle files left behind by a daemon that
// crashed or was killed without cleaning up after itself.
//
// It first inspects the PID file: a dead PID or one pointing at a
// process verified NOT to be a chopsticks daemon (i.e. the PID was
// recycled by an unrelated process) has its PID file removed; a live,
// verified chopsticks daemon is left alone and cleanup stops there.
//
// It then independently probes the configured TCP port, since the PID
// file alone cannot be trusted to reflect what is actually bound to it
// — the supervisor cannot assume PID reuse has not occurred. Any
// process holding the port is only signaled if its command line also
// verifies as a chopsticks daemon; an unrelated process sharing the
// port is never touched.
func (s *Supervisor) CleanupStaleFiles() error {
	pid, err := readPID(s.cfg.PIDFile)
	if err == nil {
		if processAlive(pid) {
			if isChopsticksDaemon(pid) {
				// A genuine running daemon owns these files; leave them.
				return nil
			}
		}
		_ = os.Remove(s.cfg.PIDFile)
	}

	for _, holderPID := range portHolderPIDs(s.cfg.Port) {
		if isChopsticksDaemon(int(holderPID)) {
			_ = syscall.Kill(int(holderPID), syscall.SIGTERM)
			time.Sleep(500 * time.Millisecond)
		}
	}

	_ = os.Remove(s.cfg.StateFile)
	_ = os.Remove(s.cfg.SocketPath)
	return nil
}

// portHolderPIDs returns the distinct PIDs of processes with a listening
// TCP socket bound to port, the gopsutil-based equivalent of
// `lsof -ti :<port>`.
func portHolderPIDs(port int) []int32 {
	conns, err := gopsnet.Connections("tcp")
	if err != nil {
		return nil
	}

	seen := make(map[int32]bool)
	var pids []int32
	for _, c := range conns {
		if c.Pid == 0 || int(c.Laddr.Port) != port || c.Status != "LISTEN" {
			continue
		}
		if !seen[c.Pid] {
			seen[c.Pid] = true
			pids = append(pids, c.Pid)
		}
	}
	return pids
}

func readPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("supervisor: malformed PID file %s: %w", path, err)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// isChopsticksDaemon verifies that pid's command line names the metrics
// daemon binary, so cleanup never mistakes an unrelated process that
// happens to have inherited a recycled PID for one of ours.
func isChopsticksDaemon(pid int) bool {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	cmdline, err := proc.CmdlineSlice()
	if err != nil {
		return false
	}
	return strings.Contains(strings.Join(cmdline, " "), processMarker)
}

// waitForCondition polls condition with exponential backoff (capped at
// 500ms) until it returns true or timeout elapses. It returns whether the
// condition was met.
func waitForCondition(timeout, pollInterval time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	interval := pollInterval

	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
		interval = time.Duration(float64(interval) * 1.5)
		if interval > 500*time.Millisecond {
			interval = 500 * time.Millisecond
		}
	}
	return condition()
}
