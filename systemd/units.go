package systemd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabaini/chopsticks/runner"
)

// Unit names match the original charm's service names exactly, since
// operators and dashboards built against this system expect them.
const (
	UnitLeaderHeadless = "chopsticks-leader"
	UnitLeaderWebUI    = "chopsticks-leader-webui"
	UnitWorker         = "chopsticks-worker"
)

// Paths collects the filesystem locations a rendered unit needs to bake in
// as environment variables and a working directory.
type Paths struct {
	RepoDir      string
	VenvDir      string
	S3ConfigPath string
	SystemdDir   string
}

func unitNameFor(role runner.Role) (string, error) {
	switch role {
	case runner.RoleLeaderHeadless:
		return UnitLeaderHeadless, nil
	case runner.RoleLeaderWebUI:
		return UnitLeaderWebUI, nil
	case runner.RoleWorker:
		return UnitWorker, nil
	default:
		return "", fmt.Errorf("systemd: unknown role %q", role)
	}
}

func restartPolicyFor(role runner.Role) string {
	if role == runner.RoleWorker {
		return "Restart=on-failure\nRestartSec=5"
	}
	return "Restart=no"
}

func descriptionFor(role runner.Role) string {
	switch role {
	case runner.RoleLeaderHeadless:
		return "Chopsticks Locust Leader"
	case runner.RoleLeaderWebUI:
		return "Chopsticks Locust Leader with Web UI"
	case runner.RoleWorker:
		return "Chopsticks Locust Worker"
	default:
		return "Chopsticks Locust Process"
	}
}

// RenderUnit builds the full systemd unit file content for role, embedding
// the argv the runner package built for the same role and spec.
func RenderUnit(role runner.Role, spec runner.Spec, paths Paths) (string, error) {
	argv, err := runner.BuildArgv(role, spec)
	if err != nil {
		return "", err
	}

	execStart := fmt.Sprintf("%s/bin/python -m locust \\\n    %s",
		paths.VenvDir, strings.Join(argv, " \\\n    "))

	var b strings.Builder
	fmt.Fprintf(&b, "[Unit]\nDescription=%s\nAfter=network.target\n\n", descriptionFor(role))
	b.WriteString("[Service]\nType=simple\nUser=root\n")
	fmt.Fprintf(&b, "WorkingDirectory=%s\n", paths.RepoDir)
	fmt.Fprintf(&b, "Environment=S3_CONFIG_PATH=%s\n", paths.S3ConfigPath)
	fmt.Fprintf(&b, "Environment=PATH=%s/bin:/usr/local/bin:/usr/bin:/bin\n", paths.VenvDir)
	fmt.Fprintf(&b, "ExecStart=%s\n", execStart)
	fmt.Fprintf(&b, "%s\n", restartPolicyFor(role))
	b.WriteString("StandardOutput=journal\nStandardError=journal\n\n")
	b.WriteString("[Install]\nWantedBy=multi-user.target\n")

	return b.String(), nil
}

// WriteUnit renders and writes role's unit file to paths.SystemdDir,
// returning the path written. It does not reload systemd; call
// Control.DaemonReload afterward.
func WriteUnit(role runner.Role, spec runner.Spec, paths Paths) (string, error) {
	content, err := RenderUnit(role, spec, paths)
	if err != nil {
		return "", err
	}

	name, err := unitNameFor(role)
	if err != nil {
		return "", err
	}

	path := filepath.Join(paths.SystemdDir, name+".service")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("systemd: failed to write unit file %s: %w", path, err)
	}
	return path, nil
}
