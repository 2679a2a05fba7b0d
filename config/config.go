// Package config loads the two configuration documents the coordinator
// and its daemon read: the S3 credentials file rendered onto disk by the
// coordinator on every config-changed event, and the metrics daemon's own
// lifecycle configuration. Both are YAML, following the same defaults-plus-
// override approach as the ambient config file format used elsewhere in
// this codebase's lineage.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// S3Credentials is the rendered form of the coordinator's S3 configuration,
// consumed by workload processes via the S3_CONFIG_PATH environment
// variable. Field names match the original charm's rendered YAML exactly,
// since existing scenario files and drivers already expect this shape.
type S3Credentials struct {
	Endpoint     string         `yaml:"endpoint"`
	AccessKey    string         `yaml:"access_key"`
	SecretKey    string         `yaml:"secret_key"`
	Bucket       string         `yaml:"bucket"`
	Region       string         `yaml:"region"`
	Driver       string         `yaml:"driver"`
	DriverConfig map[string]any `yaml:"driver_config,omitempty"`
}

// Valid reports whether the three fields the coordinator treats as
// mandatory for a config-changed transition to "ready" are present.
func (c S3Credentials) Valid() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Duration wraps time.Duration so YAML documents can write "30s"/"5m"
// instead of raw nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// DaemonConfig describes where the metrics daemon listens and which
// lifecycle files it owns — the YAML-file analogue of daemon.Config, for
// sites that prefer a config file over CLI flags.
type DaemonConfig struct {
	HTTPHost           string   `yaml:"http_host"`
	HTTPPort           int      `yaml:"http_port"`
	SocketPath         string   `yaml:"socket_path"`
	PIDFile            string   `yaml:"pid_file"`
	StateFile          string   `yaml:"state_file"`
	PollPeriod         Duration `yaml:"poll_period,omitempty"`
	PersistenceEnabled bool     `yaml:"persistence_enabled"`
}

// Defaults returns a DaemonConfig with the same fallback values the
// original daemon management code used when a field was left unset.
// PersistenceEnabled defaults to true: unlike the original tool, which
// also supported an ephemeral in-process metrics mode, this daemon
// package exists solely to manage the persistent server, so an absent
// config file should not silently disable the one thing it does.
func Defaults() DaemonConfig {
	return DaemonConfig{
		HTTPHost:           "0.0.0.0",
		HTTPPort:           9090,
		SocketPath:         "/tmp/chopsticks_metrics.sock",
		PIDFile:            "/tmp/chopsticks_metrics.pid",
		StateFile:          "/tmp/chopsticks_metrics_state.json",
		PersistenceEnabled: true,
	}
}
