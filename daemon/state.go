package daemon

import (
	"encoding/json"
	"fmt"
	"os"
)

// State is the daemon's on-disk status snapshot, written once when the
// daemon starts listening so a supervisor process (or an operator) can
// inspect it without talking to the daemon directly.
type State struct {
	PID       int    `json:"pid"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	StartedAt string `json:"started_at"`
}

// WriteState serializes state to path, replacing any existing file.
func WriteState(path string, state State) error {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("daemon: failed to marshal state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("daemon: failed to write state file %s: %w", path, err)
	}
	return nil
}

// ReadState loads a previously written state file.
func ReadState(path string) (State, error) {
	var s State
	b, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("daemon: failed to read state file %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("daemon: failed to parse state file %s: %w", path, err)
	}
	return s, nil
}
