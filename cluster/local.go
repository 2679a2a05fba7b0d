package cluster

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// LocalMembership is a single-node MembershipService, for standalone
// deployments and CLI-driven demos that have no real peer substrate
// plugged in. It always reports itself as leader with zero peers, and
// persists the databag to a JSON file so that the Coordinator state
// survives across separate CLI invocations (each CLI command is its own
// process).
//
// A production deployment replaces this with an adapter over its actual
// cluster-management substrate; LocalMembership exists so the rest of
// this module is runnable and testable without one.
type LocalMembership struct {
	mu       sync.Mutex
	unitName string
	path     string
	events   chan Event
}

type localState struct {
	Databag map[DatabagKey]string `json:"databag"`
}

// NewLocalMembership constructs a LocalMembership backed by statePath,
// creating it empty if it does not already exist.
func NewLocalMembership(unitName, statePath string) (*LocalMembership, error) {
	m := &LocalMembership{
		unitName: unitName,
		path:     statePath,
		events:   make(chan Event, 8),
	}
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		if err := m.save(localState{Databag: make(map[DatabagKey]string)}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *LocalMembership) load() (localState, error) {
	var s localState
	b, err := os.ReadFile(m.path)
	if err != nil {
		return s, fmt.Errorf("cluster: failed to read local membership state: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("cluster: failed to parse local membership state: %w", err)
	}
	if s.Databag == nil {
		s.Databag = make(map[DatabagKey]string)
	}
	return s, nil
}

func (m *LocalMembership) save(s localState) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("cluster: failed to create state directory: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("cluster: failed to encode local membership state: %w", err)
	}
	if err := os.WriteFile(m.path, b, 0o644); err != nil {
		return fmt.Errorf("cluster: failed to write local membership state: %w", err)
	}
	return nil
}

func (m *LocalMembership) IsLeader() bool { return true }

func (m *LocalMembership) UnitName() string { return m.unitName }

// PrivateAddress returns the address of an outbound-looking interface on
// this host, falling back to the loopback address if none can be
// determined.
func (m *LocalMembership) PrivateAddress() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1", nil
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1", nil
	}
	return addr.IP.String(), nil
}

func (m *LocalMembership) PeerUnitCount() int { return 0 }

func (m *LocalMembership) GetPeerData(key DatabagKey) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load()
	if err != nil {
		return "", false
	}
	v, ok := s.Databag[key]
	return v, ok
}

func (m *LocalMembership) SetPeerData(key DatabagKey, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load()
	if err != nil {
		return err
	}
	s.Databag[key] = value
	return m.save(s)
}

func (m *LocalMembership) Events() <-chan Event { return m.events }

// Emit pushes an event for a caller that holds this process's
// LocalMembership to consume via a Coordinator's Dispatch. Most CLI
// commands call Dispatch directly instead of using this channel, since
// each CLI invocation is a short-lived process rather than a long-running
// event loop.
func (m *LocalMembership) Emit(e Event) {
	m.events <- e
}
