// Package cluster abstracts the peer-coordination substrate the
// coordinator runs on: leader election, a replicated key/value databag
// writable only by the leader, and a stream of lifecycle/relation events.
// It exists so the coordinator's state machine can be exercised against an
// in-memory fake instead of a real cluster membership backend.
package cluster

// Event is a lifecycle or relation event the coordinator reacts to. The
// event taxonomy mirrors the original charm's observed event set.
type Event string

const (
	EventInstall        Event = "install"
	EventConfigChanged  Event = "config-changed"
	EventStart          Event = "start"
	EventStop           Event = "stop"
	EventRemove         Event = "remove"
	EventUpdateStatus   Event = "update-status"
	EventLeaderElected  Event = "leader-elected"
	EventClusterChanged Event = "cluster-relation-changed"
)

// DatabagKey names one field of the replicated peer databag. Only the
// leader may write these; all units may read them.
type DatabagKey string

const (
	KeyLeaderAddr DatabagKey = "leader_address"
	KeyLeaderUnit DatabagKey = "leader_unit"
	KeyTestState  DatabagKey = "test_state"
	KeyTestRunID  DatabagKey = "test_run_id"
	KeyScenario   DatabagKey = "scenario_file"
)

// MembershipService is the coordinator's view of the cluster it runs on:
// who the leader is, this unit's identity and address, the replicated
// databag, and the stream of events driving the state machine.
type MembershipService interface {
	// IsLeader reports whether this unit currently holds cluster leadership.
	IsLeader() bool

	// UnitName returns this unit's stable identifier (e.g. "chopsticks/0").
	UnitName() string

	// PrivateAddress returns this unit's address on the peer network, or
	// an error if it cannot currently be determined.
	PrivateAddress() (string, error)

	// PeerUnitCount returns the number of other units in the cluster,
	// excluding this one.
	PeerUnitCount() int

	// GetPeerData reads a databag value. The second return is false if the
	// key has never been set.
	GetPeerData(key DatabagKey) (string, bool)

	// SetPeerData writes a databag value. Non-leader units must not call
	// this; implementations should treat it as a no-op or error for a
	// non-leader, matching the peer databag's leader-writable contract.
	SetPeerData(key DatabagKey, value string) error

	// Events returns the channel of incoming lifecycle/relation events.
	// The reader is expected to pass them one at a time to the
	// coordinator's Dispatch, serializing all state transitions.
	Events() <-chan Event
}
