package coordinator

import "fmt"

// StatusLevel is the coarse presentation state a unit reports, modeled on
// the three outcomes the original charm's status framework distinguishes:
// blocked (needs operator attention), waiting (nothing wrong, just not
// ready yet), and active (steady state, possibly still informative).
type StatusLevel string

const (
	StatusBlocked StatusLevel = "blocked"
	StatusActive  StatusLevel = "active"
	StatusWaiting StatusLevel = "waiting"
)

// Status is a unit's current presentation state: a level plus a
// human-readable message.
type Status struct {
	Level   StatusLevel
	Message string
}

// computeStatus derives presentation status purely from the inputs named
// in the status-projection rule: config validity takes priority over
// everything else, then role, then (for workers) whether a leader address
// is known and whether the worker workload is actually connected.
func computeStatus(isLeader, credsValid bool, testState string, workerRunning bool, leaderAddr string, peerCount int) Status {
	if !credsValid {
		return Status{Level: StatusBlocked, Message: "Missing S3 configuration"}
	}

	if isLeader {
		return Status{
			Level:   StatusActive,
			Message: fmt.Sprintf("Leader ready (%d workers, test: %s)", peerCount, testState),
		}
	}

	if leaderAddr == "" {
		return Status{Level: StatusWaiting, Message: "Waiting for leader address"}
	}

	connState := "ready"
	if workerRunning {
		connState = "connected"
	}
	return Status{
		Level:   StatusActive,
		Message: fmt.Sprintf("Worker %s -> %s", connState, leaderAddr),
	}
}
