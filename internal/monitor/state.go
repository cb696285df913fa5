package monitor

import (
	"time"

	"blocklag/internal/model"
)

// State names a phase of the monitor's lifecycle. The live session
// moves resolving -> streaming -> completed (or failed); a session cut
// short by a newer epoch ends stale.
type State string

const (
	// StateIdle means no session is bound. This is the state before
	// Start and after Stop.
	StateIdle State = "idle"

	// StateResolving means the session is fetching its starting height.
	StateResolving State = "resolving"

	// StateStreaming means the starting height is known and the session
	// is walking heights.
	StateStreaming State = "streaming"

	// StateStale marks a session invalidated by a newer epoch before it
	// could finish. It only ever describes a finished session; by the
	// time it is detected a newer session owns the live state.
	StateStale State = "stale"

	// StateCompleted means the session walked its full height range.
	StateCompleted State = "completed"

	// StateFailed means the session's retry policy gave up on a request.
	StateFailed State = "failed"
)

// Snapshot is a point-in-time view of the monitor, shaped for the
// status endpoint.
type Snapshot struct {
	State       State         `json:"state"`
	Mode        model.Mode    `json:"mode"`
	Epoch       uint64        `json:"epoch"`
	SessionID   string        `json:"session_id,omitempty"`
	StartHeight uint64        `json:"start_height,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Emitted     int           `json:"emitted"`
	Skipped     int           `json:"skipped"`
	LastSample  *model.Sample `json:"last_sample,omitempty"`
	LastError   string        `json:"last_error,omitempty"`

	// Terminal state and epoch of the most recently finished session.
	LastSessionState State  `json:"last_session_state,omitempty"`
	LastSessionEpoch uint64 `json:"last_session_epoch,omitempty"`
}
