// Package engine provides the playback state machine and the public
// control surface of the playback orchestration engine.
package engine

// State represents the transport state.
type State int

const (
	StateIdle    State = iota // No current item
	StateLoading              // Source assigned, waiting for metadata
	StatePlaying              // Output is playing
	StatePaused               // Output is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsActive returns true when an item is loaded (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}
