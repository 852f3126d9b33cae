// Package sink defines the media output interface the engine drives.
//
// The underlying output is a single shared exclusive resource: only one
// load/play sequence is live at a time, and the engine always tears the sink
// down (pause + reset) before assigning a new source.
package sink

// EventType represents a sink lifecycle event type.
type EventType int

const (
	EventMetadataReady EventType = iota // Duration became known for the assigned source
	EventTimeAdvanced                   // Playback position advanced
	EventEnded                          // Source played to completion
	EventError                          // Decode or transport failure on the media bytes
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventMetadataReady:
		return "metadata_ready"
	case EventTimeAdvanced:
		return "time_advanced"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a sink lifecycle event dispatched into the engine. Source
// carries the media URL the event pertains to so that a late event from a
// superseded source can be discarded.
type Event struct {
	Type        EventType
	Source      string  // Media URL this event belongs to
	PositionSec float64 // Current position in seconds
	DurationSec float64 // Known duration in seconds (0 = unknown)
	Err         error   // Set for EventError
}

// Sink is a managed audio output. Implementations deliver lifecycle events
// on the Events channel and must not block on it.
type Sink interface {
	// SetSource tears down any current source and assigns a new media URL.
	// Position is reset to 0. Loading is asynchronous; readiness is
	// reported via EventMetadataReady.
	SetSource(url string)

	// Play starts or resumes output. An error means the output device
	// rejected playback; the source stays assigned.
	Play() error

	// Pause suspends output, keeping the position.
	Pause()

	// Seek moves the position to sec (clamped by the implementation to the
	// valid range for the current source).
	Seek(sec float64)

	// Reset pauses output and clears the assigned source.
	Reset()

	// SetVolume sets the output volume in the range 0..1.
	SetVolume(v float64)

	// Events returns the lifecycle event channel. The channel is closed by
	// Close.
	Events() <-chan Event

	// Close releases the output resource.
	Close()
}
