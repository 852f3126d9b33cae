package queue

// Mode represents the playback mode policy.
type Mode string

const (
	ModeNormal  Mode = "normal"  // Sequential base-queue order
	ModeShuffle Mode = "shuffle" // Randomized base-queue order, current pinned first
	ModeRepeat  Mode = "repeat"  // Single-item loop, handled by the engine on "ended"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeNormal || m == ModeShuffle || m == ModeRepeat
}

// Source identifies which tier supplied the current item.
type Source int

const (
	SourceNone   Source = iota // Nothing has been selected yet
	SourceServer               // Server-persisted queue
	SourceUpNext               // Local up-next queue
	SourceBase                 // Contextual base queue
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceServer:
		return "server"
	case SourceUpNext:
		return "up_next"
	case SourceBase:
		return "base"
	default:
		return "none"
	}
}

// PrevAction represents the resolution of a "previous" request.
type PrevAction int

const (
	PrevNone    PrevAction = iota // Nothing to do
	PrevRestart                   // Restart the current item from position 0
	PrevPlay                      // Load the returned entry
)

// InsertMode represents where a remote queue append lands.
type InsertMode string

const (
	InsertEnd  InsertMode = "END"
	InsertNext InsertMode = "NEXT"
)
