// Package item provides the playable item domain entity.
package item

import "fmt"

// Kind discriminates the two playable media types.
type Kind string

const (
	KindSong    Kind = "song"
	KindEpisode Kind = "episode"
)

// Item represents a song or podcast episode normalized for playback.
// Items are value objects produced by catalog adapters; the engine never
// mutates them, only wraps them in queue entries.
type Item struct {
	ID          string  // Stable identity within its kind
	Kind        Kind    // song or episode
	Title       string  // Display title
	Creator     string  // Attributed artist / show name
	DurationSec float64 // Duration hint in seconds (0 = unknown until loaded)
	MediaURL    string  // Signed, time-limited media URL ("" = not resolvable)
	CoverURL    string  // Cover art URL (optional)
	Available   bool    // False when moderation status hides the item
}

// Key returns the kind-qualified identity, e.g. "song:42".
// Used to deduplicate activity reports across queue tiers.
func (i *Item) Key() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.ID)
}

// Playable reports whether the item can actually be loaded into the sink:
// it must carry a media URL and must not be hidden.
func (i *Item) Playable() bool {
	return i.MediaURL != "" && i.Available
}

// QueueEntry wraps an Item with its queue bookkeeping.
type QueueEntry struct {
	ID       string // Server-assigned ID for server-tier entries, local UUID otherwise
	Item     Item   // The wrapped playable item
	Position int    // Ordinal position within its tier
}
