// Package catalog adapts raw catalog API payloads into playable items.
package catalog

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/aurisono/tonearm/internal/domain/item"
)

// Moderation status values used by the catalog API.
const (
	statusVisible = "visible"
	statusHidden  = "hidden"
)

// SongPayload is the catalog API's JSON shape for a song.
type SongPayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ArtistName  string   `json:"artist_name"`
	DurationSec *float64 `json:"duration_sec"`
	MediaURL    *string  `json:"media_url"`
	CoverURL    *string  `json:"cover_url"`
	Status      string   `json:"status"`
}

// EpisodePayload is the catalog API's JSON shape for a podcast episode.
type EpisodePayload struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ShowName    string   `json:"show_name"`
	DurationSec *float64 `json:"duration_sec"`
	MediaURL    *string  `json:"media_url"`
	CoverURL    *string  `json:"cover_url"`
	Status      string   `json:"status"`
}

// Adapter converts catalog payloads into engine items.
//
// MissingStatusPlayable decides what an absent moderation status means.
// Episodes historically carry no status at all, so the production default
// is true; it is an explicit setting rather than an implicit absence check.
type Adapter struct {
	MissingStatusPlayable bool
}

// available resolves a moderation status to the availability flag.
func (a *Adapter) available(status string) bool {
	switch status {
	case statusVisible:
		return true
	case statusHidden:
		return false
	default:
		return a.MissingStatusPlayable
	}
}

// Song converts a song payload.
func (a *Adapter) Song(p SongPayload) item.Item {
	return item.Item{
		ID:          p.ID,
		Kind:        item.KindSong,
		Title:       p.Title,
		Creator:     p.ArtistName,
		DurationSec: deref(p.DurationSec),
		MediaURL:    derefStr(p.MediaURL),
		CoverURL:    derefStr(p.CoverURL),
		Available:   a.available(p.Status),
	}
}

// Episode converts an episode payload.
func (a *Adapter) Episode(p EpisodePayload) item.Item {
	return item.Item{
		ID:          p.ID,
		Kind:        item.KindEpisode,
		Title:       p.Title,
		Creator:     p.ShowName,
		DurationSec: deref(p.DurationSec),
		MediaURL:    derefStr(p.MediaURL),
		CoverURL:    derefStr(p.CoverURL),
		Available:   a.available(p.Status),
	}
}

// SongsFromJSON decodes a JSON array of song payloads.
func (a *Adapter) SongsFromJSON(data []byte) ([]item.Item, error) {
	var payloads []SongPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, errors.Wrap(err, "failed to parse song payloads")
	}
	items := make([]item.Item, len(payloads))
	for i, p := range payloads {
		items[i] = a.Song(p)
	}
	return items, nil
}

// EpisodesFromJSON decodes a JSON array of episode payloads.
func (a *Adapter) EpisodesFromJSON(data []byte) ([]item.Item, error) {
	var payloads []EpisodePayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, errors.Wrap(err, "failed to parse episode payloads")
	}
	items := make([]item.Item, len(payloads))
	for i, p := range payloads {
		items[i] = a.Episode(p)
	}
	return items, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
