package backend

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/aurisono/tonearm/internal/app/prefs"
	"github.com/aurisono/tonearm/internal/app/queue"
)

// wirePrefs is the backend's JSON shape for stored preferences.
type wirePrefs struct {
	Volume   float64 `json:"volume"`
	Mode     string  `json:"mode"`
	Autoplay bool    `json:"autoplay"`
}

// LoadPrefs fetches stored playback preferences. Implements prefs.Store.
func (c *Client) LoadPrefs(ctx context.Context) (prefs.Prefs, error) {
	var resp wirePrefs
	if err := c.do(ctx, http.MethodGet, "/v1/prefs", nil, &resp); err != nil {
		return prefs.Prefs{}, errors.Wrap(err, "failed to load preferences")
	}
	return prefs.Prefs{
		Volume:   resp.Volume,
		Mode:     queue.Mode(resp.Mode),
		Autoplay: resp.Autoplay,
	}, nil
}

// SavePrefs writes playback preferences through to the backend.
// Implements prefs.Store.
func (c *Client) SavePrefs(ctx context.Context, p prefs.Prefs) error {
	req := wirePrefs{Volume: p.Volume, Mode: string(p.Mode), Autoplay: p.Autoplay}
	if err := c.do(ctx, http.MethodPut, "/v1/prefs", req, nil); err != nil {
		return errors.Wrap(err, "failed to save preferences")
	}
	return nil
}
