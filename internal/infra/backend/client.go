// Package backend provides the HTTP client for the streaming app's
// backend: the server-persisted queue, the activity endpoints and the
// preference store. Callers treat every failure as soft; the engine keeps
// playing from local state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aurisono/tonearm/internal/domain/item"
)

// Client is the backend API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Config represents backend client configuration.
type Config struct {
	BaseURL string
	Token   string // Per-caller credential; empty means unauthenticated
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Authenticated reports whether the client carries a caller credential.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// wireItem is the backend's JSON shape for a playable item.
type wireItem struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Creator     string  `json:"creator"`
	DurationSec float64 `json:"duration_sec"`
	MediaURL    string  `json:"media_url"`
	CoverURL    string  `json:"cover_url,omitempty"`
	Available   bool    `json:"available"`
}

func toWireItem(it item.Item) wireItem {
	return wireItem{
		ID:          it.ID,
		Kind:        string(it.Kind),
		Title:       it.Title,
		Creator:     it.Creator,
		DurationSec: it.DurationSec,
		MediaURL:    it.MediaURL,
		CoverURL:    it.CoverURL,
		Available:   it.Available,
	}
}

func (w wireItem) toItem() item.Item {
	return item.Item{
		ID:          w.ID,
		Kind:        item.Kind(w.Kind),
		Title:       w.Title,
		Creator:     w.Creator,
		DurationSec: w.DurationSec,
		MediaURL:    w.MediaURL,
		CoverURL:    w.CoverURL,
		Available:   w.Available,
	}
}

// do executes one request and decodes the JSON response into out (when out
// is non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("backend returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}
