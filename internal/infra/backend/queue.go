package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/aurisono/tonearm/internal/app/queue"
	"github.com/aurisono/tonearm/internal/domain/item"
)

// wireQueueEntry is the backend's JSON shape for a server queue entry.
type wireQueueEntry struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Item     wireItem `json:"item"`
}

// queueResponse represents the response from GET /v1/queue.
type queueResponse struct {
	Entries []wireQueueEntry `json:"entries"`
}

// appendRequest represents the body of POST /v1/queue.
type appendRequest struct {
	Item wireItem `json:"item"`
	Mode string   `json:"mode"` // END or NEXT
}

// FetchQueue retrieves the current server-persisted queue.
// Implements queue.RemoteQueue.
func (c *Client) FetchQueue(ctx context.Context) ([]item.QueueEntry, error) {
	var resp queueResponse
	if err := c.do(ctx, http.MethodGet, "/v1/queue", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch server queue")
	}

	entries := make([]item.QueueEntry, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		entries = append(entries, item.QueueEntry{
			ID:       e.ID,
			Position: e.Position,
			Item:     e.Item.toItem(),
		})
	}
	return entries, nil
}

// AppendEntry adds an item to the server queue with the given insertion
// mode and returns the server-assigned entry.
func (c *Client) AppendEntry(ctx context.Context, it item.Item, mode queue.InsertMode) (item.QueueEntry, error) {
	var resp wireQueueEntry
	req := appendRequest{Item: toWireItem(it), Mode: string(mode)}
	if err := c.do(ctx, http.MethodPost, "/v1/queue", req, &resp); err != nil {
		return item.QueueEntry{}, errors.Wrap(err, "failed to append queue entry")
	}
	return item.QueueEntry{ID: resp.ID, Position: resp.Position, Item: resp.Item.toItem()}, nil
}

// DeleteEntry removes one server queue entry. Implements queue.RemoteQueue.
func (c *Client) DeleteEntry(ctx context.Context, entryID string) error {
	if entryID == "" {
		return errors.New("entry ID is required")
	}
	path := "/v1/queue/" + url.PathEscape(entryID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return errors.Wrap(err, "failed to delete queue entry")
	}
	return nil
}

// ClearQueue removes every entry from the server queue.
func (c *Client) ClearQueue(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/queue", nil, nil); err != nil {
		return errors.Wrap(err, "failed to clear server queue")
	}
	return nil
}
