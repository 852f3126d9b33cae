package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
)

// historyRequest represents the body of POST /v1/history.
type historyRequest struct {
	ItemKey string `json:"item_key"`
}

// IncrementStreamCount ticks the stream counter for an item.
// Implements report.ActivitySink.
func (c *Client) IncrementStreamCount(ctx context.Context, itemKey string) error {
	if itemKey == "" {
		return errors.New("item key is required")
	}
	path := "/v1/items/" + url.PathEscape(itemKey) + "/streams"
	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return errors.Wrap(err, "failed to increment stream count")
	}
	return nil
}

// AppendHistory appends a listening-history entry for an item.
// Implements report.ActivitySink.
func (c *Client) AppendHistory(ctx context.Context, itemKey string) error {
	if itemKey == "" {
		return errors.New("item key is required")
	}
	if err := c.do(ctx, http.MethodPost, "/v1/history", historyRequest{ItemKey: itemKey}, nil); err != nil {
		return errors.Wrap(err, "failed to append history entry")
	}
	return nil
}
