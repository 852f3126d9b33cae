package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurisono/tonearm/internal/app/prefs"
	"github.com/aurisono/tonearm/internal/app/queue"
	"github.com/aurisono/tonearm/internal/domain/item"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, Token: "test_token"})
	require.NoError(t, err)
	return client
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestAuthenticated(t *testing.T) {
	withToken, err := New(Config{BaseURL: "http://localhost", Token: "t"})
	require.NoError(t, err)
	assert.True(t, withToken.Authenticated())

	anonymous, err := New(Config{BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.False(t, anonymous.Authenticated())
}

func TestFetchQueue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/queue", r.URL.Path)
		assert.Equal(t, "Bearer test_token", r.Header.Get("Authorization"))

		response := `{
			"entries": [
				{"id": "q1", "position": 0, "item": {"id": "42", "kind": "song", "title": "First", "media_url": "https://cdn/42.mp3", "available": true}},
				{"id": "q2", "position": 1, "item": {"id": "7", "kind": "episode", "title": "Second", "media_url": "https://cdn/7.mp3", "available": false}}
			]
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	})

	entries, err := client.FetchQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q1", entries[0].ID)
	assert.Equal(t, item.KindSong, entries[0].Item.Kind)
	assert.True(t, entries[0].Item.Playable())
	assert.Equal(t, item.KindEpisode, entries[1].Item.Kind)
	assert.False(t, entries[1].Item.Playable())
}

func TestAppendEntry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/queue", r.URL.Path)

		var req appendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "NEXT", req.Mode)
		assert.Equal(t, "42", req.Item.ID)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "q9", "position": 0, "item": {"id": "42", "kind": "song", "media_url": "https://cdn/42.mp3", "available": true}}`)
	})

	it := item.Item{ID: "42", Kind: item.KindSong, MediaURL: "https://cdn/42.mp3", Available: true}
	entry, err := client.AppendEntry(context.Background(), it, queue.InsertNext)
	require.NoError(t, err)
	assert.Equal(t, "q9", entry.ID)
	assert.Equal(t, "42", entry.Item.ID)
}

func TestDeleteEntry(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteEntry(context.Background(), "q1"))
	assert.Equal(t, "/v1/queue/q1", gotPath)

	assert.Error(t, client.DeleteEntry(context.Background(), ""))
}

func TestClearQueue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/queue", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, client.ClearQueue(context.Background()))
}

func TestIncrementStreamCount(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.IncrementStreamCount(context.Background(), "song:42"))
	assert.Equal(t, "/v1/items/song:42/streams", gotPath)
}

func TestAppendHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/history", r.URL.Path)

		var req historyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "episode:7", req.ItemKey)
		w.WriteHeader(http.StatusCreated)
	})
	assert.NoError(t, client.AppendHistory(context.Background(), "episode:7"))
}

func TestPrefsRoundTrip(t *testing.T) {
	stored := wirePrefs{Volume: 0.8, Mode: "shuffle", Autoplay: true}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prefs", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(stored))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&stored))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	p, err := client.LoadPrefs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.8, p.Volume)
	assert.Equal(t, queue.ModeShuffle, p.Mode)

	p.Volume = 0.5
	p.Mode = queue.ModeNormal
	require.NoError(t, client.SavePrefs(context.Background(), p))
	assert.Equal(t, 0.5, stored.Volume)
	assert.Equal(t, "normal", stored.Mode)
}

func TestServerErrorIsReturned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.FetchQueue(context.Background())
	assert.Error(t, err)

	_, err = client.LoadPrefs(context.Background())
	assert.Error(t, err)

	assert.Error(t, client.IncrementStreamCount(context.Background(), "song:1"))
}

var _ queue.RemoteQueue = (*Client)(nil)
var _ prefs.Store = (*Client)(nil)
