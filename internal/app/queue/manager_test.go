package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurisono/tonearm/internal/domain/item"
)

func song(id string) item.Item {
	return item.Item{
		ID:        id,
		Kind:      item.KindSong,
		Title:     "Song " + id,
		MediaURL:  fmt.Sprintf("https://cdn.example.com/%s.mp3", id),
		Available: true,
	}
}

func hiddenSong(id string) item.Item {
	s := song(id)
	s.Available = false
	return s
}

func noURLSong(id string) item.Item {
	s := song(id)
	s.MediaURL = ""
	return s
}

// fakeRemote records deletions for assertion.
type fakeRemote struct {
	mu       sync.Mutex
	entries  []item.QueueEntry
	fetchErr error
	deleted  []string
}

func (f *fakeRemote) FetchQueue(_ context.Context) ([]item.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.entries, nil
}

func (f *fakeRemote) DeleteEntry(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, entryID)
	return nil
}

func TestSetContextual_FiltersUnplayable(t *testing.T) {
	m := NewManager(nil)

	cur, ok := m.SetContextual([]item.Item{song("1"), noURLSong("2"), song("3")}, 0)
	require.True(t, ok)
	assert.Equal(t, "1", cur.Item.ID)

	next, ok := m.NextPlayable()
	require.True(t, ok)
	assert.Equal(t, "3", next.Item.ID)

	_, ok = m.NextPlayable()
	assert.False(t, ok, "queue should be exhausted after the last playable item")
}

func TestSetContextual_SelectionRemapping(t *testing.T) {
	tests := []struct {
		name       string
		items      []item.Item
		startIndex int
		expectedID string
	}{
		{
			name:       "selection survives filtering",
			items:      []item.Item{song("1"), hiddenSong("2"), song("3")},
			startIndex: 2,
			expectedID: "3",
		},
		{
			name:       "selection itself filtered out falls back to 0",
			items:      []item.Item{song("1"), hiddenSong("2"), song("3")},
			startIndex: 1,
			expectedID: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil)
			cur, ok := m.SetContextual(tt.items, tt.startIndex)
			require.True(t, ok)
			assert.Equal(t, tt.expectedID, cur.Item.ID)
		})
	}
}

func TestSetContextual_EmptyAfterFilterIsNoop(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{hiddenSong("1"), noURLSong("2")}, 0)
	assert.False(t, ok)

	_, ok = m.NextPlayable()
	assert.False(t, ok)
}

func TestNextPlayable_TierPriority(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("b1"), song("b2"), song("b3")}, 0)
	require.True(t, ok)

	m.server = []item.QueueEntry{{ID: "sq1", Item: song("s1")}}
	up := song("u1")
	m.InsertUpNextEnd(&up)

	first, ok := m.NextPlayable()
	require.True(t, ok)
	assert.Equal(t, "s1", first.Item.ID, "server tier drains first")
	assert.Equal(t, SourceServer, m.Source())

	second, ok := m.NextPlayable()
	require.True(t, ok)
	assert.Equal(t, "u1", second.Item.ID, "up-next tier drains second")
	assert.Equal(t, SourceUpNext, m.Source())

	third, ok := m.NextPlayable()
	require.True(t, ok)
	assert.Equal(t, "b2", third.Item.ID, "base advances last")
	assert.Equal(t, SourceBase, m.Source())
}

func TestNextPlayable_SkipsEntriesThatBecameUnplayable(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("b1"), song("b2")}, 0)
	require.True(t, ok)

	// Availability changed between enqueue and dequeue.
	m.upNext = []item.QueueEntry{
		{ID: "u1", Item: hiddenSong("u1")},
		{ID: "u2", Item: song("u2")},
	}

	next, ok := m.NextPlayable()
	require.True(t, ok)
	assert.Equal(t, "u2", next.Item.ID)
}

func TestNextPlayable_ServerConsumptionDeletesRemotely(t *testing.T) {
	remote := &fakeRemote{entries: []item.QueueEntry{
		{ID: "sq1", Item: song("s1")},
		{ID: "sq2", Item: song("s2")},
	}}
	m := NewManager(remote)
	m.SyncServerQueue(context.Background())

	next, ok := m.NextPlayable()
	require.True(t, ok)
	assert.Equal(t, "s1", next.Item.ID)

	// Remote delete is fire-and-forget; wait for it without assuming timing.
	assert.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return len(remote.deleted) == 1 && remote.deleted[0] == "sq1"
	}, time.Second, 10*time.Millisecond)
}

func TestSyncServerQueue_FetchFailureMeansEmpty(t *testing.T) {
	remote := &fakeRemote{fetchErr: assert.AnError}
	m := NewManager(remote)
	m.server = []item.QueueEntry{{ID: "stale", Item: song("s")}}

	m.SyncServerQueue(context.Background())

	_, ok := m.NextPlayable()
	assert.False(t, ok)
}

func TestInsertUpNext_FrontAndEnd(t *testing.T) {
	m := NewManager(nil)
	a, b, c := song("a"), song("b"), song("c")

	m.InsertUpNextEnd(&a)
	m.InsertUpNextEnd(&b)
	m.InsertUpNextFront(&c)
	m.InsertUpNextFront(nil) // no-op
	m.InsertUpNextEnd(nil)   // no-op

	var got []string
	for {
		e, ok := m.NextPlayable()
		if !ok {
			break
		}
		got = append(got, e.Item.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestPreviousTarget_RestartAfterThreshold(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("1"), song("2")}, 1)
	require.True(t, ok)

	action, entry := m.PreviousTarget(10, 3)
	assert.Equal(t, PrevRestart, action)
	assert.Equal(t, "2", entry.Item.ID)
}

func TestPreviousTarget_MovesToEarlierPlayable(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("1"), song("2"), song("3")}, 2)
	require.True(t, ok)

	action, entry := m.PreviousTarget(1, 3)
	assert.Equal(t, PrevPlay, action)
	assert.Equal(t, "2", entry.Item.ID)
}

func TestPreviousTarget_SkipsUnplayableBackward(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("1"), song("2"), song("3")}, 2)
	require.True(t, ok)
	// Entry 2 became hidden after the base queue was built.
	m.base[1].Item.Available = false

	action, entry := m.PreviousTarget(1, 3)
	assert.Equal(t, PrevPlay, action)
	assert.Equal(t, "1", entry.Item.ID)
}

func TestPreviousTarget_NoEarlierEntryRestarts(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("1"), song("2")}, 0)
	require.True(t, ok)

	action, entry := m.PreviousTarget(1, 3)
	assert.Equal(t, PrevRestart, action)
	assert.Equal(t, "1", entry.Item.ID)
}

func TestPreviousTarget_FromServerSourceReturnsToBase(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("b1"), song("b2"), song("b3")}, 1)
	require.True(t, ok)

	m.server = []item.QueueEntry{{ID: "sq1", Item: song("s1")}}
	served, ok := m.NextPlayable()
	require.True(t, ok)
	require.Equal(t, "s1", served.Item.ID)

	action, entry := m.PreviousTarget(30, 3)
	assert.Equal(t, PrevPlay, action)
	assert.Equal(t, "b2", entry.Item.ID, "previous returns to the remembered base position")
	assert.Equal(t, SourceBase, m.Source())
}

func TestSetMode_ShuffleRoundTrip(t *testing.T) {
	items := []item.Item{song("1"), song("2"), song("3"), song("4"), song("5")}
	m := NewManager(nil)
	m.rng = rand.New(rand.NewSource(1))

	_, ok := m.SetContextual(items, 2)
	require.True(t, ok)

	m.SetMode(ModeShuffle)
	assert.Equal(t, "3", m.base[0].Item.ID, "current item pinned first after shuffle")
	assert.Len(t, m.base, 5)

	m.SetMode(ModeNormal)
	var order []string
	for _, e := range m.base {
		order = append(order, e.Item.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, order, "leaving shuffle restores original order")
	assert.Equal(t, 2, m.baseIndex, "index relocated to the current item")
}

func TestSetMode_RestoreDropsNowUnplayable(t *testing.T) {
	m := NewManager(nil)
	m.rng = rand.New(rand.NewSource(7))
	_, ok := m.SetContextual([]item.Item{song("1"), song("2"), song("3")}, 0)
	require.True(t, ok)

	m.SetMode(ModeShuffle)
	for i := range m.baseOrder {
		if m.baseOrder[i].Item.ID == "2" {
			m.baseOrder[i].Item.Available = false
		}
	}
	m.SetMode(ModeNormal)

	var order []string
	for _, e := range m.base {
		order = append(order, e.Item.ID)
	}
	assert.Equal(t, []string{"1", "3"}, order)
}

func TestSetMode_ShuffleAtContextualStart(t *testing.T) {
	m := NewManager(nil)
	m.rng = rand.New(rand.NewSource(3))
	m.SetMode(ModeShuffle)

	cur, ok := m.SetContextual([]item.Item{song("1"), song("2"), song("3"), song("4")}, 3)
	require.True(t, ok)
	assert.Equal(t, "4", cur.Item.ID, "selected item pinned first when queue is built shuffled")
	assert.Equal(t, 0, m.baseIndex)
}

func TestUpcoming(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.SetContextual([]item.Item{song("b1"), song("b2"), song("b3")}, 0)
	require.True(t, ok)
	m.server = []item.QueueEntry{{ID: "sq1", Item: song("s1")}}
	u := song("u1")
	m.InsertUpNextEnd(&u)

	var got []string
	for _, e := range m.Upcoming() {
		got = append(got, e.Item.ID)
	}
	assert.Equal(t, []string{"s1", "u1", "b2", "b3"}, got)
}

func TestRemoveServerEntry(t *testing.T) {
	remote := &fakeRemote{}
	m := NewManager(remote)
	m.server = []item.QueueEntry{
		{ID: "sq1", Item: song("s1")},
		{ID: "sq2", Item: song("s2")},
	}

	m.RemoveServerEntry("sq1")

	assert.Len(t, m.server, 1)
	assert.Equal(t, "sq2", m.server[0].ID)
	assert.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return len(remote.deleted) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestClearUpNext(t *testing.T) {
	m := NewManager(nil)
	a := song("a")
	m.InsertUpNextEnd(&a)
	m.ClearUpNext()
	_, ok := m.NextPlayable()
	assert.False(t, ok)
}
