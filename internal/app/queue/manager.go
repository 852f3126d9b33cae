// Package queue provides the three-tier playback queue and mode policy.
//
// Tier priority when resolving "what plays next" is: server queue (remotely
// persisted), up-next queue (local, ephemeral), then the contextual base
// queue by advancing its index. Only the base queue is subject to
// shuffle/repeat transforms.
package queue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/aurisono/tonearm/internal/domain/item"
)

// RemoteQueue is the narrow interface to the server-persisted queue store.
// Implementations must be safe to call from multiple goroutines. Failures
// are treated as "queue temporarily empty", never fatal.
type RemoteQueue interface {
	FetchQueue(ctx context.Context) ([]item.QueueEntry, error)
	DeleteEntry(ctx context.Context, entryID string) error
}

// Manager owns the three queue tiers and the selection rules across them.
type Manager struct {
	mu sync.Mutex

	remote RemoteQueue // nil when no authenticated caller context exists

	server []item.QueueEntry
	upNext []item.QueueEntry

	base      []item.QueueEntry
	baseIndex int
	baseOrder []item.QueueEntry // Pre-shuffle snapshot for lossless restore

	mode   Mode
	source Source

	rng *rand.Rand
}

// NewManager creates a queue manager. remote may be nil, in which case the
// server tier stays empty and consumption never issues remote deletes.
func NewManager(remote RemoteQueue) *Manager {
	return &Manager{
		remote: remote,
		mode:   ModeNormal,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Mode returns the current playback mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Source returns the tier that supplied the current item.
func (m *Manager) Source() Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// SetContextual replaces the base queue with the playable subset of items.
// The originally selected item stays selected after filtering; if it was
// itself filtered out the selection falls back to index 0. In shuffle mode
// the selected item is pinned first and the remainder permuted. No-op when
// the filtered result is empty.
//
// Returns the entry that should be loaded now.
func (m *Manager) SetContextual(items []item.Item, startIndex int) (*item.QueueEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]item.QueueEntry, 0, len(items))
	selected := -1
	for i, it := range items {
		if !it.Playable() {
			continue
		}
		if i == startIndex {
			selected = len(filtered)
		}
		filtered = append(filtered, item.QueueEntry{
			ID:       uuid.New().String(),
			Item:     it,
			Position: len(filtered),
		})
	}
	if len(filtered) == 0 {
		zlog.Debug().Msg("queue: contextual queue empty after availability filtering, ignoring")
		return nil, false
	}
	if selected < 0 {
		selected = 0
	}

	// Snapshot the original filtered order so leaving shuffle can restore it.
	m.baseOrder = make([]item.QueueEntry, len(filtered))
	copy(m.baseOrder, filtered)

	m.base = filtered
	m.baseIndex = selected
	if m.mode == ModeShuffle {
		m.shuffleBaseLocked()
	}
	m.source = SourceBase

	cur := m.base[m.baseIndex]
	return &cur, true
}

// InsertUpNextFront prepends an item to the up-next queue ("play next").
// No-op on nil.
func (m *Manager) InsertUpNextFront(it *item.Item) {
	if it == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := item.QueueEntry{ID: uuid.New().String(), Item: *it}
	m.upNext = append([]item.QueueEntry{entry}, m.upNext...)
	m.renumberLocked(m.upNext)
}

// InsertUpNextEnd appends an item to the up-next queue. No-op on nil.
func (m *Manager) InsertUpNextEnd(it *item.Item) {
	if it == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upNext = append(m.upNext, item.QueueEntry{
		ID:       uuid.New().String(),
		Item:     *it,
		Position: len(m.upNext),
	})
}

// NextPlayable returns the next eligible entry by tier priority and consumes
// it: server and up-next entries are dequeued, the base index advances.
// Entries that became unplayable since they were enqueued are skipped, not
// surfaced. Returns false when every tier is exhausted.
func (m *Manager) NextPlayable() (*item.QueueEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Server tier: consume FIFO, best-effort remote delete for every
	// dequeued entry, playable or not.
	for len(m.server) > 0 {
		entry := m.server[0]
		m.server = m.server[1:]
		m.deleteRemoteLocked(entry.ID)
		if entry.Item.Playable() {
			m.source = SourceServer
			return &entry, true
		}
	}

	// Up-next tier: local FIFO.
	for len(m.upNext) > 0 {
		entry := m.upNext[0]
		m.upNext = m.upNext[1:]
		if entry.Item.Playable() {
			m.source = SourceUpNext
			return &entry, true
		}
	}

	// Base tier: advance the index past the last base position.
	for i := m.baseIndex + 1; i < len(m.base); i++ {
		if m.base[i].Item.Playable() {
			m.baseIndex = i
			m.source = SourceBase
			entry := m.base[i]
			return &entry, true
		}
	}

	m.source = SourceNone
	return nil, false
}

// PreviousTarget resolves a "previous" request.
//
// When the current item came from the server or up-next tier, previous
// returns to the base queue's last known position instead of walking those
// tiers. When the current base item has played past restartThresholdSec,
// the resolution is "restart in place". Otherwise the nearest earlier
// playable base entry wins, falling back to restart (if the current entry
// is playable) or no-op.
func (m *Manager) PreviousTarget(elapsedSec, restartThresholdSec float64) (PrevAction, *item.QueueEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source == SourceServer || m.source == SourceUpNext {
		if i, ok := m.scanBackLocked(m.baseIndex + 1); ok {
			m.baseIndex = i
			m.source = SourceBase
			entry := m.base[i]
			return PrevPlay, &entry
		}
		return PrevNone, nil
	}

	if len(m.base) == 0 {
		return PrevNone, nil
	}

	if elapsedSec > restartThresholdSec {
		entry := m.base[m.baseIndex]
		return PrevRestart, &entry
	}

	if i, ok := m.scanBackLocked(m.baseIndex); ok {
		m.baseIndex = i
		m.source = SourceBase
		entry := m.base[i]
		return PrevPlay, &entry
	}

	if m.base[m.baseIndex].Item.Playable() {
		entry := m.base[m.baseIndex]
		return PrevRestart, &entry
	}
	return PrevNone, nil
}

// scanBackLocked finds the nearest playable base entry strictly before
// before. Must be called with lock held.
func (m *Manager) scanBackLocked(before int) (int, bool) {
	if before > len(m.base) {
		before = len(m.base)
	}
	for i := before - 1; i >= 0; i-- {
		if m.base[i].Item.Playable() {
			return i, true
		}
	}
	return 0, false
}

// SetMode applies the mode policy to the base queue. Switching into shuffle
// pins the current base item first and permutes the rest; switching out
// restores the snapshotted pre-shuffle order, dropping entries that became
// unplayable, and relocates the index to the current item. Mode changes
// never touch the currently loaded item.
func (m *Manager) SetMode(mode Mode) {
	if !mode.Valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if mode == m.mode {
		return
	}
	entering := mode == ModeShuffle
	leaving := m.mode == ModeShuffle
	m.mode = mode

	if len(m.base) == 0 {
		return
	}

	switch {
	case entering:
		m.baseOrder = make([]item.QueueEntry, len(m.base))
		copy(m.baseOrder, m.base)
		m.shuffleBaseLocked()
	case leaving:
		m.restoreBaseLocked()
	}
}

// shuffleBaseLocked relocates the current entry to index 0 and
// Fisher-Yates shuffles the remainder. Must be called with lock held.
func (m *Manager) shuffleBaseLocked() {
	if len(m.base) == 0 {
		return
	}
	cur := m.base[m.baseIndex]
	rest := make([]item.QueueEntry, 0, len(m.base)-1)
	for i, e := range m.base {
		if i != m.baseIndex {
			rest = append(rest, e)
		}
	}
	m.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	m.base = append([]item.QueueEntry{cur}, rest...)
	m.baseIndex = 0
	m.renumberLocked(m.base)
}

// restoreBaseLocked restores the pre-shuffle order filtered to entries that
// are still playable. Must be called with lock held.
func (m *Manager) restoreBaseLocked() {
	curKey := m.base[m.baseIndex].Item.Key()

	restored := make([]item.QueueEntry, 0, len(m.baseOrder))
	for _, e := range m.baseOrder {
		if e.Item.Playable() {
			restored = append(restored, e)
		}
	}
	if len(restored) == 0 {
		return
	}

	idx := 0
	for i, e := range restored {
		if e.Item.Key() == curKey {
			idx = i
			break
		}
	}
	m.base = restored
	m.baseIndex = idx
	m.renumberLocked(m.base)
}

// SyncServerQueue refreshes the server tier from the remote store. A fetch
// failure leaves the tier empty; the engine keeps playing from the lower
// tiers.
func (m *Manager) SyncServerQueue(ctx context.Context) {
	m.mu.Lock()
	remote := m.remote
	m.mu.Unlock()
	if remote == nil {
		return
	}

	entries, err := remote.FetchQueue(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("queue: server queue fetch failed, treating as empty")
		entries = nil
	}

	m.mu.Lock()
	m.server = entries
	m.mu.Unlock()
}

// RemoveServerEntry removes one server-tier entry locally and issues a
// best-effort remote delete.
func (m *Manager) RemoveServerEntry(entryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.server {
		if e.ID == entryID {
			m.server = append(m.server[:i], m.server[i+1:]...)
			m.deleteRemoteLocked(entryID)
			return
		}
	}
}

// ClearUpNext drops the local up-next tier.
func (m *Manager) ClearUpNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upNext = nil
}

// Upcoming returns a copy of everything that would play after the current
// item, in selection order.
func (m *Manager) Upcoming() []item.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]item.QueueEntry, 0, len(m.server)+len(m.upNext)+len(m.base))
	result = append(result, m.server...)
	result = append(result, m.upNext...)
	if m.baseIndex+1 < len(m.base) {
		result = append(result, m.base[m.baseIndex+1:]...)
	}
	return result
}

// deleteRemoteLocked issues a fire-and-forget remote delete for a consumed
// or removed server entry. Must be called with lock held.
func (m *Manager) deleteRemoteLocked(entryID string) {
	if m.remote == nil || entryID == "" {
		return
	}
	remote := m.remote
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := remote.DeleteEntry(ctx, entryID); err != nil {
			zlog.Warn().Err(err).Str("entry_id", entryID).Msg("queue: remote queue delete failed")
		}
	}()
}

// renumberLocked rewrites ordinal positions after a reorder. Must be called
// with lock held.
func (m *Manager) renumberLocked(entries []item.QueueEntry) {
	for i := range entries {
		entries[i].Position = i
	}
}
