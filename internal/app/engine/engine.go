package engine

import (
	"context"
	"math"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/aurisono/tonearm/internal/app/prefs"
	"github.com/aurisono/tonearm/internal/app/queue"
	"github.com/aurisono/tonearm/internal/app/report"
	"github.com/aurisono/tonearm/internal/app/sink"
	"github.com/aurisono/tonearm/internal/domain/item"
)

// Config holds engine tunables.
type Config struct {
	MetadataTimeout     time.Duration // Bounded wait for metadata readiness
	RestartThresholdSec float64       // "Previous" restarts in place past this elapsed time
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		MetadataTimeout:     1500 * time.Millisecond,
		RestartThresholdSec: 3,
	}
}

// Snapshot is the read-only playback state exposed for rendering.
type Snapshot struct {
	Current     *item.Item
	State       State
	PositionSec float64
	DurationSec float64
	Volume      float64
	Mode        queue.Mode
	Autoplay    bool
}

// Engine drives the media output sink from the three-tier queue, reacting
// to sink lifecycle events and scheduling activity reports. All failures
// are absorbed here; the only user-visible failure mode is that nothing
// more plays.
type Engine struct {
	mu sync.Mutex

	out      sink.Sink
	queue    *queue.Manager
	reporter *report.Reporter
	prefs    *prefs.Syncer
	cfg      Config

	state       State
	current     *item.QueueEntry
	positionSec float64
	durationSec float64
	volume      float64
	autoplay    bool

	// Sequence guard: a metadata wait resolves only while its sequence
	// number still matches the latest issued load.
	loadSeq     uint64
	metaCancel  func() // Pending metadata-timeout timer
	pendingPlay bool   // autoPlay of the in-flight load

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine. reporter and syncer may be constructed disabled
// (nil backing) but must not be nil themselves.
func New(out sink.Sink, qm *queue.Manager, reporter *report.Reporter, syncer *prefs.Syncer, cfg Config) *Engine {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 1500 * time.Millisecond
	}
	if cfg.RestartThresholdSec <= 0 {
		cfg.RestartThresholdSec = 3
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		out:      out,
		queue:    qm,
		reporter: reporter,
		prefs:    syncer,
		cfg:      cfg,
		state:    StateIdle,
		volume:   1.0,
		autoplay: true,
		ctx:      ctx,
		cancel:   cancel,
	}
	go e.drainSinkEvents()
	return e
}

// Start applies stored preferences and pulls the server queue. Remote
// failures degrade to defaults / an empty server tier.
func (e *Engine) Start(ctx context.Context) {
	p := e.prefs.Load(ctx)

	e.mu.Lock()
	e.volume = p.Volume
	e.autoplay = p.Autoplay
	e.out.SetVolume(p.Volume)
	e.mu.Unlock()

	e.queue.SetMode(p.Mode)
	e.queue.SyncServerQueue(ctx)
}

// Snapshot returns a copy of the current playback state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:       e.state,
		PositionSec: e.positionSec,
		DurationSec: e.durationSec,
		Volume:      e.volume,
		Mode:        e.queue.Mode(),
		Autoplay:    e.autoplay,
	}
	if e.current != nil {
		it := e.current.Item
		snap.Current = &it
	}
	return snap
}

// LoadItem loads a single item outside any queue context.
func (e *Engine) LoadItem(it item.Item, autoPlay bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := item.QueueEntry{Item: it}
	e.loadLocked(&entry, autoPlay)
}

// SetContextualQueue replaces the base queue and starts playing the
// selected item. No-op when nothing in items is playable.
func (e *Engine) SetContextualQueue(items []item.Item, startIndex int) {
	entry, ok := e.queue.SetContextual(items, startIndex)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadLocked(entry, true)
}

// EnqueueNext inserts an item at the front of the up-next queue.
func (e *Engine) EnqueueNext(it *item.Item) {
	e.queue.InsertUpNextFront(it)
}

// EnqueueEnd appends an item to the up-next queue.
func (e *Engine) EnqueueEnd(it *item.Item) {
	e.queue.InsertUpNextEnd(it)
}

// Play starts or resumes playback. With no current item it resolves one
// through the queue tiers first; during a load it re-arms the pending
// autoplay.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		e.advanceLocked(true)
		return
	}
	if e.state == StateLoading {
		e.pendingPlay = true
		return
	}
	if e.state == StatePlaying {
		return
	}
	e.playLocked()
}

// Pause pauses playback and cancels the pending stream tick. Pausing
// during a load cancels its pending autoplay, so the item settles paused
// once metadata resolves.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateLoading:
		e.pendingPlay = false
	case StatePlaying:
		e.out.Pause()
		e.state = StatePaused
		e.reporter.Paused()
	}
}

// TogglePlay toggles between play and pause.
func (e *Engine) TogglePlay() {
	e.mu.Lock()
	playing := e.state == StatePlaying
	e.mu.Unlock()

	if playing {
		e.Pause()
	} else {
		e.Play()
	}
}

// Seek moves the position. Non-finite values are ignored, negative values
// clamp to 0.
func (e *Engine) Seek(sec float64) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return
	}
	if sec < 0 {
		sec = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return
	}
	e.out.Seek(sec)
	e.positionSec = sec

	// Continuous playback starts over after a seek.
	e.reporter.SeekedAway()
	if e.state == StatePlaying {
		e.reporter.PlayingStarted(e.current.Item.Key(), e.stillPlayingFn(e.current.Item.Key()))
	}
}

// SkipNext advances to the next playable target across the tiers.
func (e *Engine) SkipNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked(e.autoplay)
}

// SkipPrevious resolves a "previous" request: back into the base queue,
// restart in place, or nothing.
func (e *Engine) SkipPrevious() {
	e.mu.Lock()
	defer e.mu.Unlock()

	action, entry := e.queue.PreviousTarget(e.positionSec, e.cfg.RestartThresholdSec)
	switch action {
	case queue.PrevRestart:
		if e.current == nil {
			return
		}
		e.out.Seek(0)
		e.positionSec = 0
		e.reporter.SeekedAway()
		if e.state == StatePlaying {
			e.reporter.PlayingStarted(e.current.Item.Key(), e.stillPlayingFn(e.current.Item.Key()))
		}
	case queue.PrevPlay:
		e.loadLocked(entry, e.autoplay)
	case queue.PrevNone:
	}
}

// SetVolume sets the output volume (clamped to 0..1) and schedules the
// preference write-through.
func (e *Engine) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Min(1, math.Max(0, v))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	e.out.SetVolume(v)
	e.updatePrefsLocked()
}

// SetMode applies a new playback mode. The currently loaded item is never
// interrupted; the mode only affects future advance/previous resolution.
func (e *Engine) SetMode(m queue.Mode) {
	if !m.Valid() {
		return
	}
	e.queue.SetMode(m)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.updatePrefsLocked()
}

// SetAutoplay sets whether advancing loads the next item playing or paused.
func (e *Engine) SetAutoplay(flag bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoplay = flag
	e.updatePrefsLocked()
}

// Stop resets the engine to idle, keeping the queues intact.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Close tears the engine down: timers canceled, pending preference writes
// flushed, output released.
func (e *Engine) Close() {
	e.cancel()

	e.mu.Lock()
	e.stopLocked()
	e.mu.Unlock()

	e.prefs.Close()
	e.out.Close()
}

// --- internal ---

// loadLocked loads an entry into the sink. An unplayable entry is skipped
// immediately through the advance path without entering Loading. A load in
// flight is superseded by bumping the sequence number; its late metadata
// resolution is then discarded. Must be called with lock held.
func (e *Engine) loadLocked(entry *item.QueueEntry, autoPlay bool) {
	if entry == nil || !entry.Item.Playable() {
		zlog.Debug().Msg("engine: target not playable, skipping ahead")
		e.advanceLocked(autoPlay)
		return
	}

	e.loadSeq++
	seq := e.loadSeq
	e.cancelMetaLocked()

	// Exclusive output: tear down before assigning the new source.
	e.out.Pause()
	e.out.Reset()

	e.current = entry
	e.positionSec = 0
	e.durationSec = 0
	e.state = StateLoading
	e.pendingPlay = autoPlay

	e.reporter.ItemLoaded(entry.Item.Key())

	zlog.Debug().
		Str("item", entry.Item.Key()).
		Str("title", entry.Item.Title).
		Bool("autoplay", autoPlay).
		Msg("engine: loading")

	e.out.SetSource(entry.Item.MediaURL)

	// Bounded metadata wait: proceed with unknown duration rather than
	// blocking indefinitely.
	timer := time.AfterFunc(e.cfg.MetadataTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if seq != e.loadSeq || e.state != StateLoading {
			return
		}
		zlog.Debug().Str("item", entry.Item.Key()).Msg("engine: metadata timeout, proceeding with unknown duration")
		e.finishLoadLocked()
	})
	e.metaCancel = func() { timer.Stop() }
}

// finishLoadLocked leaves Loading for Playing or Paused according to the
// pending autoplay flag. Must be called with lock held.
func (e *Engine) finishLoadLocked() {
	e.cancelMetaLocked()
	if e.pendingPlay {
		e.playLocked()
	} else {
		e.state = StatePaused
	}
}

// playLocked starts output. A rejection by the output device settles into
// Paused and never surfaces to the caller. Must be called with lock held.
func (e *Engine) playLocked() {
	if e.current == nil {
		return
	}
	if err := e.out.Play(); err != nil {
		zlog.Warn().Err(err).Str("item", e.current.Item.Key()).Msg("engine: output rejected playback")
		e.state = StatePaused
		return
	}
	e.state = StatePlaying
	key := e.current.Item.Key()
	e.reporter.PlayingStarted(key, e.stillPlayingFn(key))
}

// advanceLocked is the shared advance path for natural end, fatal error and
// explicit skip. Must be called with lock held.
func (e *Engine) advanceLocked(autoPlay bool) {
	entry, ok := e.queue.NextPlayable()
	if !ok {
		zlog.Debug().Msg("engine: all queue tiers exhausted, stopping")
		e.stopLocked()
		return
	}
	e.loadLocked(entry, autoPlay)
}

// stopLocked resets to idle with no current item. Must be called with lock
// held.
func (e *Engine) stopLocked() {
	e.cancelMetaLocked()
	e.reporter.Stop()
	e.out.Pause()
	e.out.Reset()
	e.current = nil
	e.positionSec = 0
	e.durationSec = 0
	e.state = StateIdle
}

func (e *Engine) cancelMetaLocked() {
	if e.metaCancel != nil {
		e.metaCancel()
		e.metaCancel = nil
	}
}

// updatePrefsLocked schedules the debounced preference write-through. Must
// be called with lock held.
func (e *Engine) updatePrefsLocked() {
	e.prefs.Update(prefs.Prefs{
		Volume:   e.volume,
		Mode:     e.queue.Mode(),
		Autoplay: e.autoplay,
	})
}

// stillPlayingFn builds the re-check the reporter runs when the stream-tick
// timer fires.
func (e *Engine) stillPlayingFn(key string) func() bool {
	return func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.state == StatePlaying && e.current != nil && e.current.Item.Key() == key
	}
}

// drainSinkEvents consumes sink lifecycle events for the life of the
// engine.
func (e *Engine) drainSinkEvents() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev, ok := <-e.out.Events():
			if !ok {
				return
			}
			e.handleSinkEvent(ev)
		}
	}
}

// handleSinkEvent dispatches one sink event into the state machine.
func (e *Engine) handleSinkEvent(ev sink.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return
	}
	// A late event from a superseded source must not clobber the current
	// load.
	if ev.Source != "" && ev.Source != e.current.Item.MediaURL {
		zlog.Debug().Str("type", ev.Type.String()).Msg("engine: discarding stale sink event")
		return
	}

	switch ev.Type {
	case sink.EventMetadataReady:
		if ev.DurationSec > 0 && !math.IsNaN(ev.DurationSec) && !math.IsInf(ev.DurationSec, 0) {
			e.durationSec = ev.DurationSec
		}
		if e.state == StateLoading {
			e.finishLoadLocked()
		}

	case sink.EventTimeAdvanced:
		if ev.PositionSec >= 0 && !math.IsNaN(ev.PositionSec) && !math.IsInf(ev.PositionSec, 0) {
			e.positionSec = ev.PositionSec
		}
		if ev.DurationSec > 0 {
			e.durationSec = ev.DurationSec
		}

	case sink.EventEnded:
		if e.queue.Mode() == queue.ModeRepeat {
			// Single-item loop: restart in place.
			e.out.Seek(0)
			e.positionSec = 0
			e.playLocked()
			return
		}
		e.advanceLocked(e.autoplay)

	case sink.EventError:
		zlog.Warn().Err(ev.Err).Str("item", e.current.Item.Key()).Msg("engine: sink error, skipping item")
		e.reporter.Paused()
		e.state = StatePaused
		e.advanceLocked(e.autoplay)
	}
}
