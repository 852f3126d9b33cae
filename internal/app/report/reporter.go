// Package report schedules the listening-activity side effects: the
// stream-count tick and the history log entry. Both are fire-and-forget;
// failures are logged and never surface to playback.
package report

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// ActivitySink is the write-only remote interface for activity reports.
type ActivitySink interface {
	IncrementStreamCount(ctx context.Context, itemKey string) error
	AppendHistory(ctx context.Context, itemKey string) error
}

// Config holds reporter thresholds.
type Config struct {
	StreamTickThreshold time.Duration // Continuous playback required before a stream counts
	HistoryCooldown     time.Duration // Suppression window for repeated history entries per item
	RemoteTimeout       time.Duration // Per-call timeout for remote writes
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		StreamTickThreshold: 10 * time.Second,
		HistoryCooldown:     5 * time.Minute,
		RemoteTimeout:       5 * time.Second,
	}
}

// Reporter deduplicates and schedules activity reports for the engine.
// A Reporter constructed with a nil sink is disabled and all hooks are
// no-ops (no authenticated caller context).
type Reporter struct {
	mu   sync.Mutex
	sink ActivitySink
	cfg  Config

	currentKey    string
	ticked        bool   // Stream tick already fired for the current load
	historyLogged bool   // History already handled for the current load
	tickCancel    func() // Pending stream-tick timer

	historyAt map[string]time.Time // Last history entry per item key

	now func() time.Time
}

// New creates a reporter. sink may be nil to disable all reporting.
func New(sink ActivitySink, cfg Config) *Reporter {
	if cfg.StreamTickThreshold <= 0 {
		cfg.StreamTickThreshold = 10 * time.Second
	}
	if cfg.HistoryCooldown <= 0 {
		cfg.HistoryCooldown = 5 * time.Minute
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 5 * time.Second
	}
	return &Reporter{
		sink:      sink,
		cfg:       cfg,
		historyAt: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Enabled reports whether activity reporting is active.
func (r *Reporter) Enabled() bool {
	return r != nil && r.sink != nil
}

// ItemLoaded resets per-load state for a newly loaded item. Any pending
// stream tick for the previous item is canceled.
func (r *Reporter) ItemLoaded(itemKey string) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTickLocked()
	r.currentKey = itemKey
	r.ticked = false
	r.historyLogged = false
}

// PlayingStarted is called on every transition into the playing state.
// It logs a history entry (at most once per load, suppressed within the
// per-item cooldown window) and arms the stream-count tick. stillPlaying is re-checked when the tick timer
// fires so a pause between arming and firing suppresses the tick.
func (r *Reporter) PlayingStarted(itemKey string, stillPlaying func() bool) {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if itemKey == "" || itemKey != r.currentKey {
		return
	}

	r.logHistoryLocked(itemKey)
	r.armTickLocked(itemKey, stillPlaying)
}

// Paused cancels the pending stream tick. It is re-armed on the next
// transition into playing.
func (r *Reporter) Paused() {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTickLocked()
}

// SeekedAway cancels the pending stream tick after a seek; the continuous
// playback requirement starts over when play resumes.
func (r *Reporter) SeekedAway() {
	r.Paused()
}

// Stop cancels all pending work and clears the current item.
func (r *Reporter) Stop() {
	if !r.Enabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTickLocked()
	r.currentKey = ""
}

// logHistoryLocked appends a history entry on the first transition into
// playing for the current load, unless the same item was already logged
// within the cooldown window. Later transitions in the same load (resume,
// seek) never log again, no matter how long the load lives. Must be called
// with lock held.
func (r *Reporter) logHistoryLocked(itemKey string) {
	if r.historyLogged {
		return
	}
	r.historyLogged = true

	now := r.now()
	if last, ok := r.historyAt[itemKey]; ok && now.Sub(last) < r.cfg.HistoryCooldown {
		return
	}
	r.historyAt[itemKey] = now

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RemoteTimeout)
		defer cancel()
		if err := r.sink.AppendHistory(ctx, itemKey); err != nil {
			zlog.Warn().Err(err).Str("item", itemKey).Msg("report: history entry failed")
		}
	}()
}

// armTickLocked schedules the stream-count tick. Must be called with lock
// held.
func (r *Reporter) armTickLocked(itemKey string, stillPlaying func() bool) {
	r.cancelTickLocked()
	if r.ticked {
		return
	}

	timer := time.AfterFunc(r.cfg.StreamTickThreshold, func() {
		// Evaluate before taking the lock: the callback may itself lock the
		// engine, which calls into this reporter under its own lock.
		playing := stillPlaying == nil || stillPlaying()

		r.mu.Lock()
		// The item may have changed or the tick may have been canceled and
		// re-armed while this callback was pending.
		if r.currentKey != itemKey || r.ticked || !playing {
			r.mu.Unlock()
			return
		}
		r.ticked = true
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RemoteTimeout)
		defer cancel()
		if err := r.sink.IncrementStreamCount(ctx, itemKey); err != nil {
			zlog.Warn().Err(err).Str("item", itemKey).Msg("report: stream count tick failed")
		}
	})
	r.tickCancel = func() { timer.Stop() }
}

// cancelTickLocked stops any pending stream tick. Must be called with lock
// held.
func (r *Reporter) cancelTickLocked() {
	if r.tickCancel != nil {
		r.tickCancel()
		r.tickCancel = nil
	}
}
