// Package prefs provides debounced write-through of playback preferences
// (volume, mode, autoplay) to the remote preference store.
package prefs

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/aurisono/tonearm/internal/app/queue"
)

// Prefs holds the user preferences the engine reads and writes.
type Prefs struct {
	Volume   float64
	Mode     queue.Mode
	Autoplay bool
}

// Default returns the preferences used when no stored value exists.
func Default() Prefs {
	return Prefs{Volume: 1.0, Mode: queue.ModeNormal, Autoplay: true}
}

// Store is the remote preference store interface.
type Store interface {
	LoadPrefs(ctx context.Context) (Prefs, error)
	SavePrefs(ctx context.Context, p Prefs) error
}

// Syncer debounces preference writes: every change re-arms a short timer and
// only the last value is written (last-write-wins). A nil store disables
// persistence entirely.
type Syncer struct {
	mu    sync.Mutex
	store Store

	debounce      time.Duration
	remoteTimeout time.Duration

	pending     *Prefs
	timerCancel func()
}

// NewSyncer creates a syncer. store may be nil.
func NewSyncer(store Store, debounce time.Duration) *Syncer {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Syncer{
		store:         store,
		debounce:      debounce,
		remoteTimeout: 5 * time.Second,
	}
}

// Load fetches stored preferences at session start. On any failure the
// defaults are returned and the error is only logged.
func (s *Syncer) Load(ctx context.Context) Prefs {
	if s.store == nil {
		return Default()
	}
	p, err := s.store.LoadPrefs(ctx)
	if err != nil {
		zlog.Warn().Err(err).Msg("prefs: load failed, using defaults")
		return Default()
	}
	if !p.Mode.Valid() {
		p.Mode = queue.ModeNormal
	}
	if p.Volume < 0 || p.Volume > 1 {
		p.Volume = 1.0
	}
	return p
}

// Update records a preference change and re-arms the debounce timer.
func (s *Syncer) Update(p Prefs) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &p
	if s.timerCancel != nil {
		s.timerCancel()
	}
	timer := time.AfterFunc(s.debounce, s.flush)
	s.timerCancel = func() { timer.Stop() }
}

// Flush writes any pending value immediately, canceling the debounce timer.
func (s *Syncer) Flush() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	if s.timerCancel != nil {
		s.timerCancel()
		s.timerCancel = nil
	}
	s.mu.Unlock()
	s.flush()
}

// Close flushes pending writes on engine teardown.
func (s *Syncer) Close() {
	s.Flush()
}

func (s *Syncer) flush() {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.timerCancel = nil
	s.mu.Unlock()

	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()
	if err := s.store.SavePrefs(ctx, *p); err != nil {
		zlog.Warn().Err(err).Msg("prefs: write-through failed")
	}
}
