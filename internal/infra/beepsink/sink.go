// Package beepsink provides the real audio Sink backed by gopxl/beep.
// It streams the item's media URL over HTTP, decodes it as MP3 and plays
// it through the system speaker.
package beepsink

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/aurisono/tonearm/internal/app/sink"
)

// Config represents the beep sink settings.
type Config struct {
	SampleRate     int `mapstructure:"sample_rate" default:"44100" validate:"gt=0"`
	BufferMs       int `mapstructure:"buffer_ms" default:"100" validate:"gt=0,lte=2000"`
	PollIntervalMs int `mapstructure:"poll_interval_ms" default:"500" validate:"gt=0"`
	FetchTimeoutS  int `mapstructure:"fetch_timeout_sec" default:"30" validate:"gt=0"`
}

// ParseConfig decodes sink settings from the config file's settings map.
func ParseConfig(settings map[string]any) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode sink settings")
	}
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, errors.Wrap(err, "sink settings validation failed")
	}
	return cfg, nil
}

var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

// trackState bundles the resources of one loaded source.
type trackState struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	stopPoll chan struct{}
}

// close stops the poll goroutine and releases the streamer. The streamer
// field is read by the poll goroutine under speaker.Lock, so it is written
// under the same lock; a poll iteration already past its stopPoll check
// then sees nil instead of a closed streamer.
func (t *trackState) close() {
	if t.stopPoll != nil {
		close(t.stopPoll)
		t.stopPoll = nil
	}
	speaker.Lock()
	if t.streamer != nil {
		t.streamer.Close()
		t.streamer = nil
	}
	speaker.Unlock()
}

// Sink is a beep-backed audio output.
type Sink struct {
	mu  sync.Mutex
	cfg Config

	httpClient *http.Client
	events     chan sink.Event

	source  string
	track   *trackState
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	volLvl  float64
	loadGen uint64 // Guards late async load completions
	closed  bool
}

// New creates a beep sink and initializes the shared speaker.
func New(cfg Config) (*Sink, error) {
	speakerOnce.Do(func() {
		speakerRate = beep.SampleRate(cfg.SampleRate)
		bufLen := speakerRate.N(time.Duration(cfg.BufferMs) * time.Millisecond)
		speakerErr = speaker.Init(speakerRate, bufLen)
	})
	if speakerErr != nil {
		return nil, errors.Wrap(speakerErr, "failed to initialize speaker")
	}
	return &Sink{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FetchTimeoutS) * time.Second},
		events:     make(chan sink.Event, 32),
		volLvl:     1.0,
	}, nil
}

// SetSource tears down the current source and starts fetching and decoding
// the new one. Readiness and failures are reported via events.
func (s *Sink) SetSource(url string) {
	s.mu.Lock()
	s.teardownLocked()
	s.source = url
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	go s.load(url, gen)
}

func (s *Sink) load(url string, gen uint64) {
	resp, err := s.httpClient.Get(url)
	if err != nil {
		s.emitError(url, errors.Wrap(err, "media fetch failed"))
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		s.emitError(url, errors.Newf("media fetch returned status %d", resp.StatusCode))
		return
	}

	streamer, format, err := mp3.Decode(resp.Body)
	if err != nil {
		resp.Body.Close()
		s.emitError(url, errors.Wrap(err, "mp3 decode failed"))
		return
	}

	s.mu.Lock()
	if gen != s.loadGen || s.closed {
		// A newer source superseded this load.
		s.mu.Unlock()
		streamer.Close()
		return
	}

	track := &trackState{
		streamer: streamer,
		format:   format,
		stopPoll: make(chan struct{}),
	}
	s.track = track

	var rendered beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		rendered = beep.Resample(4, format.SampleRate, speakerRate, streamer)
	}

	s.ctrl = &beep.Ctrl{Streamer: rendered, Paused: true}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2}
	s.applyVolumeLocked(s.volLvl)

	durationSec := 0.0
	if n := streamer.Len(); n > 0 {
		durationSec = format.SampleRate.D(n).Seconds()
	}
	s.mu.Unlock()

	speaker.Play(beep.Seq(s.volume, beep.Callback(func() {
		s.emit(sink.Event{Type: sink.EventEnded, Source: url, PositionSec: durationSec, DurationSec: durationSec})
	})))

	go s.pollPosition(url, track, durationSec)

	s.emit(sink.Event{Type: sink.EventMetadataReady, Source: url, DurationSec: durationSec})
}

// pollPosition emits time-advanced events while the source is loaded.
func (s *Sink) pollPosition(url string, track *trackState, durationSec float64) {
	ticker := time.NewTicker(time.Duration(s.cfg.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-track.stopPoll:
			return
		case <-ticker.C:
			speaker.Lock()
			var pos float64
			paused := true
			if track.streamer != nil {
				pos = track.format.SampleRate.D(track.streamer.Position()).Seconds()
			}
			if s.ctrl != nil {
				paused = s.ctrl.Paused
			}
			speaker.Unlock()

			if !paused {
				s.emit(sink.Event{Type: sink.EventTimeAdvanced, Source: url, PositionSec: pos, DurationSec: durationSec})
			}
		}
	}
}

// Play unpauses output.
func (s *Sink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return errors.New("no source loaded")
	}
	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

// Pause suspends output, keeping the position.
func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
}

// Seek moves the position. Network-backed MP3 streams are not always
// seekable; a failed seek is logged and ignored.
func (s *Sink) Seek(sec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil || s.track.streamer == nil {
		return
	}
	speaker.Lock()
	n := s.track.format.SampleRate.N(time.Duration(sec * float64(time.Second)))
	if l := s.track.streamer.Len(); l > 0 && n > l {
		n = l
	}
	err := s.track.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Debug().Err(err).Msg("beepsink: seek not supported for this stream")
	}
}

// Reset pauses output and clears the assigned source.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// SetVolume maps v in 0..1 onto beep's logarithmic volume scale.
func (s *Sink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volLvl = v
	s.applyVolumeLocked(v)
}

func (s *Sink) applyVolumeLocked(v float64) {
	if s.volume == nil {
		return
	}
	speaker.Lock()
	if v <= 0 {
		s.volume.Silent = true
	} else {
		s.volume.Silent = false
		s.volume.Volume = math.Log2(v)
	}
	speaker.Unlock()
}

// Events returns the lifecycle event channel.
func (s *Sink) Events() <-chan sink.Event { return s.events }

// Close releases the output.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.teardownLocked()
	s.closed = true
	close(s.events)
}

// teardownLocked stops playback and releases the current source. Must be
// called with lock held.
func (s *Sink) teardownLocked() {
	if s.track != nil {
		speaker.Clear()
		s.track.close()
		s.track = nil
	}
	s.ctrl = nil
	s.volume = nil
	s.source = ""
}

// emit sends an event without blocking; a full channel drops the event.
func (s *Sink) emit(ev sink.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		zlog.Debug().Str("type", ev.Type.String()).Msg("beepsink: dropping event, channel full")
	}
}

func (s *Sink) emitError(url string, err error) {
	zlog.Warn().Err(err).Msg("beepsink: source failed")
	s.emit(sink.Event{Type: sink.EventError, Source: url, Err: err})
}
