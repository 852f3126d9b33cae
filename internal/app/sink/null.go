package sink

import "sync"

// Null is a Sink that produces no audio. It acknowledges every source
// immediately and never ends on its own; useful for headless runs and
// tests.
type Null struct {
	mu     sync.Mutex
	source string
	events chan Event
	closed bool
}

// NewNull creates a no-op sink.
func NewNull() *Null {
	return &Null{events: make(chan Event, 16)}
}

func (n *Null) SetSource(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.source = url
	if n.closed {
		return
	}
	select {
	case n.events <- Event{Type: EventMetadataReady, Source: url}:
	default:
	}
}

func (n *Null) Play() error { return nil }

func (n *Null) Pause() {}

func (n *Null) Seek(float64) {}

func (n *Null) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.source = ""
}

func (n *Null) SetVolume(float64) {}

func (n *Null) Events() <-chan Event { return n.events }

func (n *Null) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.events)
	}
}
