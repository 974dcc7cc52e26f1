package remote

import (
	"sync"

	"github.com/coursetrack/coursetrack/internal/playback"
)

// handle is the playback.Handle for one load command.
type handle struct {
	bridge  *Bridge
	w       *widget
	session string

	mu          sync.Mutex
	currentTime float64
	duration    float64
	events      chan playback.PlayerEvent
	closed      bool
}

func newHandle(b *Bridge, w *widget, session string) *handle {
	return &handle{
		bridge:  b,
		w:       w,
		session: session,
		events:  make(chan playback.PlayerEvent, eventBuffer),
	}
}

func (h *handle) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentTime
}

func (h *handle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *handle) Events() <-chan playback.PlayerEvent { return h.events }

// Destroy tells the widget to unload and closes the event stream.
func (h *handle) Destroy() {
	h.mu.Lock()
	wasOpen := !h.closed
	h.mu.Unlock()

	if wasOpen {
		if err := h.w.enqueue(Message{Type: TypeDestroy, Session: h.session}); err != nil {
			h.bridge.logger.Debug("destroy command not delivered", "session", h.session, "error", err)
		}
	}
	h.bridge.detach(h)
}

// setPosition records what the widget reported. A zero duration keeps the
// last known one.
func (h *handle) setPosition(t, d float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d > 0 {
		h.duration = d
	}
	h.currentTime = t
}

func (h *handle) deliver(ev playback.PlayerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.bridge.logger.Warn("player event dropped, consumer is behind", "session", h.session, "kind", ev.Kind.String())
	}
}

func (h *handle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.events)
	}
}
