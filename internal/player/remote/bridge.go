package remote

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/id"
	"github.com/coursetrack/coursetrack/internal/playback"
)

const (
	sendBuffer   = 16
	eventBuffer  = 32
	writeTimeout = 5 * time.Second
)

var errWidgetGone = errors.ErrResourceAcquisition.WithMessage("player widget disconnected")

// Options configure a Bridge.
type Options struct {
	// OriginPatterns restricts which origins may connect. Empty accepts any.
	OriginPatterns []string
	Logger         *slog.Logger
}

// Bridge implements playback.Loader on top of one connected widget. A newer
// connection replaces the previous widget.
type Bridge struct {
	mu        sync.Mutex
	widget    *widget
	connected chan struct{} // closed when a widget attaches
	active    *handle
	closed    bool

	origins []string
	logger  *slog.Logger
}

type widget struct {
	conn   *websocket.Conn
	send   chan Message
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc
}

func (w *widget) enqueue(m Message) error {
	select {
	case <-w.done:
		return errWidgetGone
	default:
	}
	select {
	case w.send <- m:
		return nil
	case <-w.done:
		return errWidgetGone
	default:
		return errors.ErrResourceAcquisition.WithMessage("player widget is not keeping up")
	}
}

// stop ends both pumps. The connection handler then closes the socket.
func (w *widget) stop() {
	w.once.Do(func() {
		close(w.done)
		w.cancel()
	})
}

// NewBridge creates a Bridge with no widget attached.
func NewBridge(opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		connected: make(chan struct{}),
		origins:   opts.OriginPatterns,
		logger:    logger,
	}
}

// Connected reports whether a widget is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.widget != nil
}

// Load waits for a widget, then asks it to load videoID at start seconds.
func (b *Bridge) Load(ctx context.Context, videoID string, start float64) (playback.Handle, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, errors.ErrResourceAcquisition.WithMessage("player bridge is closed")
		}
		w, wait := b.widget, b.connected
		if w != nil {
			sessionID, err := id.Generate(id.PrefixSession)
			if err != nil {
				b.mu.Unlock()
				return nil, errors.ErrInternal.WithCause(err)
			}
			h := newHandle(b, w, sessionID)
			prev := b.active
			b.active = h
			b.mu.Unlock()

			if prev != nil {
				prev.close()
			}
			if err := w.enqueue(Message{Type: TypeLoad, Session: sessionID, VideoID: videoID, Start: start}); err != nil {
				b.detach(h)
				return nil, err
			}
			b.logger.Debug("sent load command", "session", sessionID, "video_id", videoID, "start", start)
			return h, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, errors.ErrResourceAcquisition.WithMessage("no player widget connected").WithCause(ctx.Err())
		case <-wait:
		}
	}
}

// ServeHTTP accepts a widget connection and pumps messages until it closes.
func (b *Bridge) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{OriginPatterns: b.origins}
	if len(b.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(rw, r, opts)
	if err != nil {
		b.logger.Warn("player websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	w := &widget{
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	if !b.attach(w) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	b.logger.Info("player widget connected", "remote_addr", r.RemoteAddr)

	go b.writePump(ctx, w)
	b.readPump(ctx, w)

	b.disconnect(w)
	conn.Close(websocket.StatusNormalClosure, "")
	b.logger.Info("player widget disconnected", "remote_addr", r.RemoteAddr)
}

// Close disconnects the widget and fails pending and future loads.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	w := b.widget
	b.mu.Unlock()

	if w != nil {
		w.stop()
	}
}

func (b *Bridge) attach(w *widget) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	prev := b.widget
	var orphan *handle
	if prev != nil && b.active != nil && b.active.w == prev {
		orphan = b.active
		b.active = nil
	}
	b.widget = w
	close(b.connected)
	b.connected = make(chan struct{})
	b.mu.Unlock()

	if orphan != nil {
		orphan.close()
	}
	if prev != nil {
		b.logger.Info("replacing player widget with a newer connection")
		prev.stop()
	}
	return true
}

func (b *Bridge) disconnect(w *widget) {
	w.stop()

	b.mu.Lock()
	if b.widget == w {
		b.widget = nil
	}
	var orphan *handle
	if b.active != nil && b.active.w == w {
		orphan = b.active
		b.active = nil
	}
	b.mu.Unlock()

	if orphan != nil {
		orphan.close()
	}
}

func (b *Bridge) detach(h *handle) {
	b.mu.Lock()
	if b.active == h {
		b.active = nil
	}
	b.mu.Unlock()
	h.close()
}

func (b *Bridge) current(sessionID string) *handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil || b.active.session != sessionID {
		return nil
	}
	return b.active
}

func (b *Bridge) writePump(ctx context.Context, w *widget) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case m := <-w.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, w.conn, m)
			cancel()
			if err != nil {
				b.logger.Debug("player websocket write failed", "type", m.Type, "error", err)
				w.stop()
				return
			}
		}
	}
}

func (b *Bridge) readPump(ctx context.Context, w *widget) {
	for {
		var m Message
		if err := wsjson.Read(ctx, w.conn, &m); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				b.logger.Debug("player websocket read failed", "error", err)
			}
			return
		}
		b.dispatch(m)
	}
}

func (b *Bridge) dispatch(m Message) {
	h := b.current(m.Session)
	if h == nil {
		b.logger.Debug("dropping report for inactive session", "type", m.Type, "session", m.Session)
		return
	}

	switch m.Type {
	case TypeReady:
		h.setPosition(m.CurrentTime, m.Duration)
		h.deliver(playback.PlayerEvent{Kind: playback.EventReady})
	case TypeTime:
		h.setPosition(m.CurrentTime, m.Duration)
	case TypeState:
		switch m.State {
		case StatePlaying:
			h.deliver(playback.PlayerEvent{Kind: playback.EventPlaying})
		case StatePaused:
			h.deliver(playback.PlayerEvent{Kind: playback.EventPaused})
		case StateEnded:
			h.deliver(playback.PlayerEvent{Kind: playback.EventEnded})
		case StateBuffering:
		default:
			b.logger.Debug("unknown widget state", "state", m.State)
		}
	case TypeError:
		h.deliver(playback.PlayerEvent{Kind: playback.EventError, Code: m.Code})
	default:
		b.logger.Debug("unknown widget message", "type", m.Type)
	}
}
