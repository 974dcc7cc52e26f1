package playback

import (
	"context"
	"fmt"
	"time"
)

// EventKind enumerates what a player can report.
type EventKind int

// Player event kinds.
const (
	EventReady EventKind = iota + 1
	EventPlaying
	EventPaused
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// PlayerEvent is an asynchronous notification from the player. Code is
// only meaningful for EventError.
type PlayerEvent struct {
	Kind EventKind
	Code int
}

// Handle is a loaded player. CurrentTime and Duration are in seconds and
// may return garbage while the player is settling; callers clamp them.
type Handle interface {
	CurrentTime() float64
	Duration() float64
	// Events is closed once the handle is destroyed or the player goes away.
	Events() <-chan PlayerEvent
	Destroy()
}

// Loader acquires a player for videoID positioned at start seconds.
// Load may block until the player resource is available and must return
// promptly when ctx is cancelled.
type Loader interface {
	Load(ctx context.Context, videoID string, start float64) (Handle, error)
}

// Ticker is the part of *time.Ticker the controller uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}
