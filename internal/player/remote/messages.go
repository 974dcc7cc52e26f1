// Package remote lets a browser-side video widget act as the playback
// player. The widget connects over WebSocket, receives load and destroy
// commands, and reports readiness, state changes, position and errors.
package remote

// Message types. Commands flow server to widget, reports widget to server.
const (
	TypeLoad    = "load"
	TypeDestroy = "destroy"

	TypeReady = "ready"
	TypeState = "state"
	TypeTime  = "time"
	TypeError = "error"
)

// Widget player states carried by TypeState reports.
const (
	StatePlaying   = "playing"
	StatePaused    = "paused"
	StateEnded     = "ended"
	StateBuffering = "buffering"
)

// Message is the single wire envelope in both directions. Session ties a
// report to the load command it answers; reports for any other session
// are dropped.
type Message struct {
	Type        string  `json:"type"`
	Session     string  `json:"session,omitempty"`
	VideoID     string  `json:"videoId,omitempty"`
	Start       float64 `json:"start,omitempty"`
	State       string  `json:"state,omitempty"`
	CurrentTime float64 `json:"currentTime,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Code        int     `json:"code,omitempty"`
}
