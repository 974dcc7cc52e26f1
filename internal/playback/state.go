// Package playback keeps an externally owned video player in sync with the
// progress store.
//
// A Controller drives one session at a time through an explicit state
// machine:
//
//	Uninitialized -> Loading -> Ready <-> {Playing, Paused} -> Ended
//	                    |          |
//	                    +--------> Failed
//
// While a session is active the controller samples the player once per
// interval and persists progress on whole seconds that are a multiple of
// the persist step, on every pause, and on the end of the video.
package playback

// State is the controller's single authoritative playback state.
type State int

// Controller states.
const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateFailed
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateLoading:       "loading",
	StateReady:         "ready",
	StatePlaying:       "playing",
	StatePaused:        "paused",
	StateEnded:         "ended",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether a player handle is held in this state.
func (s State) Active() bool {
	switch s {
	case StateReady, StatePlaying, StatePaused, StateEnded:
		return true
	default:
		return false
	}
}

// sampling reports whether ticks in this state read the player position.
func (s State) sampling() bool {
	return s == StateReady || s == StatePlaying || s == StatePaused
}
