package domain

import "time"

// DefaultCompletionRatio is the fraction of a video that must be watched
// before it counts as completed.
const DefaultCompletionRatio = 0.9

// VideoProgress is the latest known playback position for one video.
// There is one record per video across all playlists.
type VideoProgress struct {
	VideoID     string    `json:"videoId"`
	Timestamp   float64   `json:"timestamp"` // seconds
	Duration    float64   `json:"duration"`  // seconds
	LastWatched time.Time `json:"lastWatched"`
	Completed   bool      `json:"completed"`

	// FirstCompletedAt is set on the first completion and never cleared, so a
	// rewatch that dips below the threshold cannot count the video twice.
	FirstCompletedAt *time.Time `json:"firstCompletedAt,omitempty"`
}

// Fraction returns the watched fraction in [0, 1].
func (p *VideoProgress) Fraction() float64 {
	if p == nil || p.Duration <= 0 {
		return 0
	}
	f := p.Timestamp / p.Duration
	return min(max(f, 0), 1)
}

// EverCompleted reports whether the video has counted towards completedVideos.
func (p *VideoProgress) EverCompleted() bool {
	return p != nil && (p.Completed || p.FirstCompletedAt != nil)
}

// InProgress reports whether the video was started but not finished.
func (p *VideoProgress) InProgress() bool {
	return p != nil && !p.Completed && p.Timestamp > 0
}

// Clone returns a copy that shares no pointers with p.
func (p VideoProgress) Clone() VideoProgress {
	if p.FirstCompletedAt != nil {
		t := *p.FirstCompletedAt
		p.FirstCompletedAt = &t
	}
	return p
}

// ReachesCompletion reports whether timestamp crosses ratio of duration.
func ReachesCompletion(timestamp, duration, ratio float64) bool {
	if duration <= 0 {
		return false
	}
	return timestamp >= ratio*duration
}
