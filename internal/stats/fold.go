// Package stats folds progress samples into aggregate learning statistics.
//
// Everything here is pure: results depend only on the arguments, so the
// rules can be tested without a store.
package stats

import (
	"math"

	"github.com/coursetrack/coursetrack/internal/domain"
)

// Rules parameterize the fold.
type Rules struct {
	CompletionRatio float64
}

// DefaultRules completes a video at 90% of its duration.
var DefaultRules = Rules{CompletionRatio: domain.DefaultCompletionRatio}

// Fold applies one progress sample to prev using DefaultRules.
func Fold(prev domain.UserStats, prevProgress *domain.VideoProgress, ts, dur float64, override bool) (domain.UserStats, bool) {
	return DefaultRules.Fold(prev, prevProgress, ts, dur, override)
}

// Fold applies one progress sample for a video to the aggregate counters.
//
// The watch time grows by the forward delta since the previous sample and
// never shrinks. CompletedVideos grows by one only when a video that has
// never been completed reaches completion. Streak counters pass through.
// The returned bool is the completion flag for the new record.
func (r Rules) Fold(prev domain.UserStats, prevProgress *domain.VideoProgress, ts, dur float64, override bool) (domain.UserStats, bool) {
	completed := override || domain.ReachesCompletion(ts, dur, r.ratio())

	var prevTS float64
	if prevProgress != nil {
		prevTS = prevProgress.Timestamp
	}

	next := prev
	next.TotalWatchTime += ForwardDelta(prevTS, ts)
	if completed && !prevProgress.EverCompleted() {
		next.CompletedVideos++
	}
	return next, completed
}

func (r Rules) ratio() float64 {
	if r.CompletionRatio <= 0 || r.CompletionRatio > 1 {
		return domain.DefaultCompletionRatio
	}
	return r.CompletionRatio
}

// ForwardDelta returns max(0, next-prev). Seeking backwards contributes nothing.
func ForwardDelta(prev, next float64) float64 {
	d := next - prev
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

// Sanitize repairs a raw player sample.
//
// A negative or non-finite timestamp becomes 0. A non-finite or
// non-positive duration falls back to the previously known duration; when
// there is none the sample is unusable and ok is false. A timestamp past
// the end is clamped to the duration.
func Sanitize(ts, dur float64, prev *domain.VideoProgress) (cleanTS, cleanDur float64, ok bool) {
	if !finite(ts) || ts < 0 {
		ts = 0
	}
	if !finite(dur) || dur <= 0 {
		if prev == nil || prev.Duration <= 0 {
			return 0, 0, false
		}
		dur = prev.Duration
	}
	if ts > dur {
		ts = dur
	}
	return ts, dur, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
