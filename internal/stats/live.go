package stats

import (
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
)

// Live computes today's dashboard figures from the progress records.
// A record counts as a session today when it was last watched within the
// local day containing now.
func Live(progress map[string]domain.VideoProgress, totals domain.UserStats, now time.Time) domain.LiveStats {
	start, end := domain.DayBounds(now)

	var (
		sessions  int
		completed int
		watched   float64
	)
	for _, rec := range progress {
		lw := rec.LastWatched.In(now.Location())
		if lw.Before(start) || !lw.Before(end) {
			continue
		}
		sessions++
		watched += rec.Timestamp
		if rec.Completed {
			completed++
		}
	}

	live := domain.LiveStats{
		SessionsToday:      sessions,
		WeeklyGoalProgress: min(totals.TotalWatchTime/domain.WeeklyGoal.Seconds()*100, 100),
	}
	if sessions > 0 {
		live.AverageSessionLength = watched / float64(sessions)
		live.CompletionRate = float64(completed) / float64(sessions) * 100
	}
	return live
}
