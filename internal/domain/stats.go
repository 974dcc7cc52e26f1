package domain

import "time"

// WeeklyGoal is the watch time target used for weekly goal progress.
const WeeklyGoal = 5 * time.Hour

// UserStats are the process-wide aggregate counters.
//
// TotalWatchTime and CompletedVideos never decrease. The streak counters are
// supplied from outside and are not derived from watch history.
type UserStats struct {
	TotalWatchTime  float64 `json:"totalWatchTime"` // seconds
	CompletedVideos int     `json:"completedVideos"`
	CurrentStreak   int     `json:"currentStreak"`
	LongestStreak   int     `json:"longestStreak"`
}

// DefaultUserStats returns the counters a fresh installation starts with.
func DefaultUserStats() UserStats {
	return UserStats{CurrentStreak: 1, LongestStreak: 1}
}

// WatchedHours returns the number of whole hours watched.
func (s UserStats) WatchedHours() int {
	return int(s.TotalWatchTime / 3600)
}

// LiveStats summarize today's activity for the dashboard.
type LiveStats struct {
	SessionsToday        int     `json:"sessionsToday"`
	AverageSessionLength float64 `json:"averageSessionLength"` // seconds
	CompletionRate       float64 `json:"completionRate"`       // percent, 0 to 100
	WeeklyGoalProgress   float64 `json:"weeklyGoalProgress"`   // percent, capped at 100
}

// DayBounds returns the start (inclusive) and end (exclusive) of the local
// day containing now.
func DayBounds(now time.Time) (start, end time.Time) {
	year, month, day := now.Date()
	start = time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
