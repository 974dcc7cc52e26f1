// Package achievement turns changes in the aggregate counters into
// achievement notifications.
package achievement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
)

// Milestone sizes.
const (
	VideosPerMilestone = 5
	DaysPerStreakBadge = 7
)

// Sink receives detected achievements.
type Sink interface {
	Push(n domain.Notification) domain.Notification
}

// Detector compares successive stats. It holds no state of its own, so a
// given (prev, next) pair always yields the same notifications.
type Detector struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewDetector creates a Detector that forwards to sink. A nil sink makes
// StatsChanged a no-op, which is useful when only Detect is needed.
func NewDetector(sink Sink, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{sink: sink, logger: logger, now: time.Now}
}

// Detect returns the achievements earned going from prev to next.
// Each threshold fires once per crossing: a milestone is reported when the
// counter moves into a new multiple, never when it stays within one.
func (d *Detector) Detect(prev, next domain.UserStats, now time.Time) []domain.Notification {
	var out []domain.Notification

	if crossed(prev.CompletedVideos, next.CompletedVideos, VideosPerMilestone) {
		n := next.CompletedVideos - next.CompletedVideos%VideosPerMilestone
		out = append(out, achievement(now,
			"🎉 Milestone Reached!",
			fmt.Sprintf("You've completed %d videos! Keep up the great work!", n)))
	}

	if hours := next.WatchedHours(); hours > prev.WatchedHours() {
		out = append(out, achievement(now,
			"⏰ Learning Time!",
			fmt.Sprintf("You've watched %d hours of educational content!", hours)))
	}

	if crossed(prev.CurrentStreak, next.CurrentStreak, DaysPerStreakBadge) {
		out = append(out, achievement(now,
			"🔥 Streak Master!",
			fmt.Sprintf("%d day learning streak! You're on fire!", next.CurrentStreak)))
	}

	return out
}

// StatsChanged implements progress.StatsObserver.
func (d *Detector) StatsChanged(_ context.Context, prev, next domain.UserStats) {
	if d.sink == nil {
		return
	}
	for _, n := range d.Detect(prev, next, d.now()) {
		pushed := d.sink.Push(n)
		d.logger.Info("achievement unlocked",
			"notification_id", pushed.ID,
			"title", pushed.Title,
		)
	}
}

// crossed reports whether an increase from prev to next enters a new
// multiple of step.
func crossed(prev, next, step int) bool {
	if next <= prev || next <= 0 {
		return false
	}
	return next/step > max(prev, 0)/step
}

func achievement(now time.Time, title, message string) domain.Notification {
	return domain.Notification{
		Type:      domain.NotificationAchievement,
		Title:     title,
		Message:   message,
		Timestamp: now,
	}
}
