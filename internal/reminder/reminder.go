// Package reminder nudges the learner when nothing was watched today.
//
// A cron schedule triggers Check. Check raises at most one reminder per
// calendar day, and none when a video was watched earlier that day.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coursetrack/coursetrack/internal/domain"
)

// DefaultSchedule fires every evening at 19:00.
const DefaultSchedule = "0 19 * * *"

const (
	reminderTitle   = "Time to learn"
	reminderMessage = "You haven't watched anything today. A short video keeps your streak alive!"
)

// ActivitySource reports when a video was last watched.
type ActivitySource interface {
	LastWatchedAt() time.Time
}

// Sink receives reminders.
type Sink interface {
	Push(n domain.Notification) domain.Notification
}

// Options configure a Scheduler.
type Options struct {
	Schedule string
	Source   ActivitySource
	Sink     Sink
	Logger   *slog.Logger
	Location *time.Location
	Clock    func() time.Time
}

// Scheduler runs the daily check.
type Scheduler struct {
	cron   *cron.Cron
	source ActivitySource
	sink   Sink
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu           sync.Mutex
	lastReminded time.Time
	started      bool
}

// New validates the schedule and prepares a Scheduler. Nothing runs until Start.
func New(opts Options) (*Scheduler, error) {
	if opts.Source == nil || opts.Sink == nil {
		return nil, fmt.Errorf("reminder: source and sink are required")
	}
	spec := opts.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		source: opts.Source,
		sink:   opts.Sink,
		logger: logger,
		loc:    loc,
		now:    opts.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}

	cl := cronLogger{logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.Check() }); err != nil {
		return nil, fmt.Errorf("reminder: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("reminder scheduler started", "next_run", s.Next())
}

// Stop halts the schedule and waits for a running check, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Check raises a reminder when nothing was watched today and none was
// raised yet today. It reports whether a reminder was pushed.
func (s *Scheduler) Check() bool {
	now := s.now().In(s.loc)

	if sameDay(s.source.LastWatchedAt(), now, s.loc) {
		s.logger.Debug("skipping reminder, already watched today")
		return false
	}

	s.mu.Lock()
	if sameDay(s.lastReminded, now, s.loc) {
		s.mu.Unlock()
		return false
	}
	s.lastReminded = now
	s.mu.Unlock()

	n := s.sink.Push(domain.Notification{
		Type:      domain.NotificationReminder,
		Title:     reminderTitle,
		Message:   reminderMessage,
		Timestamp: now,
	})
	s.logger.Info("learning reminder raised", "notification_id", n.ID)
	return true
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
