package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/logger"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/reminder"
)

// ReminderHandle wraps the reminder scheduler. Scheduler is nil when
// reminders are disabled.
type ReminderHandle struct {
	Scheduler *reminder.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *ReminderHandle) Shutdown() error {
	if h.Scheduler == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Scheduler.Stop(ctx)
}

// ProvideReminderScheduler provides and starts the daily reminder job.
func ProvideReminderScheduler(i do.Injector) (*ReminderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Reminder.Enabled {
		log.Info("Reminders disabled by configuration")
		return &ReminderHandle{}, nil
	}

	ps := do.MustInvoke[*progress.Store](i)
	center := do.MustInvoke[*NotificationCenterHandle](i)

	s, err := reminder.New(reminder.Options{
		Schedule: cfg.Reminder.Schedule,
		Source:   ps,
		Sink:     center.Center,
		Logger:   log.Component("reminder").Logger,
	})
	if err != nil {
		return nil, err
	}
	s.Start()

	return &ReminderHandle{Scheduler: s}, nil
}
