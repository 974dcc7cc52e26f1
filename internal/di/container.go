// Package di provides dependency injection configuration for the coursetrack server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/coursetrack/coursetrack/internal/achievement"
	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/di/providers"
	"github.com/coursetrack/coursetrack/internal/logger"
	"github.com/coursetrack/coursetrack/internal/metrics"
	"github.com/coursetrack/coursetrack/internal/progress"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideProgressStore)

	// Notifications
	do.Provide(injector, providers.ProvideNotificationCenter)
	do.Provide(injector, providers.ProvideAchievementDetector)

	// Playback
	do.Provide(injector, providers.ProvidePlayerBridge)
	do.Provide(injector, providers.ProvidePlaybackController)

	// Workers
	do.Provide(injector, providers.ProvideReminderScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Providers are lazy, so invoking them
// here is what starts the background workers and the HTTP listener.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*progress.Store](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.NotificationCenterHandle](injector)
	_ = do.MustInvoke[*achievement.Detector](injector)
	_ = do.MustInvoke[*providers.PlayerBridgeHandle](injector)
	_ = do.MustInvoke[*providers.PlaybackHandle](injector)

	if _, err := do.Invoke[*providers.ReminderHandle](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	return nil
}
