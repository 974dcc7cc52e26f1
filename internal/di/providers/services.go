package providers

import (
	"context"
	"net/url"

	"github.com/samber/do/v2"

	"github.com/coursetrack/coursetrack/internal/achievement"
	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/logger"
	"github.com/coursetrack/coursetrack/internal/metrics"
	"github.com/coursetrack/coursetrack/internal/notify"
	"github.com/coursetrack/coursetrack/internal/playback"
	"github.com/coursetrack/coursetrack/internal/player/remote"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/stats"
)

// ProvideProgressStore loads the persisted state and wires stats observers.
func ProvideProgressStore(i do.Injector) (*progress.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	ps, err := progress.New(context.Background(), storeHandle.State, progress.Options{
		Rules:   stats.Rules{CompletionRatio: cfg.Playback.CompletionRatio},
		Emitter: sseHandle.Manager,
		Logger:  log.Component("progress").Logger,
	})
	if err != nil {
		return nil, err
	}

	m.SetStats(ps.Stats())
	ps.Observe(m)
	return ps, nil
}

// NotificationCenterHandle wraps the notification center with shutdown capability.
type NotificationCenterHandle struct {
	*notify.Center
}

// Shutdown implements do.Shutdownable.
func (h *NotificationCenterHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideNotificationCenter provides the notification center.
func ProvideNotificationCenter(i do.Injector) (*NotificationCenterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	center := notify.NewCenter(notify.Options{
		Capacity: cfg.Notifications.Capacity,
		AutoRead: cfg.Notifications.AutoRead,
		Emitter:  sseHandle.Manager,
		Logger:   log.Component("notify").Logger,
		OnPush:   m.NotificationPushed,
	})
	return &NotificationCenterHandle{Center: center}, nil
}

// ProvideAchievementDetector subscribes the detector to stats changes.
func ProvideAchievementDetector(i do.Injector) (*achievement.Detector, error) {
	log := do.MustInvoke[*logger.Logger](i)
	ps := do.MustInvoke[*progress.Store](i)
	center := do.MustInvoke[*NotificationCenterHandle](i)

	det := achievement.NewDetector(center.Center, log.Component("achievement").Logger)
	ps.Observe(det)
	return det, nil
}

// PlayerBridgeHandle wraps the widget bridge with shutdown capability.
type PlayerBridgeHandle struct {
	*remote.Bridge
}

// Shutdown implements do.Shutdownable.
func (h *PlayerBridgeHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvidePlayerBridge provides the WebSocket bridge to the browser player.
func ProvidePlayerBridge(i do.Injector) (*PlayerBridgeHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	bridge := remote.NewBridge(remote.Options{
		OriginPatterns: originHosts(cfg.Server.CORSOrigins),
		Logger:         log.Component("player").Logger,
	})
	return &PlayerBridgeHandle{Bridge: bridge}, nil
}

// originHosts turns CORS origins into the host patterns the WebSocket
// handshake checks. A wildcard yields no patterns, which accepts any origin.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

// PlaybackHandle wraps the playback controller and the context its
// sessions run under.
type PlaybackHandle struct {
	*playback.Controller
	ctx    context.Context
	cancel context.CancelFunc
}

// Context scopes playback sessions.
func (h *PlaybackHandle) Context() context.Context { return h.ctx }

// Shutdown implements do.Shutdownable.
func (h *PlaybackHandle) Shutdown() error {
	h.Close()
	h.cancel()
	return nil
}

// ProvidePlaybackController provides the playback sync controller.
func ProvidePlaybackController(i do.Injector) (*PlaybackHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	ps := do.MustInvoke[*progress.Store](i)
	center := do.MustInvoke[*NotificationCenterHandle](i)
	bridge := do.MustInvoke[*PlayerBridgeHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	rewind := cfg.Playback.ResumeRewind
	if rewind == 0 {
		rewind = playback.NoRewind
	}

	controller := playback.NewController(playback.Options{
		Loader:   bridge.Bridge,
		Writer:   ps,
		Notifier: center.Center,
		Emitter:  sseHandle.Manager,
		Logger:   log.Component("playback").Logger,
		Config: playback.Config{
			SampleInterval: cfg.Playback.SampleInterval,
			PersistEvery:   cfg.Playback.PersistEvery,
			ResumeRewind:   rewind,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackHandle{Controller: controller, ctx: ctx, cancel: cancel}, nil
}
