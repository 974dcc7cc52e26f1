package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/coursetrack/coursetrack/internal/api"
	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/logger"
	"github.com/coursetrack/coursetrack/internal/metrics"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/ratelimit"
	"github.com/coursetrack/coursetrack/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	if h.limiter != nil {
		h.limiter.Stop()
	}
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	ps := do.MustInvoke[*progress.Store](i)
	center := do.MustInvoke[*NotificationCenterHandle](i)
	playbackHandle := do.MustInvoke[*PlaybackHandle](i)
	bridge := do.MustInvoke[*PlayerBridgeHandle](i)

	var limiter *ratelimit.KeyedRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewPerMinute(cfg.RateLimit.WritesPerMin, cfg.RateLimit.Burst)
	}

	apiLog := log.Component("api").Logger
	handler := api.NewServer(api.Deps{
		Progress:      ps,
		Notifications: center.Center,
		Playback:      playbackHandle.Controller,
		State:         storeHandle.State,
		SSEManager:    sseHandle.Manager,
		SSEHandler:    sse.NewHandler(sseHandle.Manager, apiLog),
		Player:        bridge.Bridge,
		Metrics:       m.Handler(),
		WriteLimiter:  limiter,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Logger:        apiLog,
		BaseContext:   playbackHandle.Context(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}
