// Package api provides the HTTP API server and handlers for coursetrack.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coursetrack/coursetrack/internal/notify"
	"github.com/coursetrack/coursetrack/internal/playback"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/ratelimit"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/validation"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// StateReader reads the raw persisted blob. It backs the storage health check.
type StateReader interface {
	Raw(ctx context.Context) ([]byte, error)
}

// PlayerBridge is the WebSocket endpoint the browser widget connects to.
type PlayerBridge interface {
	http.Handler
	Connected() bool
}

// Deps are the components the server routes to. Progress, Notifications
// and Playback are required.
type Deps struct {
	Progress      *progress.Store
	Notifications *notify.Center
	Playback      *playback.Controller
	State         StateReader
	SSEManager    *sse.Manager
	SSEHandler    http.Handler
	Player        PlayerBridge
	Metrics       http.Handler
	WriteLimiter  *ratelimit.KeyedRateLimiter
	CORSOrigins   []string
	Logger        *slog.Logger
	// BaseContext scopes playback sessions. Sessions end when it is cancelled.
	BaseContext context.Context
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	progress      *progress.Store
	notifications *notify.Center
	playback      *playback.Controller
	state         StateReader
	sseManager    *sse.Manager
	player        PlayerBridge
	validator     *validation.Validator
	router        *chi.Mux
	api           huma.API
	logger        *slog.Logger
	baseCtx       context.Context
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	baseCtx := deps.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		progress:      deps.Progress,
		notifications: deps.Notifications,
		playback:      deps.Playback,
		state:         deps.State,
		sseManager:    deps.SSEManager,
		player:        deps.Player,
		validator:     validation.New(),
		router:        chi.NewRouter(),
		logger:        logger,
		baseCtx:       baseCtx,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(logger))
	s.router.Use(middleware.Recoverer)
	if len(deps.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if deps.WriteLimiter != nil {
		s.router.Use(writeRateLimit(deps.WriteLimiter, logger))
	}

	humaConfig := huma.DefaultConfig("coursetrack API", Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerStateRoutes()
	s.registerPlaylistRoutes()
	s.registerProgressRoutes()
	s.registerNotificationRoutes()
	s.registerPlaybackRoutes()

	// Streaming endpoints bypass huma.
	if deps.SSEHandler != nil {
		s.router.Get("/api/v1/events", deps.SSEHandler.ServeHTTP)
	}
	if deps.Player != nil {
		s.router.Get("/api/v1/player/ws", deps.Player.ServeHTTP)
	}
	if deps.Metrics != nil {
		s.router.Handle("/metrics", deps.Metrics)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}
