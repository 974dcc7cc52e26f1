package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coursetrack/coursetrack/internal/domain"
)

func (s *Server) registerStateRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getState",
		Method:      http.MethodGet,
		Path:        "/api/v1/state",
		Summary:     "Get state",
		Description: "Returns the full tracker state: playlists, progress, stats, current video and settings",
		Tags:        []string{"State"},
	}, s.handleGetState)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Get stats",
		Description: "Returns the aggregate learning statistics",
		Tags:        []string{"Stats"},
	}, s.handleGetStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLiveStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats/live",
		Summary:     "Get live stats",
		Description: "Returns today's sessions, average session length, completion rate and weekly goal progress",
		Tags:        []string{"Stats"},
	}, s.handleGetLiveStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "setStreaks",
		Method:      http.MethodPut,
		Path:        "/api/v1/stats/streaks",
		Summary:     "Set streaks",
		Description: "Sets the current and longest learning streak. Streaks are supplied by the client and never derived",
		Tags:        []string{"Stats"},
	}, s.handleSetStreaks)

	huma.Register(s.api, huma.Operation{
		OperationID: "setDarkMode",
		Method:      http.MethodPut,
		Path:        "/api/v1/settings/dark-mode",
		Summary:     "Set dark mode",
		Description: "Sets dark mode, or toggles it when enabled is omitted",
		Tags:        []string{"Settings"},
	}, s.handleSetDarkMode)
}

// === DTOs ===

// StateOutput wraps the full state for Huma.
type StateOutput struct {
	Body domain.State
}

// StatsResponse contains the aggregate counters plus derived values.
type StatsResponse struct {
	TotalWatchTime  float64 `json:"totalWatchTime" doc:"Seconds watched across all videos"`
	CompletedVideos int     `json:"completedVideos" doc:"Videos completed at least once"`
	CurrentStreak   int     `json:"currentStreak" doc:"Current streak in days"`
	LongestStreak   int     `json:"longestStreak" doc:"Longest streak in days"`
	WatchedHours    int     `json:"watchedHours" doc:"Whole hours watched"`
}

// StatsOutput wraps the stats response for Huma.
type StatsOutput struct {
	Body StatsResponse
}

// LiveStatsOutput wraps live stats for Huma.
type LiveStatsOutput struct {
	Body domain.LiveStats
}

// SetStreaksRequest is the request body for setting streaks.
type SetStreaksRequest struct {
	CurrentStreak int `json:"currentStreak" validate:"gte=0" minimum:"0" doc:"Current streak in days"`
	LongestStreak int `json:"longestStreak" validate:"gte=0" minimum:"0" doc:"Longest streak in days; raised to the current streak when smaller"`
}

// SetStreaksInput wraps the set streaks request for Huma.
type SetStreaksInput struct {
	Body SetStreaksRequest
}

// SetDarkModeRequest is the request body for the dark mode setting.
type SetDarkModeRequest struct {
	Enabled *bool `json:"enabled,omitempty" doc:"Desired value; omit to toggle"`
}

// SetDarkModeInput wraps the dark mode request for Huma.
type SetDarkModeInput struct {
	Body SetDarkModeRequest
}

// SettingsResponse contains the current settings.
type SettingsResponse struct {
	DarkMode bool `json:"darkMode" doc:"Dark mode enabled"`
}

// SettingsOutput wraps the settings response for Huma.
type SettingsOutput struct {
	Body SettingsResponse
}

// === Handlers ===

func (s *Server) handleGetState(_ context.Context, _ *struct{}) (*StateOutput, error) {
	return &StateOutput{Body: s.progress.Snapshot()}, nil
}

func (s *Server) handleGetStats(_ context.Context, _ *struct{}) (*StatsOutput, error) {
	return &StatsOutput{Body: newStatsResponse(s.progress.Stats())}, nil
}

func (s *Server) handleGetLiveStats(_ context.Context, _ *struct{}) (*LiveStatsOutput, error) {
	return &LiveStatsOutput{Body: s.progress.LiveStats(time.Now())}, nil
}

func (s *Server) handleSetStreaks(ctx context.Context, input *SetStreaksInput) (*StatsOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, s.toHTTPError(err, "setStreaks")
	}

	stats, err := s.progress.SetStreaks(ctx, input.Body.CurrentStreak, input.Body.LongestStreak)
	if err != nil {
		return nil, s.toHTTPError(err, "setStreaks")
	}
	return &StatsOutput{Body: newStatsResponse(stats)}, nil
}

func (s *Server) handleSetDarkMode(ctx context.Context, input *SetDarkModeInput) (*SettingsOutput, error) {
	var (
		enabled bool
		err     error
	)
	if input.Body.Enabled == nil {
		enabled, err = s.progress.ToggleDarkMode(ctx)
	} else {
		enabled = *input.Body.Enabled
		err = s.progress.SetDarkMode(ctx, enabled)
	}
	if err != nil {
		return nil, s.toHTTPError(err, "setDarkMode")
	}
	return &SettingsOutput{Body: SettingsResponse{DarkMode: enabled}}, nil
}

func newStatsResponse(stats domain.UserStats) StatsResponse {
	return StatsResponse{
		TotalWatchTime:  stats.TotalWatchTime,
		CompletedVideos: stats.CompletedVideos,
		CurrentStreak:   stats.CurrentStreak,
		LongestStreak:   stats.LongestStreak,
		WatchedHours:    stats.WatchedHours(),
	}
}
