package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coursetrack/coursetrack/internal/domain"
	domainerrors "github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/validation"
)

const defaultContinueLimit = 6

func (s *Server) registerProgressRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "continueWatching",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/continue",
		Summary:     "Continue watching",
		Description: "Returns started, not yet completed videos, most recently watched first",
		Tags:        []string{"Progress"},
	}, s.handleContinueWatching)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/progress/{videoID}",
		Summary:     "Get progress",
		Description: "Returns the progress record for a video",
		Tags:        []string{"Progress"},
	}, s.handleGetProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProgress",
		Method:      http.MethodPut,
		Path:        "/api/v1/progress/{videoID}",
		Summary:     "Update progress",
		Description: "Records a playback sample. Malformed samples are clamped; a sample without any usable duration is ignored",
		Tags:        []string{"Progress"},
	}, s.handleUpdateProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCurrentVideo",
		Method:      http.MethodPut,
		Path:        "/api/v1/current-video",
		Summary:     "Set current video",
		Description: "Selects the video being watched. Progress is not touched",
		Tags:        []string{"Progress"},
	}, s.handleSetCurrentVideo)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearCurrentVideo",
		Method:        http.MethodDelete,
		Path:          "/api/v1/current-video",
		Summary:       "Clear current video",
		Description:   "Clears the current video selection",
		Tags:          []string{"Progress"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearCurrentVideo)
}

// === DTOs ===

// ContinueWatchingInput contains parameters for the continue watching list.
type ContinueWatchingInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum records to return; 0 uses the default"`
}

// ProgressListResponse contains progress records.
type ProgressListResponse struct {
	Progress []domain.VideoProgress `json:"progress" doc:"Progress records"`
}

// ProgressListOutput wraps a progress list for Huma.
type ProgressListOutput struct {
	Body ProgressListResponse
}

// VideoPathInput identifies a video.
type VideoPathInput struct {
	VideoID string `path:"videoID" doc:"Video ID"`
}

// ProgressOutput wraps one progress record for Huma.
type ProgressOutput struct {
	Body domain.VideoProgress
}

// UpdateProgressRequest is a playback sample.
type UpdateProgressRequest struct {
	Timestamp float64 `json:"timestamp" doc:"Position in seconds"`
	Duration  float64 `json:"duration" doc:"Video length in seconds"`
	Completed bool    `json:"completed,omitempty" doc:"Force completion, as when the player reports the end"`
}

// UpdateProgressInput wraps the update progress request for Huma.
type UpdateProgressInput struct {
	VideoID string `path:"videoID" doc:"Video ID"`
	Body    UpdateProgressRequest
}

// UpdateProgressResponse describes the outcome of a sample.
type UpdateProgressResponse struct {
	Applied        bool                  `json:"applied" doc:"False when the sample was ignored"`
	FirstCompleted bool                  `json:"firstCompleted" doc:"True when this sample completed the video for the first time"`
	Progress       *domain.VideoProgress `json:"progress,omitempty" doc:"Stored record"`
	Stats          StatsResponse         `json:"stats" doc:"Aggregate stats after the sample"`
}

// UpdateProgressOutput wraps the update progress response for Huma.
type UpdateProgressOutput struct {
	Body UpdateProgressResponse
}

// SetCurrentVideoInput wraps the current video request for Huma.
type SetCurrentVideoInput struct {
	Body VideoRequest
}

// CurrentVideoOutput wraps the current video for Huma.
type CurrentVideoOutput struct {
	Body domain.Video
}

// === Handlers ===

func (s *Server) handleContinueWatching(_ context.Context, input *ContinueWatchingInput) (*ProgressListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultContinueLimit
	}
	return &ProgressListOutput{Body: ProgressListResponse{Progress: s.progress.InProgress(limit)}}, nil
}

func (s *Server) handleGetProgress(_ context.Context, input *VideoPathInput) (*ProgressOutput, error) {
	rec, ok := s.progress.Progress(input.VideoID)
	if !ok {
		return nil, s.toHTTPError(domainerrors.NotFoundf("no progress recorded for video %s", input.VideoID), "getProgress")
	}
	return &ProgressOutput{Body: rec}, nil
}

func (s *Server) handleUpdateProgress(ctx context.Context, input *UpdateProgressInput) (*UpdateProgressOutput, error) {
	if !validation.IsVideoID(input.VideoID) {
		return nil, s.toHTTPError(domainerrors.Validationf("invalid video id %q", input.VideoID), "updateProgress")
	}

	upd, err := s.progress.UpdateVideoProgress(ctx, input.VideoID, input.Body.Timestamp, input.Body.Duration, input.Body.Completed)
	if err != nil {
		return nil, s.toHTTPError(err, "updateProgress")
	}

	resp := UpdateProgressResponse{
		Applied:        upd.Applied,
		FirstCompleted: upd.FirstCompleted,
		Stats:          newStatsResponse(upd.Stats),
	}
	if upd.Applied {
		rec := upd.Progress
		resp.Progress = &rec
	}
	return &UpdateProgressOutput{Body: resp}, nil
}

func (s *Server) handleSetCurrentVideo(ctx context.Context, input *SetCurrentVideoInput) (*CurrentVideoOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, s.toHTTPError(err, "setCurrentVideo")
	}

	video := input.Body.toDomain()
	if err := s.progress.SetCurrentVideo(ctx, &video); err != nil {
		return nil, s.toHTTPError(err, "setCurrentVideo")
	}
	return &CurrentVideoOutput{Body: video}, nil
}

func (s *Server) handleClearCurrentVideo(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.progress.SetCurrentVideo(ctx, nil); err != nil {
		return nil, s.toHTTPError(err, "clearCurrentVideo")
	}
	return nil, nil
}
