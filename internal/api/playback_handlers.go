package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coursetrack/coursetrack/internal/playback"
)

func (s *Server) registerPlaybackRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getPlaybackSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/playback/session",
		Summary:     "Get playback session",
		Description: "Returns the player lifecycle state",
		Tags:        []string{"Playback"},
	}, s.handleGetPlaybackSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "openPlaybackSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/playback/session",
		Summary:     "Open playback session",
		Description: "Tears down any active player and loads the video, resuming slightly before the saved position",
		Tags:        []string{"Playback"},
	}, s.handleOpenPlaybackSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "retryPlaybackSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/playback/session/retry",
		Summary:     "Retry playback",
		Description: "Reloads the last video after a failure",
		Tags:        []string{"Playback"},
	}, s.handleRetryPlaybackSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "closePlaybackSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/playback/session",
		Summary:       "Close playback session",
		Description:   "Destroys the active player",
		Tags:          []string{"Playback"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClosePlaybackSession)
}

// OpenPlaybackRequest selects the video to play.
type OpenPlaybackRequest struct {
	VideoID string `json:"videoId" validate:"required,videoid" doc:"Video ID"`
}

// OpenPlaybackInput wraps the open playback request for Huma.
type OpenPlaybackInput struct {
	Body OpenPlaybackRequest
}

// PlaybackStatusResponse describes the player lifecycle.
type PlaybackStatusResponse struct {
	State       string  `json:"state" doc:"Lifecycle state" enum:"uninitialized,loading,ready,playing,paused,ended,failed"`
	VideoID     string  `json:"videoId,omitempty" doc:"Video ID of the session"`
	CurrentTime float64 `json:"currentTime" doc:"Last sampled position in seconds"`
	Duration    float64 `json:"duration" doc:"Video length in seconds, once known"`
	Fault       string  `json:"fault,omitempty" doc:"Failure reason when state is failed"`
	Generation  uint64  `json:"generation" doc:"Increments for every opened session"`
}

// PlaybackStatusOutput wraps the playback status for Huma.
type PlaybackStatusOutput struct {
	Body PlaybackStatusResponse
}

func (s *Server) handleGetPlaybackSession(_ context.Context, _ *struct{}) (*PlaybackStatusOutput, error) {
	return newPlaybackStatusOutput(s.playback.Status()), nil
}

func (s *Server) handleOpenPlaybackSession(_ context.Context, input *OpenPlaybackInput) (*PlaybackStatusOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, s.toHTTPError(err, "openPlaybackSession")
	}

	// The session outlives the request.
	st, err := s.playback.Open(s.baseCtx, input.Body.VideoID)
	if err != nil {
		return nil, s.toHTTPError(err, "openPlaybackSession")
	}
	return newPlaybackStatusOutput(st), nil
}

func (s *Server) handleRetryPlaybackSession(_ context.Context, _ *struct{}) (*PlaybackStatusOutput, error) {
	st, err := s.playback.Retry(s.baseCtx)
	if err != nil {
		return nil, s.toHTTPError(err, "retryPlaybackSession")
	}
	return newPlaybackStatusOutput(st), nil
}

func (s *Server) handleClosePlaybackSession(_ context.Context, _ *struct{}) (*struct{}, error) {
	s.playback.Close()
	return nil, nil
}

func newPlaybackStatusOutput(st playback.Status) *PlaybackStatusOutput {
	return &PlaybackStatusOutput{Body: PlaybackStatusResponse{
		State:       st.State.String(),
		VideoID:     st.VideoID,
		CurrentTime: st.CurrentTime,
		Duration:    st.Duration,
		Fault:       st.FaultMessage(),
		Generation:  st.Generation,
	}}
}
