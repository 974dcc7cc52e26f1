package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coursetrack/coursetrack/internal/domain"
)

func (s *Server) registerPlaylistRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPlaylists",
		Method:      http.MethodGet,
		Path:        "/api/v1/playlists",
		Summary:     "List playlists",
		Description: "Returns all playlists in creation order",
		Tags:        []string{"Playlists"},
	}, s.handleListPlaylists)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createPlaylist",
		Method:        http.MethodPost,
		Path:          "/api/v1/playlists",
		Summary:       "Create playlist",
		Description:   "Creates a playlist. Duplicate video ids are collapsed",
		Tags:          []string{"Playlists"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreatePlaylist)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPlaylist",
		Method:      http.MethodGet,
		Path:        "/api/v1/playlists/{id}",
		Summary:     "Get playlist",
		Description: "Returns a playlist by ID",
		Tags:        []string{"Playlists"},
	}, s.handleGetPlaylist)

	huma.Register(s.api, huma.Operation{
		OperationID: "updatePlaylist",
		Method:      http.MethodPatch,
		Path:        "/api/v1/playlists/{id}",
		Summary:     "Update playlist",
		Description: "Updates name, description or the whole video list",
		Tags:        []string{"Playlists"},
	}, s.handleUpdatePlaylist)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deletePlaylist",
		Method:        http.MethodDelete,
		Path:          "/api/v1/playlists/{id}",
		Summary:       "Delete playlist",
		Description:   "Deletes a playlist. Deleting an unknown playlist succeeds",
		Tags:          []string{"Playlists"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeletePlaylist)

	huma.Register(s.api, huma.Operation{
		OperationID: "addPlaylistVideo",
		Method:      http.MethodPost,
		Path:        "/api/v1/playlists/{id}/videos",
		Summary:     "Add video to playlist",
		Description: "Adds a video, replacing any entry with the same id",
		Tags:        []string{"Playlists"},
	}, s.handleAddPlaylistVideo)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removePlaylistVideo",
		Method:        http.MethodDelete,
		Path:          "/api/v1/playlists/{id}/videos/{videoID}",
		Summary:       "Remove video from playlist",
		Description:   "Removes a video from a playlist. Unknown ids are ignored",
		Tags:          []string{"Playlists"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemovePlaylistVideo)
}

// === DTOs ===

// VideoRequest describes a video in request bodies.
type VideoRequest struct {
	ID           string `json:"id" validate:"required,videoid" doc:"Video ID"`
	Title        string `json:"title" validate:"max=500" doc:"Video title"`
	ChannelTitle string `json:"channelTitle,omitempty" validate:"max=200" doc:"Channel name"`
	Thumbnail    string `json:"thumbnail,omitempty" validate:"omitempty,url" doc:"Thumbnail URL"`
	Description  string `json:"description,omitempty" doc:"Video description"`
	PublishedAt  string `json:"publishedAt,omitempty" doc:"Publication time as reported by the source"`
	Duration     string `json:"duration,omitempty" doc:"Duration as reported by the source"`
	PlaylistID   string `json:"playlistId,omitempty" doc:"Source playlist ID"`
}

func (v VideoRequest) toDomain() domain.Video {
	return domain.Video{
		ID:           v.ID,
		Title:        v.Title,
		ChannelTitle: v.ChannelTitle,
		Thumbnail:    v.Thumbnail,
		Description:  v.Description,
		PublishedAt:  v.PublishedAt,
		Duration:     v.Duration,
		PlaylistID:   v.PlaylistID,
	}
}

func videosToDomain(in []VideoRequest) []domain.Video {
	if in == nil {
		return nil
	}
	out := make([]domain.Video, len(in))
	for i, v := range in {
		out[i] = v.toDomain()
	}
	return out
}

// ListPlaylistsResponse contains a list of playlists.
type ListPlaylistsResponse struct {
	Playlists []domain.Playlist `json:"playlists" doc:"Playlists in creation order"`
}

// ListPlaylistsOutput wraps the list playlists response for Huma.
type ListPlaylistsOutput struct {
	Body ListPlaylistsResponse
}

// CreatePlaylistRequest is the request body for creating a playlist.
type CreatePlaylistRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=100" doc:"Playlist name"`
	Description string         `json:"description,omitempty" validate:"max=1000" doc:"Playlist description"`
	Videos      []VideoRequest `json:"videos,omitempty" validate:"dive" doc:"Initial videos"`
}

// CreatePlaylistInput wraps the create playlist request for Huma.
type CreatePlaylistInput struct {
	Body CreatePlaylistRequest
}

// PlaylistOutput wraps a playlist for Huma.
type PlaylistOutput struct {
	Body domain.Playlist
}

// PlaylistPathInput identifies a playlist.
type PlaylistPathInput struct {
	ID string `path:"id" doc:"Playlist ID"`
}

// UpdatePlaylistRequest is the request body for updating a playlist.
type UpdatePlaylistRequest struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1,max=100" doc:"Playlist name"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=1000" doc:"Playlist description"`
	Videos      []VideoRequest `json:"videos,omitempty" validate:"omitempty,dive" doc:"Replaces the whole video list"`
}

// UpdatePlaylistInput wraps the update playlist request for Huma.
type UpdatePlaylistInput struct {
	ID   string `path:"id" doc:"Playlist ID"`
	Body UpdatePlaylistRequest
}

// AddPlaylistVideoInput wraps the add video request for Huma.
type AddPlaylistVideoInput struct {
	ID   string `path:"id" doc:"Playlist ID"`
	Body VideoRequest
}

// RemovePlaylistVideoInput identifies a video within a playlist.
type RemovePlaylistVideoInput struct {
	ID      string `path:"id" doc:"Playlist ID"`
	VideoID string `path:"videoID" doc:"Video ID"`
}

// === Handlers ===

func (s *Server) handleListPlaylists(_ context.Context, _ *struct{}) (*ListPlaylistsOutput, error) {
	return &ListPlaylistsOutput{Body: ListPlaylistsResponse{Playlists: s.progress.Playlists()}}, nil
}

func (s *Server) handleCreatePlaylist(ctx context.Context, input *CreatePlaylistInput) (*PlaylistOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, s.toHTTPError(err, "createPlaylist")
	}

	pl, err := s.progress.AddPlaylist(ctx, domain.Playlist{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Videos:      videosToDomain(input.Body.Videos),
	})
	if err != nil {
		return nil, s.toHTTPError(err, "createPlaylist")
	}
	return &PlaylistOutput{Body: pl}, nil
}

func (s *Server) handleGetPlaylist(_ context.Context, input *PlaylistPathInput) (*PlaylistOutput, error) {
	pl, err := s.progress.Playlist(input.ID)
	if err != nil {
		return nil, s.toHTTPError(err, "getPlaylist")
	}
	return &PlaylistOutput{Body: pl}, nil
}

func (s *Server) handleUpdatePlaylist(ctx context.Context, input *UpdatePlaylistInput) (*PlaylistOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, s.toHTTPError(err, "updatePlaylist")
	}

	pl, err := s.progress.UpdatePlaylist(ctx, input.ID, domain.PlaylistPatch{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Videos:      videosToDomain(input.Body.Videos),
	})
	if err != nil {
		return nil, s.toHTTPError(err, "updatePlaylist")
	}
	return &PlaylistOutput{Body: pl}, nil
}

func (s *Server) handleDeletePlaylist(ctx context.Context, input *PlaylistPathInput) (*struct{}, error) {
	if err := s.progress.RemovePlaylist(ctx, input.ID); err != nil {
		return nil, s.toHTTPError(err, "deletePlaylist")
	}
	return nil, nil
}

func (s *Server) handleAddPlaylistVideo(ctx context.Context, input *AddPlaylistVideoInput) (*PlaylistOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, s.toHTTPError(err, "addPlaylistVideo")
	}

	pl, err := s.progress.AddVideoToPlaylist(ctx, input.ID, input.Body.toDomain())
	if err != nil {
		return nil, s.toHTTPError(err, "addPlaylistVideo")
	}
	return &PlaylistOutput{Body: pl}, nil
}

func (s *Server) handleRemovePlaylistVideo(ctx context.Context, input *RemovePlaylistVideoInput) (*struct{}, error) {
	if err := s.progress.RemoveVideoFromPlaylist(ctx, input.ID, input.VideoID); err != nil {
		return nil, s.toHTTPError(err, "removePlaylistVideo")
	}
	return nil, nil
}
