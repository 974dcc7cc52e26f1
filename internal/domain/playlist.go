package domain

import (
	"slices"
	"time"
)

// Playlist is a user-curated, ordered set of videos. A video id appears at most once.
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Videos      []Video   `json:"videos"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PlaylistPatch is a partial update. Nil fields are left untouched.
type PlaylistPatch struct {
	Name        *string
	Description *string
	Videos      []Video // replaces the whole list when non-nil
}

// Empty reports whether the patch changes nothing.
func (p PlaylistPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Videos == nil
}

// Apply merges the patch into pl.
func (p PlaylistPatch) Apply(pl *Playlist) {
	if p.Name != nil {
		pl.Name = *p.Name
	}
	if p.Description != nil {
		pl.Description = *p.Description
	}
	if p.Videos != nil {
		pl.Videos = DedupeVideos(p.Videos)
	}
}

// UpsertVideo removes any entry with the same id, then appends v.
// Re-adding therefore moves the video to the end.
func (pl *Playlist) UpsertVideo(v Video) {
	pl.Videos = slices.DeleteFunc(pl.Videos, func(existing Video) bool {
		return existing.ID == v.ID
	})
	pl.Videos = append(pl.Videos, v)
}

// RemoveVideo drops the video with the given id. It is a no-op when absent.
func (pl *Playlist) RemoveVideo(videoID string) {
	pl.Videos = slices.DeleteFunc(pl.Videos, func(v Video) bool {
		return v.ID == videoID
	})
}

// HasVideo reports whether the playlist contains videoID.
func (pl *Playlist) HasVideo(videoID string) bool {
	return slices.ContainsFunc(pl.Videos, func(v Video) bool { return v.ID == videoID })
}

// Clone returns a deep copy.
func (pl Playlist) Clone() Playlist {
	pl.Videos = slices.Clone(pl.Videos)
	if pl.Videos == nil {
		pl.Videos = []Video{}
	}
	return pl
}

// DedupeVideos keeps the last occurrence of every id, in the order those
// last occurrences appear. This matches applying UpsertVideo in sequence.
func DedupeVideos(videos []Video) []Video {
	out := make([]Video, 0, len(videos))
	for _, v := range videos {
		out = slices.DeleteFunc(out, func(existing Video) bool { return existing.ID == v.ID })
		out = append(out, v)
	}
	return out
}
