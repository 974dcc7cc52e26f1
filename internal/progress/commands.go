package progress

import (
	"context"
	"strings"

	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/id"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/stats"
)

// Update describes the outcome of UpdateVideoProgress.
type Update struct {
	Progress       domain.VideoProgress
	Previous       domain.UserStats
	Stats          domain.UserStats
	FirstCompleted bool
	// Applied is false when the sample was unusable and ignored.
	Applied bool
}

func newPlaylistID() (string, error) {
	return id.Generate(id.PrefixPlaylist)
}

// UpdateVideoProgress records a playback sample for videoID.
//
// Malformed samples are repaired by stats.Sanitize. When no usable duration
// is known the sample is dropped and Applied is false. The record is
// replaced wholesale and the stats are folded forward.
func (s *Store) UpdateVideoProgress(ctx context.Context, videoID string, timestamp, duration float64, completedOverride bool) (Update, error) {
	if strings.TrimSpace(videoID) == "" {
		return Update{}, ErrInvalidVideo
	}

	s.mu.Lock()

	var prevRec *domain.VideoProgress
	if rec, ok := s.state.VideoProgress[videoID]; ok {
		prevRec = &rec
	}

	ts, dur, ok := stats.Sanitize(timestamp, duration, prevRec)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("ignoring progress sample without a usable duration",
			"video_id", videoID, "timestamp", timestamp, "duration", duration)
		return Update{Stats: s.Stats()}, nil
	}
	if ts != timestamp || dur != duration {
		s.logger.Debug("clamped malformed progress sample",
			"video_id", videoID,
			"timestamp", timestamp, "clamped_timestamp", ts,
			"duration", duration, "clamped_duration", dur)
	}

	prevStats := s.state.UserStats
	nextStats, completed := s.rules.Fold(prevStats, prevRec, ts, dur, completedOverride)

	now := s.now()
	rec := domain.VideoProgress{
		VideoID:     videoID,
		Timestamp:   ts,
		Duration:    dur,
		LastWatched: now,
		Completed:   completed,
	}
	switch {
	case prevRec != nil && prevRec.FirstCompletedAt != nil:
		rec.FirstCompletedAt = prevRec.FirstCompletedAt
	case prevRec.EverCompleted():
		// Completed before the marker existed.
		marked := prevRec.LastWatched
		rec.FirstCompletedAt = &marked
	}
	first := completed && !prevRec.EverCompleted()
	if first {
		rec.FirstCompletedAt = &now
	}

	s.state.VideoProgress[videoID] = rec
	s.state.UserStats = nextStats
	s.persistLocked(ctx)
	out := rec.Clone()
	s.mu.Unlock()

	s.emitter.Emit(sse.NewProgressUpdatedEvent(out, first))
	s.notifyStats(ctx, prevStats, nextStats)

	return Update{
		Progress:       out,
		Previous:       prevStats,
		Stats:          nextStats,
		FirstCompleted: first,
		Applied:        true,
	}, nil
}

// AddPlaylist stores a new playlist. An empty id or creation time is filled
// in. Videos are deduplicated by id.
func (s *Store) AddPlaylist(ctx context.Context, pl domain.Playlist) (domain.Playlist, error) {
	pl = pl.Clone()
	pl.Videos = domain.DedupeVideos(pl.Videos)
	for _, v := range pl.Videos {
		if !v.Valid() {
			return domain.Playlist{}, ErrInvalidVideo
		}
	}

	if pl.ID == "" {
		generated, err := s.newID()
		if err != nil {
			return domain.Playlist{}, errors.Wrap(err, errors.CodeInternal, "generate playlist id")
		}
		pl.ID = generated
	}
	if pl.CreatedAt.IsZero() {
		pl.CreatedAt = s.now()
	}

	s.mu.Lock()
	if s.indexLocked(pl.ID) >= 0 {
		s.mu.Unlock()
		return domain.Playlist{}, ErrPlaylistExists.WithMessage("playlist " + pl.ID + " already exists")
	}
	s.state.Playlists = append(s.state.Playlists, pl)
	s.persistLocked(ctx)
	out := pl.Clone()
	s.mu.Unlock()

	s.emitter.Emit(sse.NewPlaylistCreatedEvent(out))
	return out, nil
}

// UpdatePlaylist merges patch into the playlist with the given id.
func (s *Store) UpdatePlaylist(ctx context.Context, playlistID string, patch domain.PlaylistPatch) (domain.Playlist, error) {
	for _, v := range patch.Videos {
		if !v.Valid() {
			return domain.Playlist{}, ErrInvalidVideo
		}
	}

	return s.mutatePlaylist(ctx, playlistID, func(pl *domain.Playlist) {
		patch.Apply(pl)
	})
}

// RemovePlaylist deletes the playlist. Removing an unknown id is a no-op.
func (s *Store) RemovePlaylist(ctx context.Context, playlistID string) error {
	s.mu.Lock()
	idx := s.indexLocked(playlistID)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	s.state.Playlists = append(s.state.Playlists[:idx:idx], s.state.Playlists[idx+1:]...)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emitter.Emit(sse.NewPlaylistDeletedEvent(playlistID))
	return nil
}

// AddVideoToPlaylist inserts video, replacing any entry with the same id.
func (s *Store) AddVideoToPlaylist(ctx context.Context, playlistID string, video domain.Video) (domain.Playlist, error) {
	if !video.Valid() {
		return domain.Playlist{}, ErrInvalidVideo
	}
	return s.mutatePlaylist(ctx, playlistID, func(pl *domain.Playlist) {
		pl.UpsertVideo(video)
	})
}

// RemoveVideoFromPlaylist drops videoID from the playlist. Both an unknown
// playlist and an absent video are no-ops.
func (s *Store) RemoveVideoFromPlaylist(ctx context.Context, playlistID, videoID string) error {
	s.mu.Lock()
	idx := s.indexLocked(playlistID)
	if idx < 0 || !s.state.Playlists[idx].HasVideo(videoID) {
		s.mu.Unlock()
		return nil
	}
	s.state.Playlists[idx].RemoveVideo(videoID)
	s.persistLocked(ctx)
	out := s.state.Playlists[idx].Clone()
	s.mu.Unlock()

	s.emitter.Emit(sse.NewPlaylistUpdatedEvent(out))
	return nil
}

// SetCurrentVideo selects the active video. Nil clears the selection.
// Progress is never touched.
func (s *Store) SetCurrentVideo(ctx context.Context, video *domain.Video) error {
	var next *domain.Video
	if video != nil {
		if !video.Valid() {
			return ErrInvalidVideo
		}
		v := *video
		next = &v
	}

	s.mu.Lock()
	s.state.CurrentVideo = next
	s.persistLocked(ctx)
	s.mu.Unlock()

	var out *domain.Video
	if next != nil {
		v := *next
		out = &v
	}
	s.emitter.Emit(sse.NewCurrentVideoEvent(out))
	return nil
}

// SetStreaks stores externally computed streak counters. LongestStreak is
// raised to CurrentStreak when it would otherwise be smaller.
func (s *Store) SetStreaks(ctx context.Context, current, longest int) (domain.UserStats, error) {
	if current < 0 || longest < 0 {
		return domain.UserStats{}, errors.Validationf("streaks cannot be negative (current=%d, longest=%d)", current, longest)
	}

	s.mu.Lock()
	prev := s.state.UserStats
	next := prev
	next.CurrentStreak = current
	next.LongestStreak = max(longest, current)
	s.state.UserStats = next
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notifyStats(ctx, prev, next)
	return next, nil
}

// SetDarkMode stores the theme flag.
func (s *Store) SetDarkMode(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	s.state.DarkMode = enabled
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emitter.Emit(sse.NewSettingsUpdatedEvent(enabled))
	return nil
}

// ToggleDarkMode flips the theme flag and returns the new value.
func (s *Store) ToggleDarkMode(ctx context.Context) (bool, error) {
	s.mu.Lock()
	s.state.DarkMode = !s.state.DarkMode
	enabled := s.state.DarkMode
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.emitter.Emit(sse.NewSettingsUpdatedEvent(enabled))
	return enabled, nil
}

func (s *Store) mutatePlaylist(ctx context.Context, playlistID string, fn func(*domain.Playlist)) (domain.Playlist, error) {
	s.mu.Lock()
	idx := s.indexLocked(playlistID)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Playlist{}, ErrPlaylistNotFound.WithMessage("playlist " + playlistID + " not found")
	}
	fn(&s.state.Playlists[idx])
	s.persistLocked(ctx)
	out := s.state.Playlists[idx].Clone()
	s.mu.Unlock()

	s.emitter.Emit(sse.NewPlaylistUpdatedEvent(out))
	return out, nil
}

// indexLocked returns the position of playlistID or -1. Caller must hold s.mu.
func (s *Store) indexLocked(playlistID string) int {
	for i := range s.state.Playlists {
		if s.state.Playlists[i].ID == playlistID {
			return i
		}
	}
	return -1
}
