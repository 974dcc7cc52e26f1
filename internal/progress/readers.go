package progress

import (
	"cmp"
	"slices"
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/stats"
)

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Playlists returns copies of all playlists in insertion order.
func (s *Store) Playlists() []domain.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Playlist, len(s.state.Playlists))
	for i, pl := range s.state.Playlists {
		out[i] = pl.Clone()
	}
	return out
}

// Playlist returns the playlist with the given id.
func (s *Store) Playlist(playlistID string) (domain.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(playlistID)
	if idx < 0 {
		return domain.Playlist{}, ErrPlaylistNotFound.WithMessage("playlist " + playlistID + " not found")
	}
	return s.state.Playlists[idx].Clone(), nil
}

// Progress returns the progress record for videoID.
func (s *Store) Progress(videoID string) (domain.VideoProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.state.VideoProgress[videoID]
	if !ok {
		return domain.VideoProgress{}, false
	}
	return rec.Clone(), true
}

// AllProgress returns a copy of every progress record keyed by video id.
func (s *Store) AllProgress() map[string]domain.VideoProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.VideoProgress, len(s.state.VideoProgress))
	for k, rec := range s.state.VideoProgress {
		out[k] = rec.Clone()
	}
	return out
}

// InProgress lists started but unfinished videos, most recently watched
// first. A limit of zero or less returns all of them.
func (s *Store) InProgress(limit int) []domain.VideoProgress {
	s.mu.Lock()
	var out []domain.VideoProgress
	for _, rec := range s.state.VideoProgress {
		if rec.InProgress() {
			out = append(out, rec.Clone())
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.VideoProgress) int {
		if c := b.LastWatched.Compare(a.LastWatched); c != 0 {
			return c
		}
		return cmp.Compare(a.VideoID, b.VideoID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats returns the aggregate counters.
func (s *Store) Stats() domain.UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UserStats
}

// LiveStats computes today's dashboard figures as of now.
func (s *Store) LiveStats(now time.Time) domain.LiveStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stats.Live(s.state.VideoProgress, s.state.UserStats, now)
}

// CurrentVideo returns the selected video, or nil.
func (s *Store) CurrentVideo() *domain.Video {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentVideo == nil {
		return nil
	}
	v := *s.state.CurrentVideo
	return &v
}

// DarkMode returns the theme flag.
func (s *Store) DarkMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DarkMode
}

// LastWatchedAt returns the most recent LastWatched across all records, or
// the zero time when nothing was watched.
func (s *Store) LastWatchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest time.Time
	for _, rec := range s.state.VideoProgress {
		if rec.LastWatched.After(latest) {
			latest = rec.LastWatched
		}
	}
	return latest
}
