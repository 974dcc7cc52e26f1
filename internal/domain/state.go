package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// StateKey is the key the state blob is stored under.
const StateKey = "youtube-learning-tracker-storage"

// State is the whole persisted application state.
type State struct {
	DarkMode      bool                     `json:"darkMode"`
	Playlists     []Playlist               `json:"playlists"`
	VideoProgress map[string]VideoProgress `json:"videoProgress"`
	UserStats     UserStats                `json:"userStats"`
	CurrentVideo  *Video                   `json:"currentVideo"`
}

// DefaultState returns the state of a fresh installation.
func DefaultState() State {
	return State{
		Playlists:     []Playlist{},
		VideoProgress: map[string]VideoProgress{},
		UserStats:     DefaultUserStats(),
	}
}

// Normalize repairs a decoded state in place: nil collections become empty,
// progress records are re-keyed by their video id, playlist videos are
// deduplicated, completed records without a first-completion marker get
// one, and counters are clamped to be non-negative.
func (s *State) Normalize() {
	if s.Playlists == nil {
		s.Playlists = []Playlist{}
	}
	for i := range s.Playlists {
		if s.Playlists[i].Videos == nil {
			s.Playlists[i].Videos = []Video{}
			continue
		}
		s.Playlists[i].Videos = DedupeVideos(s.Playlists[i].Videos)
	}

	progress := make(map[string]VideoProgress, len(s.VideoProgress))
	for key, rec := range s.VideoProgress {
		if rec.VideoID == "" {
			rec.VideoID = key
		}
		if rec.VideoID == "" {
			continue
		}
		rec.Timestamp = max(rec.Timestamp, 0)
		rec.Duration = max(rec.Duration, 0)
		if rec.Completed && rec.FirstCompletedAt == nil {
			marked := rec.LastWatched
			rec.FirstCompletedAt = &marked
		}
		progress[rec.VideoID] = rec
	}
	s.VideoProgress = progress

	s.UserStats.TotalWatchTime = max(s.UserStats.TotalWatchTime, 0)
	s.UserStats.CompletedVideos = max(s.UserStats.CompletedVideos, 0)
	s.UserStats.CurrentStreak = max(s.UserStats.CurrentStreak, 0)
	s.UserStats.LongestStreak = max(s.UserStats.LongestStreak, s.UserStats.CurrentStreak)

	if s.CurrentVideo != nil && !s.CurrentVideo.Valid() {
		s.CurrentVideo = nil
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Playlists = make([]Playlist, len(s.Playlists))
	for i, pl := range s.Playlists {
		out.Playlists[i] = pl.Clone()
	}
	out.VideoProgress = make(map[string]VideoProgress, len(s.VideoProgress))
	for id, rec := range s.VideoProgress {
		out.VideoProgress[id] = rec.Clone()
	}
	if s.CurrentVideo != nil {
		v := *s.CurrentVideo
		out.CurrentVideo = &v
	}
	return out
}

// ProgressIDs returns the ids of all tracked videos in sorted order.
func (s State) ProgressIDs() []string {
	return slices.Sorted(maps.Keys(s.VideoProgress))
}

// envelope mirrors the wrapper the browser build of the tracker used for
// its persisted blob, so blobs exported from it load unchanged.
type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// EncodeState serializes s in the persisted envelope format.
func EncodeState(s State) ([]byte, error) {
	inner, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return json.Marshal(envelope{State: inner})
}

// DecodeState parses a persisted blob. Both the envelope format and a bare
// state object are accepted. Missing fields keep their defaults and unknown
// fields are ignored.
func DecodeState(data []byte) (State, error) {
	state := DefaultState()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return State{}, fmt.Errorf("decode state envelope: %w", err)
	}

	payload := data
	if len(env.State) > 0 && string(env.State) != "null" {
		payload = env.State
	}
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}

	state.Normalize()
	return state, nil
}
