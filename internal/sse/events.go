// Package sse implements Server-Sent Events for pushing progress, stats and
// notification changes to dashboard clients.
package sse

import (
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	EventProgressUpdated EventType = "progress.updated"
	EventStatsUpdated    EventType = "stats.updated"

	EventPlaylistCreated EventType = "playlist.created"
	EventPlaylistUpdated EventType = "playlist.updated"
	EventPlaylistDeleted EventType = "playlist.deleted"

	EventCurrentVideoChanged EventType = "current_video.changed"
	EventSettingsUpdated     EventType = "settings.updated"

	// EventNotificationCreated carries a new toast or achievement.
	EventNotificationCreated EventType = "notification.created"
	// EventNotificationsChanged is sent after reads and clears so panels can refetch.
	EventNotificationsChanged EventType = "notification.changed"

	// EventPlaybackState reports playback controller transitions.
	EventPlaybackState EventType = "playback.state"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ProgressEventData is the payload for progress.updated.
type ProgressEventData struct {
	Progress       domain.VideoProgress `json:"progress"`
	FirstCompleted bool                 `json:"firstCompleted"`
}

// StatsEventData is the payload for stats.updated.
type StatsEventData struct {
	Previous domain.UserStats `json:"previous"`
	Current  domain.UserStats `json:"current"`
}

// PlaylistEventData is the payload for playlist.created and playlist.updated.
type PlaylistEventData struct {
	Playlist domain.Playlist `json:"playlist"`
}

// PlaylistDeletedEventData is the payload for playlist.deleted.
type PlaylistDeletedEventData struct {
	PlaylistID string `json:"playlistId"`
}

// CurrentVideoEventData is the payload for current_video.changed. A nil video means cleared.
type CurrentVideoEventData struct {
	Video *domain.Video `json:"video"`
}

// SettingsEventData is the payload for settings.updated.
type SettingsEventData struct {
	DarkMode bool `json:"darkMode"`
}

// NotificationsChangedEventData is the payload for notification.changed.
type NotificationsChangedEventData struct {
	Unread int `json:"unread"`
	Total  int `json:"total"`
}

// PlaybackEventData is the payload for playback.state.
type PlaybackEventData struct {
	State       string  `json:"state"`
	VideoID     string  `json:"videoId,omitempty"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Fault       string  `json:"fault,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}

// NewProgressUpdatedEvent creates a progress.updated event.
func NewProgressUpdatedEvent(p domain.VideoProgress, firstCompleted bool) Event {
	return newEvent(EventProgressUpdated, ProgressEventData{Progress: p, FirstCompleted: firstCompleted})
}

// NewStatsUpdatedEvent creates a stats.updated event.
func NewStatsUpdatedEvent(prev, next domain.UserStats) Event {
	return newEvent(EventStatsUpdated, StatsEventData{Previous: prev, Current: next})
}

// NewPlaylistCreatedEvent creates a playlist.created event.
func NewPlaylistCreatedEvent(pl domain.Playlist) Event {
	return newEvent(EventPlaylistCreated, PlaylistEventData{Playlist: pl})
}

// NewPlaylistUpdatedEvent creates a playlist.updated event.
func NewPlaylistUpdatedEvent(pl domain.Playlist) Event {
	return newEvent(EventPlaylistUpdated, PlaylistEventData{Playlist: pl})
}

// NewPlaylistDeletedEvent creates a playlist.deleted event.
func NewPlaylistDeletedEvent(playlistID string) Event {
	return newEvent(EventPlaylistDeleted, PlaylistDeletedEventData{PlaylistID: playlistID})
}

// NewCurrentVideoEvent creates a current_video.changed event.
func NewCurrentVideoEvent(v *domain.Video) Event {
	return newEvent(EventCurrentVideoChanged, CurrentVideoEventData{Video: v})
}

// NewSettingsUpdatedEvent creates a settings.updated event.
func NewSettingsUpdatedEvent(darkMode bool) Event {
	return newEvent(EventSettingsUpdated, SettingsEventData{DarkMode: darkMode})
}

// NewNotificationCreatedEvent creates a notification.created event.
func NewNotificationCreatedEvent(n domain.Notification) Event {
	return newEvent(EventNotificationCreated, n)
}

// NewNotificationsChangedEvent creates a notification.changed event.
func NewNotificationsChangedEvent(unread, total int) Event {
	return newEvent(EventNotificationsChanged, NotificationsChangedEventData{Unread: unread, Total: total})
}

// NewPlaybackStateEvent creates a playback.state event.
func NewPlaybackStateEvent(data PlaybackEventData) Event {
	return newEvent(EventPlaybackState, data)
}
