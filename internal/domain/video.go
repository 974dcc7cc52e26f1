package domain

import "strings"

// Video is an externally sourced video. It is never modified after it is fetched.
type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	Thumbnail    string `json:"thumbnail"`
	Description  string `json:"description"`
	PublishedAt  string `json:"publishedAt"`
	Duration     string `json:"duration,omitempty"`
	PlaylistID   string `json:"playlistId,omitempty"`
}

// Valid reports whether the video carries an identity.
func (v Video) Valid() bool {
	return strings.TrimSpace(v.ID) != ""
}
