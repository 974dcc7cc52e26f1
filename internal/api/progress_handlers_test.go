package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursetrack/coursetrack/internal/domain"
)

func (ts *testServer) putProgress(t *testing.T, videoID string, body map[string]any) UpdateProgressResponse {
	t.Helper()
	resp := ts.api.Put("/api/v1/progress/"+videoID, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decodeEnvelope[UpdateProgressResponse](t, resp.Body.Bytes()).Data
}

func TestUpdateProgress_FoldsStatsAndCompletesOnce(t *testing.T) {
	ts := setupTestServer(t)

	first := ts.putProgress(t, "vid1", map[string]any{"timestamp": 10, "duration": 100})
	assert.True(t, first.Applied)
	assert.False(t, first.FirstCompleted)
	require.NotNil(t, first.Progress)
	assert.Equal(t, 10.0, first.Progress.Timestamp)
	assert.Equal(t, 10.0, first.Stats.TotalWatchTime)

	done := ts.putProgress(t, "vid1", map[string]any{"timestamp": 95, "duration": 100})
	assert.True(t, done.FirstCompleted)
	assert.True(t, done.Progress.Completed)
	assert.Equal(t, 1, done.Stats.CompletedVideos)
	assert.Equal(t, 95.0, done.Stats.TotalWatchTime)

	again := ts.putProgress(t, "vid1", map[string]any{"timestamp": 99, "duration": 100})
	assert.False(t, again.FirstCompleted)
	assert.Equal(t, 1, again.Stats.CompletedVideos)
}

func TestUpdateProgress_IgnoresSampleWithoutDuration(t *testing.T) {
	ts := setupTestServer(t)

	upd := ts.putProgress(t, "vid1", map[string]any{"timestamp": 10, "duration": 0})

	assert.False(t, upd.Applied)
	assert.Nil(t, upd.Progress)
	_, ok := ts.progressStore.Progress("vid1")
	assert.False(t, ok)
}

func TestUpdateProgress_CompletedOverride(t *testing.T) {
	ts := setupTestServer(t)

	upd := ts.putProgress(t, "vid1", map[string]any{"timestamp": 20, "duration": 100, "completed": true})

	assert.True(t, upd.FirstCompleted)
	assert.True(t, upd.Progress.Completed)
}

func TestUpdateProgress_RejectsBadVideoID(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Put("/api/v1/progress/bad%20id", map[string]any{"timestamp": 1, "duration": 10})

	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Equal(t, "VALIDATION", decodeEnvelope[any](t, resp.Body.Bytes()).Code)
}

func TestGetProgress(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/progress/vid1")
	require.Equal(t, http.StatusNotFound, resp.Code)

	ts.putProgress(t, "vid1", map[string]any{"timestamp": 30, "duration": 60})

	resp = ts.api.Get("/api/v1/progress/vid1")
	require.Equal(t, http.StatusOK, resp.Code)
	rec := decodeEnvelope[domain.VideoProgress](t, resp.Body.Bytes()).Data
	assert.Equal(t, "vid1", rec.VideoID)
	assert.Equal(t, 30.0, rec.Timestamp)
	assert.Equal(t, 60.0, rec.Duration)
}

func TestContinueWatching(t *testing.T) {
	ts := setupTestServer(t)
	ts.putProgress(t, "started", map[string]any{"timestamp": 30, "duration": 600})
	ts.putProgress(t, "finished", map[string]any{"timestamp": 600, "duration": 600})

	resp := ts.api.Get("/api/v1/progress/continue")

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	list := decodeEnvelope[ProgressListResponse](t, resp.Body.Bytes()).Data
	require.Len(t, list.Progress, 1)
	assert.Equal(t, "started", list.Progress[0].VideoID)
}

func TestCurrentVideo_SetAndClear(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Put("/api/v1/current-video", map[string]any{"id": "vid1", "title": "Intro"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	v := decodeEnvelope[domain.Video](t, resp.Body.Bytes()).Data
	assert.Equal(t, "vid1", v.ID)

	current := ts.progressStore.CurrentVideo()
	require.NotNil(t, current)
	assert.Equal(t, "Intro", current.Title)

	resp = ts.api.Delete("/api/v1/current-video")
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Nil(t, ts.progressStore.CurrentVideo())
}
