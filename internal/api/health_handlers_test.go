package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")

	require.Equal(t, http.StatusOK, resp.Code)
	env := decodeEnvelope[HealthResponse](t, resp.Body.Bytes())
	assert.True(t, env.Success)

	// No player bridge is configured in tests.
	assert.Equal(t, statusDegraded, env.Data.Status)
	assert.Equal(t, statusHealthy, env.Data.Components["storage"].Status)
	assert.Equal(t, statusHealthy, env.Data.Components["sse"].Status)
	assert.Equal(t, "no connected clients", env.Data.Components["sse"].Message)
	assert.Equal(t, statusDegraded, env.Data.Components["player"].Status)
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "no widgets", formatCount(0, "widget"))
	assert.Equal(t, "1 widget", formatCount(1, "widget"))
	assert.Equal(t, "3 widgets", formatCount(3, "widget"))
}
