package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production", Level: slog.LevelInfo})

	log.Info("progress saved", "video_id", "v1", "timestamp", 42.0)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "progress saved", rec["msg"])
	assert.Equal(t, "v1", rec["video_id"])
}

func TestNew_PrettyByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelDebug})

	log.Debug("sample", "t", 5)

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "t=5")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelWarn})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WRN")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON})

	log.Component("playback").WithVideo("abc").WithError(errors.New("boom")).Info("fault")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "playback", rec["component"])
	assert.Equal(t, "abc", rec["video_id"])
	assert.Equal(t, "boom", rec["error"])
}

func TestLogger_WithNilErrorIsNoop(t *testing.T) {
	log := Discard()
	assert.Same(t, log, log.WithError(nil))
}

func TestPrettyHandler_GroupsQualifyKeys(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	log := slog.New(h).WithGroup("stats").With("hours", 1.5)

	log.Info("updated", "videos", 3)

	out := buf.String()
	assert.Contains(t, out, "stats.hours=1.5")
	assert.Contains(t, out, "stats.videos=3")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestRenderValue(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-01-02T03:04:05Z", renderValue(slog.TimeValue(ts)))
	assert.Equal(t, "5s", renderValue(slog.DurationValue(5*time.Second)))
	assert.Equal(t, "x", renderValue(slog.StringValue("x")))
}
