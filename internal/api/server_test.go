package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/notify"
	"github.com/coursetrack/coursetrack/internal/playback"
	"github.com/coursetrack/coursetrack/internal/progress"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/store"
)

// testEnvelope decodes a success or coded error envelope.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// failingLoader never manages to start a player.
type failingLoader struct {
	mu    sync.Mutex
	calls int
}

func (l *failingLoader) Load(context.Context, string, float64) (playback.Handle, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return nil, errors.ErrResourceAcquisition.WithMessage("no player widget connected")
}

type testServer struct {
	*Server
	api           humatest.TestAPI
	progressStore *progress.Store
	center        *notify.Center
	loader        *failingLoader
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.DiscardHandler)

	kv, err := store.NewInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	state := store.NewStateStore(kv, logger)

	sseManager := sse.NewManager(logger)

	ps, err := progress.New(ctx, state, progress.Options{Emitter: sseManager, Logger: logger})
	require.NoError(t, err)

	center := notify.NewCenter(notify.Options{Emitter: sseManager, Logger: logger})
	t.Cleanup(center.Close)

	loader := &failingLoader{}
	controller := playback.NewController(playback.Options{
		Loader:   loader,
		Writer:   ps,
		Notifier: center,
		Emitter:  sseManager,
		Logger:   logger,
	})
	t.Cleanup(controller.Close)

	s := NewServer(Deps{
		Progress:      ps,
		Notifications: center,
		Playback:      controller,
		State:         state,
		SSEManager:    sseManager,
		SSEHandler:    sse.NewHandler(sseManager, logger),
		Logger:        logger,
		BaseContext:   ctx,
	})

	return &testServer{
		Server:        s,
		api:           humatest.Wrap(t, s.API()),
		progressStore: ps,
		center:        center,
		loader:        loader,
	}
}

func decodeEnvelope[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}
