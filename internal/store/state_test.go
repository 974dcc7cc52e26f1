package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursetrack/coursetrack/internal/domain"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "coursetrack-store-test-*")
	require.NoError(t, err)

	s, err := New(filepath.Join(tmpDir, "db"), nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

type recordingObserver struct {
	mu         sync.Mutex
	saves      int
	recoveries int
	lastErr    error
}

func (r *recordingObserver) ObserveSave(_ string, _ time.Duration, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.lastErr = err
}

func (r *recordingObserver) ObserveRecovery(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoveries++
}

func TestStore_GetPutKeys(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.Put(ctx, "a:1", []byte("one")))
	require.NoError(t, s.Put(ctx, "a:2", []byte("two")))
	require.NoError(t, s.Put(ctx, "b:1", []byte("three")))

	got, err := s.Get(ctx, "a:2")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	keys, err := s.Keys(ctx, "a:")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "a:2"}, keys)
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := NewInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, "k", []byte("v")), context.Canceled)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateStore_LoadMissingReturnsDefaults(t *testing.T) {
	kv, err := NewInMemory(nil)
	require.NoError(t, err)
	defer kv.Close()

	state, err := NewStateStore(kv, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserStats(), state.UserStats)
	assert.Empty(t, state.Playlists)
}

func TestStateStore_RoundTripSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")
	ctx := context.Background()

	kv, err := New(path, nil)
	require.NoError(t, err)

	state := domain.DefaultState()
	state.DarkMode = true
	state.UserStats.TotalWatchTime = 1234
	state.VideoProgress["v1"] = domain.VideoProgress{VideoID: "v1", Timestamp: 30, Duration: 100}
	require.NoError(t, NewStateStore(kv, nil).Save(ctx, state))
	require.NoError(t, kv.Close())

	kv, err = New(path, nil)
	require.NoError(t, err)
	defer kv.Close()

	loaded, err := NewStateStore(kv, nil).Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.DarkMode)
	assert.InDelta(t, 1234.0, loaded.UserStats.TotalWatchTime, 1e-9)
	assert.InDelta(t, 30.0, loaded.VideoProgress["v1"].Timestamp, 1e-9)
}

func TestStateStore_CorruptBlobIsPreserved(t *testing.T) {
	kv, err := NewInMemory(nil)
	require.NoError(t, err)
	defer kv.Close()
	ctx := context.Background()

	require.NoError(t, kv.Put(ctx, domain.StateKey, []byte("{definitely not json")))

	obs := &recordingObserver{}
	fixed := time.Unix(1700000000, 0)
	ss := NewStateStore(kv, nil, WithSaveObserver(obs), WithClock(func() time.Time { return fixed }))

	state, err := ss.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultState().UserStats, state.UserStats)
	assert.Equal(t, 1, obs.recoveries)

	copies, err := ss.CorruptCopies(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{domain.StateKey + ".corrupt.1700000000"}, copies)

	preserved, err := kv.Get(ctx, copies[0])
	require.NoError(t, err)
	assert.Equal(t, "{definitely not json", string(preserved))
}

func TestStateStore_SaveNotifiesObserver(t *testing.T) {
	kv, err := NewInMemory(nil)
	require.NoError(t, err)
	defer kv.Close()

	obs := &recordingObserver{}
	ss := NewStateStore(kv, nil, WithSaveObserver(obs), WithKey("custom"))

	require.NoError(t, ss.Save(context.Background(), domain.DefaultState()))
	assert.Equal(t, 1, obs.saves)
	assert.NoError(t, obs.lastErr)
	assert.Equal(t, "custom", ss.Key())

	raw, err := ss.Raw(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"userStats"`)
}
