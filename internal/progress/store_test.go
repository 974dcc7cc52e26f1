package progress

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursetrack/coursetrack/internal/domain"
	domainerrors "github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/store"
)

type memPersister struct {
	mu      sync.Mutex
	state   *domain.State
	saves   int
	failErr error
}

func (m *memPersister) Load(context.Context) (domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return domain.DefaultState(), nil
	}
	return m.state.Clone(), nil
}

func (m *memPersister) Save(_ context.Context, s domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failErr != nil {
		return m.failErr
	}
	c := s.Clone()
	m.state = &c
	return nil
}

func (m *memPersister) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.(sse.Event))
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func setupTestStore(t *testing.T) (*Store, *memPersister, *recordingEmitter) {
	t.Helper()
	p := &memPersister{}
	em := &recordingEmitter{}
	clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s, err := New(context.Background(), p, Options{
		Emitter: em,
		Clock:   func() time.Time { return clock },
	})
	require.NoError(t, err)
	return s, p, em
}

func TestUpdateVideoProgress_TenThenFifty(t *testing.T) {
	s, p, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateVideoProgress(ctx, "v1", 10, 100, false)
	require.NoError(t, err)
	upd, err := s.UpdateVideoProgress(ctx, "v1", 50, 100, false)
	require.NoError(t, err)

	assert.True(t, upd.Applied)
	assert.False(t, upd.Progress.Completed)
	assert.InDelta(t, 50.0, s.Stats().TotalWatchTime, 1e-9)
	assert.Zero(t, s.Stats().CompletedVideos)
	assert.Equal(t, 2, p.saveCount())
}

func TestUpdateVideoProgress_CompletionCountedOnce(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	upd, err := s.UpdateVideoProgress(ctx, "v1", 95, 100, false)
	require.NoError(t, err)
	assert.True(t, upd.Progress.Completed)
	assert.True(t, upd.FirstCompleted)
	assert.NotNil(t, upd.Progress.FirstCompletedAt)
	assert.Equal(t, 1, s.Stats().CompletedVideos)

	upd, err = s.UpdateVideoProgress(ctx, "v1", 96, 100, false)
	require.NoError(t, err)
	assert.False(t, upd.FirstCompleted)
	assert.Equal(t, 1, s.Stats().CompletedVideos)

	// Rewatching from the start and finishing again does not recount.
	_, err = s.UpdateVideoProgress(ctx, "v1", 3, 100, false)
	require.NoError(t, err)
	rec, _ := s.Progress("v1")
	assert.False(t, rec.Completed)

	_, err = s.UpdateVideoProgress(ctx, "v1", 99, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats().CompletedVideos)
}

func TestUpdateVideoProgress_BrowserBlobCompletionCountedOnce(t *testing.T) {
	blob := `{"state":{"videoProgress":{"v1":{"videoId":"v1","timestamp":95,"duration":100,"lastWatched":"2024-03-02T09:00:00.000Z","completed":true}},
		"userStats":{"totalWatchTime":95,"completedVideos":1,"currentStreak":1,"longestStreak":1}},"version":0}`
	loaded, err := domain.DecodeState([]byte(blob))
	require.NoError(t, err)

	p := &memPersister{state: &loaded}
	s, err := New(context.Background(), p, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.UpdateVideoProgress(ctx, "v1", 10, 100, false)
	require.NoError(t, err)
	rec, _ := s.Progress("v1")
	assert.False(t, rec.Completed)
	require.NotNil(t, rec.FirstCompletedAt)

	upd, err := s.UpdateVideoProgress(ctx, "v1", 95, 100, false)
	require.NoError(t, err)
	assert.False(t, upd.FirstCompleted)
	assert.Equal(t, 1, s.Stats().CompletedVideos)
}

func TestUpdateVideoProgress_OverrideCompletes(t *testing.T) {
	s, _, _ := setupTestStore(t)

	upd, err := s.UpdateVideoProgress(context.Background(), "v1", 40, 100, true)
	require.NoError(t, err)
	assert.True(t, upd.Progress.Completed)
	assert.Equal(t, 1, s.Stats().CompletedVideos)
}

func TestUpdateVideoProgress_OneRecordPerVideo(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	for _, ts := range []float64{5, 10, 15} {
		_, err := s.UpdateVideoProgress(ctx, "v1", ts, 100, false)
		require.NoError(t, err)
	}
	_, err := s.UpdateVideoProgress(ctx, "v2", 5, 100, false)
	require.NoError(t, err)

	all := s.AllProgress()
	assert.Len(t, all, 2)
	assert.InDelta(t, 15.0, all["v1"].Timestamp, 1e-9)
}

func TestUpdateVideoProgress_MalformedSamples(t *testing.T) {
	s, p, _ := setupTestStore(t)
	ctx := context.Background()

	// No known duration: ignored, nothing persisted.
	upd, err := s.UpdateVideoProgress(ctx, "v1", 10, 0, false)
	require.NoError(t, err)
	assert.False(t, upd.Applied)
	_, ok := s.Progress("v1")
	assert.False(t, ok)
	assert.Zero(t, p.saveCount())

	_, err = s.UpdateVideoProgress(ctx, "v1", 20, 200, false)
	require.NoError(t, err)

	// NaN duration falls back to 200, negative timestamp clamps to 0.
	upd, err = s.UpdateVideoProgress(ctx, "v1", -4, math.NaN(), false)
	require.NoError(t, err)
	assert.True(t, upd.Applied)
	assert.Zero(t, upd.Progress.Timestamp)
	assert.InDelta(t, 200.0, upd.Progress.Duration, 1e-9)
	assert.InDelta(t, 20.0, s.Stats().TotalWatchTime, 1e-9, "rewind never reduces watch time")

	// Past the end clamps to duration.
	upd, err = s.UpdateVideoProgress(ctx, "v1", 500, 200, false)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, upd.Progress.Timestamp, 1e-9)
}

func TestUpdateVideoProgress_EmptyID(t *testing.T) {
	s, _, _ := setupTestStore(t)

	_, err := s.UpdateVideoProgress(context.Background(), " ", 1, 2, false)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestUpdateVideoProgress_PersistFailureIsBestEffort(t *testing.T) {
	s, p, _ := setupTestStore(t)
	p.failErr = errors.New("disk full")

	upd, err := s.UpdateVideoProgress(context.Background(), "v1", 30, 100, false)
	require.NoError(t, err)
	assert.True(t, upd.Applied)
	assert.InDelta(t, 30.0, s.Stats().TotalWatchTime, 1e-9)
}

func TestObserver_ReceivesPrevAndNextOutsideLock(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	var got [][2]domain.UserStats
	s.Observe(StatsObserverFunc(func(_ context.Context, prev, next domain.UserStats) {
		// Reading from the store here would deadlock if the lock were held.
		_ = s.Stats()
		got = append(got, [2]domain.UserStats{prev, next})
	}))

	_, err := s.UpdateVideoProgress(ctx, "v1", 95, 100, false)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Zero(t, got[0][0].CompletedVideos)
	assert.Equal(t, 1, got[0][1].CompletedVideos)

	// A zero-delta sample on a completed video changes nothing, so no call.
	_, err = s.UpdateVideoProgress(ctx, "v1", 95, 100, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUpdateVideoProgress_EmitsEvents(t *testing.T) {
	s, _, em := setupTestStore(t)

	_, err := s.UpdateVideoProgress(context.Background(), "v1", 10, 100, false)
	require.NoError(t, err)

	assert.Equal(t, []sse.EventType{sse.EventProgressUpdated, sse.EventStatsUpdated}, em.types())
}

func TestNew_LoadsPersistedState(t *testing.T) {
	kv, err := store.NewInMemory(nil)
	require.NoError(t, err)
	defer kv.Close()
	ss := store.NewStateStore(kv, nil)
	ctx := context.Background()

	first, err := New(ctx, ss, Options{})
	require.NoError(t, err)
	_, err = first.UpdateVideoProgress(ctx, "v1", 95, 100, false)
	require.NoError(t, err)
	require.NoError(t, first.SetDarkMode(ctx, true))

	second, err := New(ctx, ss, Options{})
	require.NoError(t, err)
	assert.True(t, second.DarkMode())
	assert.Equal(t, 1, second.Stats().CompletedVideos)
	rec, ok := second.Progress("v1")
	require.True(t, ok)
	assert.True(t, rec.Completed)
}

func TestNew_LoadError(t *testing.T) {
	_, err := New(context.Background(), failingLoader{}, Options{})
	assert.Error(t, err)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context) (domain.State, error) {
	return domain.State{}, errors.New("io")
}
func (failingLoader) Save(context.Context, domain.State) error { return nil }

func TestSetStreaks(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	var calls int
	s.Observe(StatsObserverFunc(func(context.Context, domain.UserStats, domain.UserStats) { calls++ }))

	got, err := s.SetStreaks(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentStreak)
	assert.Equal(t, 7, got.LongestStreak)
	assert.Equal(t, 1, calls)

	_, err = s.SetStreaks(ctx, -1, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestDarkMode(t *testing.T) {
	s, _, em := setupTestStore(t)
	ctx := context.Background()

	assert.False(t, s.DarkMode())
	on, err := s.ToggleDarkMode(ctx)
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, s.SetDarkMode(ctx, false))
	assert.False(t, s.DarkMode())
	assert.Contains(t, em.types(), sse.EventSettingsUpdated)
}

func TestCurrentVideo(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateVideoProgress(ctx, "v1", 30, 100, false)
	require.NoError(t, err)

	v := &domain.Video{ID: "v1", Title: "Intro"}
	require.NoError(t, s.SetCurrentVideo(ctx, v))
	v.Title = "mutated by caller"

	got := s.CurrentVideo()
	require.NotNil(t, got)
	assert.Equal(t, "Intro", got.Title)

	require.NoError(t, s.SetCurrentVideo(ctx, nil))
	assert.Nil(t, s.CurrentVideo())

	rec, ok := s.Progress("v1")
	require.True(t, ok, "selecting a video never resets progress")
	assert.InDelta(t, 30.0, rec.Timestamp, 1e-9)

	assert.Error(t, s.SetCurrentVideo(ctx, &domain.Video{}))
}

func TestInProgress(t *testing.T) {
	p := &memPersister{}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s, err := New(context.Background(), p, Options{Clock: func() time.Time { return clock }})
	require.NoError(t, err)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "done"} {
		clock = now.Add(time.Duration(i) * time.Minute)
		ts := 10.0
		if id == "done" {
			ts = 100
		}
		_, err := s.UpdateVideoProgress(ctx, id, ts, 100, false)
		require.NoError(t, err)
	}

	list := s.InProgress(2)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].VideoID)
	assert.Equal(t, "b", list[1].VideoID)
	assert.Len(t, s.InProgress(0), 3)
}

func TestLiveStats(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateVideoProgress(ctx, "a", 100, 100, false)
	require.NoError(t, err)
	_, err = s.UpdateVideoProgress(ctx, "b", 50, 100, false)
	require.NoError(t, err)

	live := s.LiveStats(time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, live.SessionsToday)
	assert.InDelta(t, 50.0, live.CompletionRate, 1e-9)
	assert.InDelta(t, 75.0, live.AverageSessionLength, 1e-9)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), s.LastWatchedAt())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()
	_, err := s.AddPlaylist(ctx, domain.Playlist{ID: "p1", Videos: []domain.Video{{ID: "v1"}}})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Playlists[0].Videos[0].Title = "mutated"
	snap.UserStats.CompletedVideos = 99

	pl, err := s.Playlist("p1")
	require.NoError(t, err)
	assert.Empty(t, pl.Videos[0].Title)
	assert.Zero(t, s.Stats().CompletedVideos)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	s, _, _ := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "v" + string(rune('a'+n))
			_, err := s.UpdateVideoProgress(ctx, id, 10, 100, false)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.InDelta(t, 200.0, s.Stats().TotalWatchTime, 1e-9)
	assert.Len(t, s.AllProgress(), 20)
}
