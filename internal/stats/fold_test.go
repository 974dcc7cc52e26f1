package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coursetrack/coursetrack/internal/domain"
)

// apply folds a sequence of samples for one video, maintaining the record
// the way the progress store does.
func apply(t *testing.T, start domain.UserStats, dur float64, samples ...float64) (domain.UserStats, *domain.VideoProgress) {
	t.Helper()
	s := start
	var rec *domain.VideoProgress
	for _, ts := range samples {
		next, completed := Fold(s, rec, ts, dur, false)
		firstDone := rec.EverCompleted() || completed
		var marker *time.Time
		if rec != nil {
			marker = rec.FirstCompletedAt
		}
		if firstDone && marker == nil {
			now := time.Now()
			marker = &now
		}
		rec = &domain.VideoProgress{VideoID: "v", Timestamp: ts, Duration: dur, Completed: completed, FirstCompletedAt: marker}
		s = next
	}
	return s, rec
}

func TestFold_TenThenFifty(t *testing.T) {
	s, rec := apply(t, domain.UserStats{}, 100, 10, 50)

	assert.False(t, rec.Completed)
	assert.InDelta(t, 50.0, s.TotalWatchTime, 1e-9)
	assert.Zero(t, s.CompletedVideos)
}

func TestFold_CompletionAtNinetyFive(t *testing.T) {
	s, rec := apply(t, domain.UserStats{}, 100, 95)

	assert.True(t, rec.Completed)
	assert.Equal(t, 1, s.CompletedVideos)
}

func TestFold_CompletionCountedOnce(t *testing.T) {
	s, _ := apply(t, domain.UserStats{}, 100, 95, 96, 99, 100)
	assert.Equal(t, 1, s.CompletedVideos)
}

func TestFold_RewatchAfterCompletionDoesNotRecount(t *testing.T) {
	s, rec := apply(t, domain.UserStats{}, 100, 95, 5, 97)

	assert.True(t, rec.Completed)
	assert.Equal(t, 1, s.CompletedVideos)
}

func TestFold_GranularityIndependent(t *testing.T) {
	fine, _ := apply(t, domain.UserStats{}, 1000, 5, 10, 15, 20, 25, 30)
	coarse, _ := apply(t, domain.UserStats{}, 1000, 30)
	batched, _ := apply(t, domain.UserStats{}, 1000, 15, 30)

	assert.InDelta(t, coarse.TotalWatchTime, fine.TotalWatchTime, 1e-9)
	assert.InDelta(t, coarse.TotalWatchTime, batched.TotalWatchTime, 1e-9)
}

func TestFold_SumOfForwardDeltas(t *testing.T) {
	samples := []float64{3, 7, 7, 20, 41.5, 60}
	s, _ := apply(t, domain.UserStats{}, 600, samples...)

	var want float64
	prev := 0.0
	for _, ts := range samples {
		want += ts - prev
		prev = ts
	}
	assert.InDelta(t, want, s.TotalWatchTime, 1e-9)
}

func TestFold_SeekBackwardNeverDecreases(t *testing.T) {
	s, _ := apply(t, domain.UserStats{}, 600, 100, 40, 60)

	// 100 forward, 0 for the rewind, then 20 forward from 40.
	assert.InDelta(t, 120.0, s.TotalWatchTime, 1e-9)
}

func TestFold_OverrideCompletes(t *testing.T) {
	next, completed := Fold(domain.UserStats{}, nil, 10, 100, true)

	assert.True(t, completed)
	assert.Equal(t, 1, next.CompletedVideos)
}

func TestFold_StreaksPassThrough(t *testing.T) {
	prev := domain.UserStats{CurrentStreak: 6, LongestStreak: 9}
	next, _ := Fold(prev, nil, 95, 100, false)

	assert.Equal(t, 6, next.CurrentStreak)
	assert.Equal(t, 9, next.LongestStreak)
}

func TestFold_ReferentiallyTransparent(t *testing.T) {
	prev := domain.UserStats{TotalWatchTime: 3000, CompletedVideos: 2}
	rec := &domain.VideoProgress{Timestamp: 10, Duration: 100}

	a, ca := Fold(prev, rec, 50, 100, false)
	b, cb := Fold(prev, rec, 50, 100, false)

	assert.Equal(t, a, b)
	assert.Equal(t, ca, cb)
	assert.InDelta(t, 10.0, rec.Timestamp, 1e-9, "inputs are not mutated")
}

func TestRules_CustomRatio(t *testing.T) {
	r := Rules{CompletionRatio: 0.5}
	_, completed := r.Fold(domain.UserStats{}, nil, 50, 100, false)
	assert.True(t, completed)

	_, completed = Rules{CompletionRatio: 7}.Fold(domain.UserStats{}, nil, 50, 100, false)
	assert.False(t, completed, "out of range ratio falls back to the default")
}

func TestForwardDelta(t *testing.T) {
	assert.InDelta(t, 5.0, ForwardDelta(10, 15), 1e-9)
	assert.Zero(t, ForwardDelta(15, 10))
	assert.Zero(t, ForwardDelta(0, math.NaN()))
	assert.Zero(t, ForwardDelta(0, math.Inf(1)))
}

func TestSanitize(t *testing.T) {
	prev := &domain.VideoProgress{Duration: 300}

	tests := []struct {
		name    string
		ts, dur float64
		prev    *domain.VideoProgress
		wantTS  float64
		wantDur float64
		wantOK  bool
	}{
		{"valid", 10, 100, nil, 10, 100, true},
		{"negative timestamp", -3, 100, nil, 0, 100, true},
		{"nan timestamp", math.NaN(), 100, nil, 0, 100, true},
		{"timestamp past end", 120, 100, nil, 100, 100, true},
		{"zero duration uses previous", 10, 0, prev, 10, 300, true},
		{"inf duration uses previous", 10, math.Inf(1), prev, 10, 300, true},
		{"no duration at all", 10, -1, nil, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, dur, ok := Sanitize(tt.ts, tt.dur, tt.prev)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.wantTS, ts, 1e-9)
			assert.InDelta(t, tt.wantDur, dur, 1e-9)
		})
	}
}
