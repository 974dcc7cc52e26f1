// Package progress is the single source of truth for playlists, per-video
// progress, aggregate stats and the current video.
//
// All mutations go through Store methods. Each command runs under one
// mutex, persists the new state before returning and only then notifies
// observers, so readers never see a partially applied update.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/stats"
	"github.com/coursetrack/coursetrack/internal/store"
)

// Sentinel errors.
var (
	ErrPlaylistNotFound = errors.ErrNotFound.WithMessage("playlist not found")
	ErrPlaylistExists   = errors.ErrAlreadyExists.WithMessage("playlist already exists")
	ErrInvalidVideo     = errors.ErrValidation.WithMessage("video id is required")
)

// Persister loads and saves the whole state blob.
type Persister interface {
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, state domain.State) error
}

// StatsObserver is told about every change to the aggregate counters.
// It is called after the store lock is released, in registration order.
type StatsObserver interface {
	StatsChanged(ctx context.Context, prev, next domain.UserStats)
}

// StatsObserverFunc adapts a function to StatsObserver.
type StatsObserverFunc func(ctx context.Context, prev, next domain.UserStats)

// StatsChanged implements StatsObserver.
func (f StatsObserverFunc) StatsChanged(ctx context.Context, prev, next domain.UserStats) {
	f(ctx, prev, next)
}

// Options configure a Store. Zero values pick sensible defaults.
type Options struct {
	Rules   stats.Rules
	Emitter store.EventEmitter
	Logger  *slog.Logger
	Clock   func() time.Time
	NewID   func() (string, error)
}

// Store holds the application state.
type Store struct {
	mu    sync.Mutex
	state domain.State

	persister Persister
	rules     stats.Rules
	emitter   store.EventEmitter
	logger    *slog.Logger
	now       func() time.Time
	newID     func() (string, error)

	obsMu     sync.RWMutex
	observers []StatsObserver
}

// New loads the persisted state and returns a ready Store.
func New(ctx context.Context, p Persister, opts Options) (*Store, error) {
	state, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress state: %w", err)
	}
	state.Normalize()

	s := &Store{
		state:     state,
		persister: p,
		rules:     opts.Rules,
		emitter:   opts.Emitter,
		logger:    opts.Logger,
		now:       opts.Clock,
		newID:     opts.NewID,
	}
	if s.rules.CompletionRatio == 0 {
		s.rules = stats.DefaultRules
	}
	if s.emitter == nil {
		s.emitter = store.NewNoopEmitter()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newPlaylistID
	}

	s.logger.Info("progress store ready",
		"playlists", len(state.Playlists),
		"tracked_videos", len(state.VideoProgress),
		"completed_videos", state.UserStats.CompletedVideos,
	)
	return s, nil
}

// Observe registers o for stats changes.
func (s *Store) Observe(o StatsObserver) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// persistLocked saves the current state. Failures are logged and swallowed:
// the in-memory state stays authoritative and the next mutation retries.
// Caller must hold s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.persister.Save(ctx, s.state); err != nil {
		s.logger.Error("failed to persist state", "error", err)
	}
}

func (s *Store) notifyStats(ctx context.Context, prev, next domain.UserStats) {
	if prev == next {
		return
	}
	s.emitter.Emit(sse.NewStatsUpdatedEvent(prev, next))

	s.obsMu.RLock()
	observers := append([]StatsObserver(nil), s.observers...)
	s.obsMu.RUnlock()

	for _, o := range observers {
		o.StatsChanged(ctx, prev, next)
	}
}
