package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/errors"
)

// SaveObserver is told about every save attempt. Metrics implement it.
type SaveObserver interface {
	ObserveSave(backend string, took time.Duration, size int, err error)
	ObserveRecovery(backend string)
}

type backendNamer interface{ Backend() string }

// StateStore loads and saves the application state blob through a KV.
type StateStore struct {
	kv       KV
	key      string
	logger   *slog.Logger
	observer SaveObserver
	now      func() time.Time
}

// StateOption configures a StateStore.
type StateOption func(*StateStore)

// WithKey overrides the key the blob lives under.
func WithKey(key string) StateOption {
	return func(s *StateStore) { s.key = key }
}

// WithSaveObserver attaches an observer for save timings and recoveries.
func WithSaveObserver(o SaveObserver) StateOption {
	return func(s *StateStore) { s.observer = o }
}

// WithClock overrides the time source used for recovery key suffixes.
func WithClock(now func() time.Time) StateOption {
	return func(s *StateStore) { s.now = now }
}

// NewStateStore wraps kv.
func NewStateStore(kv KV, logger *slog.Logger, opts ...StateOption) *StateStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &StateStore{kv: kv, key: domain.StateKey, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the key the blob is stored under.
func (s *StateStore) Key() string { return s.key }

// Load returns the persisted state.
//
// A missing blob yields the default state. A blob that cannot be decoded
// is copied aside under "<key>.corrupt.<unix>" and the default state is
// returned, so a damaged file never prevents startup.
func (s *StateStore) Load(ctx context.Context) (domain.State, error) {
	data, err := s.kv.Get(ctx, s.key)
	if IsNotFound(err) {
		s.logger.Info("no saved state, starting fresh", "key", s.key)
		return domain.DefaultState(), nil
	}
	if err != nil {
		return domain.State{}, fmt.Errorf("load state: %w", err)
	}

	state, decodeErr := domain.DecodeState(data)
	if decodeErr == nil {
		return state, nil
	}

	aside := fmt.Sprintf("%s.corrupt.%d", s.key, s.now().Unix())
	if err := s.kv.Put(ctx, aside, data); err != nil {
		return domain.State{}, errors.ErrCorruptState.WithCause(fmt.Errorf("preserve corrupted blob: %w", err))
	}
	s.logger.Warn("saved state is corrupted, starting from defaults",
		"key", s.key,
		"preserved_as", aside,
		"error", decodeErr,
	)
	if s.observer != nil {
		s.observer.ObserveRecovery(s.backend())
	}
	return domain.DefaultState(), nil
}

// Save overwrites the persisted blob with state.
func (s *StateStore) Save(ctx context.Context, state domain.State) error {
	start := time.Now()
	data, err := domain.EncodeState(state)
	if err == nil {
		err = s.kv.Put(ctx, s.key, data)
	}
	if s.observer != nil {
		s.observer.ObserveSave(s.backend(), time.Since(start), len(data), err)
	}
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Raw returns the stored blob without decoding it.
func (s *StateStore) Raw(ctx context.Context) ([]byte, error) {
	return s.kv.Get(ctx, s.key)
}

// CorruptCopies lists keys of blobs preserved by Load.
func (s *StateStore) CorruptCopies(ctx context.Context) ([]string, error) {
	return s.kv.Keys(ctx, s.key+".corrupt.")
}

func (s *StateStore) backend() string {
	if n, ok := s.kv.(backendNamer); ok {
		return n.Backend()
	}
	return "unknown"
}
