package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/coursetrack/coursetrack/internal/config"
	"github.com/coursetrack/coursetrack/internal/logger"
	"github.com/coursetrack/coursetrack/internal/metrics"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/store"
	"github.com/coursetrack/coursetrack/internal/store/sqlite"
)

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	manager := sse.NewManager(log.Component("sse").Logger, sse.WithDeliveryObserver(m))

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle owns the key/value backend and the state blob on top of it.
type StoreHandle struct {
	KV    store.KV
	State *store.StateStore
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.KV.Close()
}

// ProvideStore opens the configured storage backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	storeLog := log.Component("store").Logger

	var (
		kv   store.KV
		path string
		err  error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		path = filepath.Join(cfg.Storage.Path, "coursetrack.db")
		kv, err = sqlite.Open(path, storeLog)
	default:
		path = filepath.Join(cfg.Storage.Path, "db")
		kv, err = store.New(path, storeLog)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Storage.Backend, "path", path)

	return &StoreHandle{
		KV:    kv,
		State: store.NewStateStore(kv, storeLog, store.WithSaveObserver(m)),
	}, nil
}
