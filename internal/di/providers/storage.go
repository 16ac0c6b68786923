package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"

	"github.com/d1vanov/quentier-sub007/internal/config"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
	"github.com/d1vanov/quentier-sub007/internal/localstorage/sqlite"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/metrics"
)

// MetricsHandle bundles the registry served on /metrics with the recorder
// writing to it.
type MetricsHandle struct {
	Registry *prometheus.Registry
	*metrics.Prometheus
}

// ProvideMetrics provides the Prometheus registry and recorder.
func ProvideMetrics(i do.Injector) (*MetricsHandle, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rec, err := metrics.NewPrometheus(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &MetricsHandle{Registry: reg, Prometheus: rec}, nil
}

// StorageHandle wraps the configured storage driver with shutdown capability.
type StorageHandle struct {
	localstorage.Storage
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *StorageHandle) Shutdown() error {
	return h.close()
}

// ProvideStorage opens the storage driver named by the configuration.
func ProvideStorage(i do.Injector) (*StorageHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		path := cfg.Storage.Path
		if cfg.Storage.InMemory {
			path = sqlite.MemoryPath
		} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		st, err := sqlite.Open(path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("SQLite storage opened", "path", path)
		return &StorageHandle{Storage: st, close: st.Close}, nil

	default:
		st, err := localstorage.OpenBadger(cfg.Storage.Path, cfg.Storage.InMemory, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Badger storage opened", "path", cfg.Storage.Path, "in_memory", cfg.Storage.InMemory)
		return &StorageHandle{Storage: st, close: st.Close}, nil
	}
}

// ManagerHandle wraps the local storage manager with shutdown capability.
type ManagerHandle struct {
	*localstorage.Manager
}

// Shutdown implements do.Shutdownable.
func (h *ManagerHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideManager provides the asynchronous local storage manager and starts
// its worker.
func ProvideManager(i do.Injector) (*ManagerHandle, error) {
	storageHandle := do.MustInvoke[*StorageHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	mgr := localstorage.NewManager(storageHandle.Storage, log.Logger)
	mgr.Start(context.Background())

	log.Info("Local storage manager started")

	return &ManagerHandle{Manager: mgr}, nil
}
