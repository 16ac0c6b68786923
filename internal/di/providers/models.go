package providers

import (
	"context"
	"errors"
	"time"

	"github.com/samber/do/v2"

	"github.com/d1vanov/quentier-sub007/internal/config"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/runloop"
	"github.com/d1vanov/quentier-sub007/internal/sse"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

// shutdownTimeout bounds how long each service may take to stop.
const shutdownTimeout = 30 * time.Second

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

func accountFromConfig(cfg *config.Config) domain.Account {
	return domain.Account{
		Name: cfg.Account.Name,
		Type: domain.AccountType(cfg.Account.Type),
	}
}

// ProvideTagModel provides the tag tree model. It is started by the run loop.
func ProvideTagModel(i do.Injector) (*tagmodel.Model, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	mgr := do.MustInvoke[*ManagerHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	rec := do.MustInvoke[*MetricsHandle](i)

	cache, err := entitycache.New[domain.Tag](string(domain.KindTag), cfg.Model.CacheCapacity, rec.Prometheus)
	if err != nil {
		return nil, err
	}

	return tagmodel.New(tagmodel.Options{
		Backend:                mgr.Tags(),
		LinkedNotebooks:        mgr.LinkedNotebooks(),
		Restrictions:           mgr.Restrictions(),
		Cache:                  cache,
		Account:                accountFromConfig(cfg),
		Emitter:                sseHandle.ModelEmitter(),
		Logger:                 log.Logger,
		Metrics:                rec.Prometheus,
		ListPageSize:           cfg.Model.ListPageSize,
		LinkedNotebookPageSize: cfg.Model.LinkedNotebookPageSize,
		MaxResyncAttempts:      cfg.Model.MaxResyncAttempts,
		Locale:                 cfg.Model.Locale,
	})
}

// ProvideNotebookModel provides the notebook tree model. It is started by the run loop.
func ProvideNotebookModel(i do.Injector) (*notebookmodel.Model, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	mgr := do.MustInvoke[*ManagerHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	rec := do.MustInvoke[*MetricsHandle](i)

	cache, err := entitycache.New[domain.Notebook](string(domain.KindNotebook), cfg.Model.CacheCapacity, rec.Prometheus)
	if err != nil {
		return nil, err
	}

	return notebookmodel.New(notebookmodel.Options{
		Backend:                mgr.Notebooks(),
		LinkedNotebooks:        mgr.LinkedNotebooks(),
		Restrictions:           mgr.Restrictions(),
		Cache:                  cache,
		Account:                accountFromConfig(cfg),
		Emitter:                sseHandle.ModelEmitter(),
		Logger:                 log.Logger,
		Metrics:                rec.Prometheus,
		ListPageSize:           cfg.Model.ListPageSize,
		LinkedNotebookPageSize: cfg.Model.LinkedNotebookPageSize,
		MaxResyncAttempts:      cfg.Model.MaxResyncAttempts,
		Locale:                 cfg.Model.Locale,
	})
}

// RunLoopHandle runs the loop owning both models in the background.
type RunLoopHandle struct {
	*runloop.Loop
	cancel context.CancelFunc
	done   chan error
}

// Shutdown implements do.Shutdownable.
func (h *RunLoopHandle) Shutdown() error {
	h.cancel()
	select {
	case err := <-h.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-time.After(shutdownTimeout):
		return errors.New("run loop did not stop in time")
	}
}

// ProvideRunLoop starts the run loop, which starts listing in both models.
func ProvideRunLoop(i do.Injector) (*RunLoopHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	mgr := do.MustInvoke[*ManagerHandle](i)
	tags := do.MustInvoke[*tagmodel.Model](i)
	notebooks := do.MustInvoke[*notebookmodel.Model](i)

	loop := runloop.New(mgr.Manager, log.Logger, tags, notebooks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx, func() {
			tags.Start()
			notebooks.Start()
		})
	}()

	log.Info("Run loop started")

	return &RunLoopHandle{Loop: loop, cancel: cancel, done: done}, nil
}
