// Package di provides dependency injection configuration for the tree view server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/d1vanov/quentier-sub007/internal/config"
	"github.com/d1vanov/quentier-sub007/internal/di/providers"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ConfigProvider(args))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideStorage)
	do.Provide(injector, providers.ProvideManager)

	// Models
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideTagModel)
	do.Provide(injector, providers.ProvideNotebookModel)
	do.Provide(injector, providers.ProvideRunLoop)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.MetricsHandle](injector)

	if _, err := do.Invoke[*providers.StorageHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.ManagerHandle](injector)

	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	if _, err := do.Invoke[*tagmodel.Model](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*notebookmodel.Model](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.RunLoopHandle](injector)

	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}

// Shutdown stops every service, dependents before their dependencies, and
// reports the failures.
func Shutdown(injector *do.RootScope) error {
	return reportError(injector.Shutdown())
}

// reportError turns a shutdown report into an error, nil when it records no
// failure.
func reportError[R interface {
	comparable
	error
}](report R) error {
	var none R
	if report == none || report.Error() == "" {
		return nil
	}
	return report
}
