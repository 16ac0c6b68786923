// Package providers contains dependency injection providers for the tree view server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/d1vanov/quentier-sub007/internal/config"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

// ConfigProvider returns a provider loading the configuration from args.
func ConfigProvider(args []string) func(do.Injector) (*config.Config, error) {
	return func(do.Injector) (*config.Config, error) {
		return config.LoadConfig(args)
	}
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting tree view server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"account", cfg.Account.Name,
		"account_type", cfg.Account.Type,
		"storage_driver", cfg.Storage.Driver,
		"storage_path", cfg.Storage.Path,
		"in_memory", cfg.Storage.InMemory,
	)

	return log, nil
}
