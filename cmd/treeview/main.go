// Command treeview serves the tag and notebook trees of one account over HTTP,
// streaming model notifications to clients as server-sent events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/d1vanov/quentier-sub007/internal/di"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "treeview: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	injector := di.NewContainer(args)

	if err := di.Bootstrap(injector); err != nil {
		_ = di.Shutdown(injector)
		return fmt.Errorf("bootstrap: %w", err)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	log.Info("Shutting down gracefully...")

	// Dependents go first: the HTTP server, then the run loop, storage last.
	if err := di.Shutdown(injector); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
