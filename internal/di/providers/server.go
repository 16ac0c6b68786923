package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/d1vanov/quentier-sub007/internal/api"
	"github.com/d1vanov/quentier-sub007/internal/config"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/ratelimit"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

// RateLimiterHandle wraps the per-client limiter with Shutdownable.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.KeyedRateLimiter != nil {
		h.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the limiter for mutating requests. A
// non-positive rate disables limiting.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	perMinute := cfg.Server.RateLimit
	if perMinute <= 0 {
		return &RateLimiterHandle{}, nil
	}
	burst := max(perMinute/6, 1)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(float64(perMinute)/60, burst),
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	events *SSEManagerHandle
}

// Shutdown implements do.Shutdownable. Event streams never finish on their
// own, so they are closed before waiting for connections to go idle.
func (h *HTTPServerHandle) Shutdown() error {
	if err := h.events.Shutdown(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	loopHandle := do.MustInvoke[*RunLoopHandle](i)
	mgr := do.MustInvoke[*ManagerHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	metricsHandle := do.MustInvoke[*MetricsHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)

	handler := api.NewServer(api.Config{
		Loop:           loopHandle.Loop,
		Tags:           do.MustInvoke[*tagmodel.Model](i),
		Notebooks:      do.MustInvoke[*notebookmodel.Model](i),
		Storage:        mgr.Manager,
		SSE:            sseHandle.Manager,
		Gatherer:       metricsHandle.Registry,
		Limiter:        limiterHandle.KeyedRateLimiter,
		AllowedOrigins: cfg.Server.CORSOrigins,
		Logger:         log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, events: sseHandle}, nil
}
