package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/d1vanov/quentier-sub007/internal/http/response"
	"github.com/d1vanov/quentier-sub007/internal/runloop"
)

// healthTimeout bounds how long the run loop may take to answer.
const healthTimeout = 2 * time.Second

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components := map[string]ComponentHealth{
		"models": s.checkModels(r.Context()),
		"sse":    s.checkSSEManager(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, HealthResponse{Status: overall, Components: components}, s.logger)
}

// checkModels verifies the run loop answers and the models finished listing.
func (s *Server) checkModels(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	listed, err := runloop.Query(ctx, s.loop, func() (bool, error) {
		return s.tags.AllItemsListed() && s.notebooks.AllItemsListed(), nil
	})
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "run loop not responding",
		}
	}
	if !listed {
		return ComponentHealth{
			Status:  "degraded",
			Latency: latency.String(),
			Message: "listing in progress",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkSSEManager reports the event stream state.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "SSE manager not configured",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: formatSSEStatus(s.sseManager.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return fmt.Sprintf("%d connected clients", count)
	}
}
