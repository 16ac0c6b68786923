package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

const (
	// writeTimeout drops connections that stopped reading.
	writeTimeout = 60 * time.Second
	// retryMillis is the reconnection delay suggested to clients.
	retryMillis = 3000
)

// Handler serves the event stream at GET /api/v1/events.
// The optional kind query parameter (tag or notebook) limits the stream to
// one model.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger.Component(log, "sse"),
	}
}

// ServeHTTP streams events until the client goes away or the manager closes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kind := r.URL.Query().Get("kind")
	switch domain.EntityKind(kind) {
	case "", domain.KindTag, domain.KindNotebook:
	default:
		http.Error(w, "kind must be tag or notebook", http.StatusBadRequest)
		return
	}

	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming not supported", "error", err)
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(kind)
	if err != nil {
		h.logger.Error("failed to register SSE client", "error", err)
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With("client_id", client.ID)

	hello := Event{
		Type:      EventConnected,
		Kind:      kind,
		Data:      map[string]string{"client_id": client.ID, "kind": kind},
		Timestamp: time.Now(),
	}
	if err := h.send(w, rc, hello, true); err != nil {
		log.Warn("failed to send initial connection message", "error", err)
		return
	}

	for {
		select {
		case ev, ok := <-client.EventChan:
			if !ok {
				log.Info("client closed by manager")
				return
			}
			if err := h.send(w, rc, ev, false); err != nil {
				log.Info("client disconnected during send")
				return
			}
		case <-client.Done:
			log.Info("client closed by manager")
			return
		case <-r.Context().Done():
			log.Info("client went away")
			return
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, ev Event, withRetry bool) error {
	frame, err := encodeFrame(ev, withRetry)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		h.logger.Debug("failed to set write deadline", "error", err)
	}
	return nil
}

// encodeFrame renders one event in the text/event-stream format:
//
//	retry: 3000
//	id: 42
//	event: tag.rows_inserted
//	data: {...}
func encodeFrame(ev Event, withRetry bool) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	var b bytes.Buffer
	if withRetry {
		b.WriteString("retry: " + strconv.Itoa(retryMillis) + "\n")
	}
	if ev.ID != 0 {
		b.WriteString("id: " + strconv.FormatUint(ev.ID, 10) + "\n")
	}
	b.WriteString("event: " + string(ev.Type) + "\n")
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")
	return b.Bytes(), nil
}
