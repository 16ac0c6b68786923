package sse

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/d1vanov/quentier-sub007/internal/id"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/model"
)

// Defaults for a Manager.
const (
	DefaultBuffer       = 1000
	DefaultClientBuffer = 100
	DefaultHeartbeat    = 30 * time.Second
)

// Client represents a connected SSE client.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	// Kind limits delivery to the notifications of one entity kind.
	// Empty string means "receive all".
	Kind string

	// Set once an event could not be delivered. The next delivery is a
	// resync event, since row based notifications no longer line up.
	lagging atomic.Bool
}

func (c *Client) follows(kind string) bool {
	return kind == "" || c.Kind == "" || kind == c.Kind
}

// Option configures a Manager.
type Option func(*Manager)

// WithHeartbeat sets the keepalive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(m *Manager) { m.heartbeat = d }
}

// WithClientBuffer sets how many events a client may fall behind before
// events get dropped for it.
func WithClientBuffer(n int) Option {
	return func(m *Manager) { m.clientBuffer = n }
}

// Manager fans model notifications out to connected clients.
type Manager struct {
	logger       *slog.Logger
	events       chan Event
	stop         chan struct{}
	heartbeat    time.Duration
	clientBuffer int

	mu      sync.RWMutex
	clients map[string]*Client

	seq     atomic.Uint64
	closed  atomic.Bool
	running sync.WaitGroup
}

// NewManager creates a manager. Call Start to begin broadcasting.
func NewManager(log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger:       logger.Component(log, "sse"),
		events:       make(chan Event, DefaultBuffer),
		stop:         make(chan struct{}),
		heartbeat:    DefaultHeartbeat,
		clientBuffer: DefaultClientBuffer,
		clients:      make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start broadcasts queued events until ctx ends or Shutdown is called. Run it
// in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.running.Add(1)
	defer m.running.Done()

	m.logger.Info("SSE manager starting")

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev := <-m.events:
			m.broadcast(ev)
		case <-ticker.C:
			m.broadcast(NewHeartbeatEvent())
		case <-m.stop:
			m.drain()
			return
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and closes every
// client. Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.logger.Info("SSE manager shutdown initiated")
	close(m.stop)

	stopped := make(chan struct{})
	go func() {
		m.running.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		// Start never ran, or ran and drained: deliver whatever is left.
		m.drain()
	case <-ctx.Done():
		m.logger.Warn("SSE event drain timeout, some events may be lost")
	}

	m.closeAllClients()
	m.logger.Info("SSE manager shutdown complete")
	return nil
}

func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events:
			m.broadcast(ev)
		default:
			return
		}
	}
}

// broadcast delivers ev to every client following its kind without blocking.
func (m *Manager) broadcast(ev Event) {
	if ev.Type != EventHeartbeat {
		ev.ID = m.seq.Add(1)
	}

	var delivered, dropped int
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		if !c.follows(ev.Kind) {
			continue
		}
		if c.lagging.Load() {
			if !m.offer(c, NewResyncEvent(c.Kind)) {
				dropped++
				continue
			}
			c.lagging.Store(false)
		}
		if m.offer(c, ev) {
			delivered++
			continue
		}
		dropped++
		if !c.lagging.Swap(true) {
			m.logger.Warn("client fell behind, dropping events until it catches up",
				"client_id", c.ID, "event_type", string(ev.Type))
		}
	}

	if ev.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			"event_type", string(ev.Type), "event_id", ev.ID,
			"delivered", delivered, "dropped", dropped)
	}
}

func (m *Manager) offer(c *Client, ev Event) bool {
	select {
	case c.EventChan <- ev:
		return true
	default:
		return false
	}
}

// Connect registers a new SSE client following the given entity kind, or
// every kind when kind is empty.
func (m *Manager) Connect(kind string) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	c := &Client{
		ID:          clientID,
		Kind:        kind,
		EventChan:   make(chan Event, m.clientBuffer),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[c.ID] = c
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected", "client_id", clientID, "kind", kind, "total_clients", total)
	return c, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	total := len(m.clients)
	m.mu.Unlock()
	if !ok {
		return
	}

	close(c.Done)
	close(c.EventChan)

	m.logger.Info("SSE client disconnected",
		"client_id", clientID,
		"duration", time.Since(c.ConnectedAt),
		"total_clients", total)
}

// Emit queues an event for broadcasting. It never blocks, so the run loop
// may call it.
func (m *Manager) Emit(ev Event) {
	if m.closed.Load() {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Error("SSE event queue full, dropping event", "event_type", string(ev.Type))
		m.markAllLagging(ev.Kind)
	}
}

// markAllLagging makes every client following kind resync on its next event.
func (m *Manager) markAllLagging(kind string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.follows(kind) {
			c.lagging.Store(true)
		}
	}
}

// ModelEmitter returns a model.Emitter broadcasting every notification of a model.
func (m *Manager) ModelEmitter() model.Emitter {
	return model.EmitterFunc(func(e model.Event) {
		m.Emit(NewModelEvent(e))
	})
}

// Clients returns an iterator over all connected clients.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, c := range m.clients {
			if !yield(c) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		close(c.Done)
		close(c.EventChan)
	}
	clear(m.clients)

	m.logger.Info("all SSE clients disconnected")
}
