package localstorage

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/id"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

// DefaultEventBuffer is the capacity of the Events channel.
const DefaultEventBuffer = 256

// job runs one request against the storage and returns the results to publish.
type job func(ctx context.Context) []any

// Manager serves a Storage through the asynchronous backend contract.
//
// Requests never block the caller: they are queued and executed one at a time,
// in submission order, on the worker goroutine started by Start. Results are
// published on Events in the same order.
type Manager struct {
	storage Storage
	logger  *slog.Logger
	events  chan any

	mu     sync.Mutex
	queue  []job
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	tags      *entityBackend[domain.Tag]
	notebooks *entityBackend[domain.Notebook]
}

// NewManager creates a manager over storage. Call Start before expecting results.
func NewManager(storage Storage, log *slog.Logger) *Manager {
	m := &Manager{
		storage: storage,
		logger:  logger.Component(log, "local_storage"),
		events:  make(chan any, DefaultEventBuffer),
		wake:    make(chan struct{}, 1),
	}
	m.tags = &entityBackend[domain.Tag]{m: m, store: storage.Tags(), kind: TagAccessors.Kind}
	m.notebooks = &entityBackend[domain.Notebook]{m: m, store: storage.Notebooks(), kind: NotebookAccessors.Kind}
	return m
}

// Start launches the worker goroutine. It stops when ctx is cancelled or
// Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Stop terminates the worker and waits for it. Queued requests are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Events implements backend.Notifier.
func (m *Manager) Events() <-chan any {
	return m.events
}

// Tags returns the tag backend.
func (m *Manager) Tags() backend.Backend[domain.Tag] { return m.tags }

// Notebooks returns the notebook backend.
func (m *Manager) Notebooks() backend.Backend[domain.Notebook] { return m.notebooks }

// LinkedNotebooks returns the linked notebook listing backend.
func (m *Manager) LinkedNotebooks() backend.LinkedNotebooks { return linkedNotebooks{m} }

// Restrictions returns the linked notebook restrictions backend.
func (m *Manager) Restrictions() backend.RestrictionsFinder { return linkedNotebooks{m} }

func (m *Manager) enqueue(j job) {
	m.mu.Lock()
	m.queue = append(m.queue, j)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) next() (job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	j := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return j, true
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	m.logger.Debug("worker started")

	for {
		j, ok := m.next()
		if !ok {
			select {
			case <-m.wake:
				continue
			case <-ctx.Done():
				m.logger.Debug("worker stopped")
				return
			}
		}
		for _, ev := range j(ctx) {
			select {
			case m.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// PutLinkedNotebook stores a linked notebook received out of band and
// announces it to the models.
func (m *Manager) PutLinkedNotebook(ln domain.LinkedNotebook) {
	m.enqueue(func(ctx context.Context) []any {
		if err := m.storage.PutLinkedNotebook(ctx, ln); err != nil {
			m.logger.Error("failed to store linked notebook", "guid", ln.GUID, "error", err)
			return nil
		}
		return []any{&backend.LinkedNotebookChanged{RequestID: id.NewRequestID(), LinkedNotebook: ln}}
	})
}

// ExpungeLinkedNotebook removes a linked notebook with everything shared
// through it and announces the removal.
func (m *Manager) ExpungeLinkedNotebook(guid string) {
	m.enqueue(func(ctx context.Context) []any {
		if err := m.storage.ExpungeLinkedNotebook(ctx, guid); err != nil {
			m.logger.Error("failed to expunge linked notebook", "guid", guid, "error", err)
			return nil
		}
		return []any{&backend.LinkedNotebookChanged{
			RequestID:      id.NewRequestID(),
			LinkedNotebook: domain.LinkedNotebook{GUID: guid},
			Expunged:       true,
		}}
	})
}

// PutNote stores a note and publishes the note counts it changed.
func (m *Manager) PutNote(note domain.Note) {
	m.enqueue(func(ctx context.Context) []any {
		prev, err := m.storage.PutNote(ctx, note)
		if err != nil {
			m.logger.Error("failed to store note", "local_id", note.LocalID, "error", err)
			return nil
		}
		return m.noteCountChanges(ctx, prev, &note)
	})
}

// ExpungeNote removes a note and publishes the note counts it changed.
func (m *Manager) ExpungeNote(localID string) {
	m.enqueue(func(ctx context.Context) []any {
		removed, err := m.storage.ExpungeNote(ctx, localID)
		if err != nil {
			m.logger.Error("failed to expunge note", "local_id", localID, "error", err)
			return nil
		}
		return m.noteCountChanges(ctx, removed, nil)
	})
}

func (m *Manager) noteCountChanges(ctx context.Context, prev, next *domain.Note) []any {
	notebookIDs, tagIDs := affectedByNote(prev, next)
	out := make([]any, 0, len(notebookIDs)+len(tagIDs))
	for _, localID := range notebookIDs {
		if ev := m.notebooks.noteCountEvent(ctx, id.NewRequestID(), localID); !ev.Failed() {
			out = append(out, ev)
		}
	}
	for _, localID := range tagIDs {
		if ev := m.tags.noteCountEvent(ctx, id.NewRequestID(), localID); !ev.Failed() {
			out = append(out, ev)
		}
	}
	return out
}

// ExternalUpdateTag stores a tag changed outside of the models, such as by a
// sync, and announces it as an add or update.
func (m *Manager) ExternalUpdateTag(tag domain.Tag) { m.tags.external(tag) }

// ExternalExpungeTag removes a tag and its descendants outside of the models.
func (m *Manager) ExternalExpungeTag(localID string) { m.tags.externalExpunge(localID) }

// ExternalUpdateNotebook stores a notebook changed outside of the models.
func (m *Manager) ExternalUpdateNotebook(nb domain.Notebook) { m.notebooks.external(nb) }

// ExternalExpungeNotebook removes a notebook outside of the models.
func (m *Manager) ExternalExpungeNotebook(localID string) { m.notebooks.externalExpunge(localID) }

// entityBackend implements backend.Backend on top of an EntityStore.
type entityBackend[E any] struct {
	m     *Manager
	store EntityStore[E]
	kind  string
}

func (b *entityBackend[E]) List(requestID string, opts backend.ListOptions) {
	b.m.enqueue(func(ctx context.Context) []any {
		page, err := b.store.List(ctx, opts)
		return []any{&backend.Event[E]{Op: backend.OpList, RequestID: requestID, Page: page, Options: opts, Err: err}}
	})
}

func (b *entityBackend[E]) Add(requestID string, entity E) {
	b.m.enqueue(func(ctx context.Context) []any {
		err := b.store.Add(ctx, entity)
		return []any{&backend.Event[E]{Op: backend.OpAdd, RequestID: requestID, Entity: entity, Err: err}}
	})
}

func (b *entityBackend[E]) Update(requestID string, entity E) {
	b.m.enqueue(func(ctx context.Context) []any {
		err := b.store.Update(ctx, entity)
		return []any{&backend.Event[E]{Op: backend.OpUpdate, RequestID: requestID, Entity: entity, Err: err}}
	})
}

func (b *entityBackend[E]) Find(requestID, localID string) {
	b.m.enqueue(func(ctx context.Context) []any {
		entity, err := b.store.Find(ctx, localID)
		return []any{&backend.Event[E]{Op: backend.OpFind, RequestID: requestID, Entity: entity, LocalID: localID, Err: err}}
	})
}

func (b *entityBackend[E]) Expunge(requestID, localID string) {
	b.m.enqueue(func(ctx context.Context) []any {
		children, err := b.store.Expunge(ctx, localID)
		return []any{&backend.Event[E]{
			Op:               backend.OpExpunge,
			RequestID:        requestID,
			LocalID:          localID,
			ExpungedChildren: children,
			Err:              err,
		}}
	})
}

func (b *entityBackend[E]) NoteCount(requestID, localID string) {
	b.m.enqueue(func(ctx context.Context) []any {
		return []any{b.noteCountEvent(ctx, requestID, localID)}
	})
}

func (b *entityBackend[E]) NoteCounts(requestID string) {
	b.m.enqueue(func(ctx context.Context) []any {
		counts, err := b.store.NoteCounts(ctx)
		return []any{&backend.Event[E]{Op: backend.OpNoteCounts, RequestID: requestID, NoteCounts: counts, Err: err}}
	})
}

func (b *entityBackend[E]) noteCountEvent(ctx context.Context, requestID, localID string) *backend.Event[E] {
	n, err := b.store.NoteCount(ctx, localID)
	return &backend.Event[E]{Op: backend.OpNoteCount, RequestID: requestID, LocalID: localID, NoteCount: n, Err: err}
}

// external upserts an entity and publishes it under a fresh request id.
func (b *entityBackend[E]) external(entity E) {
	b.m.enqueue(func(ctx context.Context) []any {
		op := backend.OpUpdate
		err := b.store.Update(ctx, entity)
		if errors.Is(err, ErrNotFound) {
			op = backend.OpAdd
			err = b.store.Add(ctx, entity)
		}
		if err != nil {
			b.m.logger.Error("failed to store external change", "kind", b.kind, "error", err)
			return nil
		}
		return []any{&backend.Event[E]{Op: op, RequestID: id.NewRequestID(), Entity: entity}}
	})
}

func (b *entityBackend[E]) externalExpunge(localID string) {
	b.m.enqueue(func(ctx context.Context) []any {
		children, err := b.store.Expunge(ctx, localID)
		if err != nil {
			b.m.logger.Error("failed to expunge", "kind", b.kind, "local_id", localID, "error", err)
			return nil
		}
		return []any{&backend.Event[E]{
			Op:               backend.OpExpunge,
			RequestID:        id.NewRequestID(),
			LocalID:          localID,
			ExpungedChildren: children,
		}}
	})
}

// linkedNotebooks serves linked notebook listings and restrictions.
type linkedNotebooks struct {
	m *Manager
}

func (l linkedNotebooks) ListLinkedNotebooks(requestID string, opts backend.ListOptions) {
	l.m.enqueue(func(ctx context.Context) []any {
		page, err := l.m.storage.ListLinkedNotebooks(ctx, opts)
		return []any{&backend.LinkedNotebooksEvent{RequestID: requestID, Page: page, Options: opts, Err: err}}
	})
}

func (l linkedNotebooks) FindRestrictions(requestID, linkedNotebookGUID string) {
	l.m.enqueue(func(ctx context.Context) []any {
		r, err := l.m.storage.FindRestrictions(ctx, linkedNotebookGUID)
		return []any{&backend.RestrictionsEvent{
			RequestID:          requestID,
			LinkedNotebookGUID: linkedNotebookGUID,
			Restrictions:       r,
			Err:                err,
		}}
	})
}
