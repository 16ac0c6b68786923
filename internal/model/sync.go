package model

import (
	"github.com/d1vanov/quentier-sub007/internal/backend"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/id"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/tree"
)

// requestAdd sends a newly created item to the backend.
func (m *Model[E]) requestAdd(it itemstore.Item) {
	var zero E
	entity := m.kind.Merge(zero, it)
	m.cache.Put(it.LocalID, entity)

	requestID := id.NewRequestID()
	m.pending.add[requestID] = it.LocalID
	m.pending.created[it.LocalID] = struct{}{}
	m.logger.Debug("requesting add", "request_id", requestID, "local_id", it.LocalID)
	m.reportPending()
	m.backend.Add(requestID, entity)
}

// scheduleUpdate sends the current state of an item to the backend. Items whose
// add is still in flight get their update once it completes. Items missing
// from the entity cache are found first.
func (m *Model[E]) scheduleUpdate(localID string) {
	it, ok := m.items.Find(localID)
	if !ok {
		return
	}
	if _, creating := m.pending.created[localID]; creating {
		m.pending.editedWhileCreating[localID] = struct{}{}
		return
	}

	base, ok := m.cache.Get(localID)
	if !ok {
		if hasLocalID(m.pending.findForUpdate, localID) {
			return
		}
		requestID := id.NewRequestID()
		m.pending.findForUpdate[requestID] = localID
		m.logger.Debug("entity not cached, finding before update", "request_id", requestID, "local_id", localID)
		m.reportPending()
		m.backend.Find(requestID, localID)
		return
	}

	entity := m.kind.Merge(base, it)
	m.cache.Put(localID, entity)

	requestID := id.NewRequestID()
	m.pending.update[requestID] = localID
	m.logger.Debug("requesting update", "request_id", requestID, "local_id", localID)
	m.reportPending()
	m.backend.Update(requestID, entity)
}

// requestExpunge asks the backend to expunge an item.
func (m *Model[E]) requestExpunge(localID string) {
	requestID := id.NewRequestID()
	m.pending.expunge[requestID] = localID
	m.logger.Debug("requesting expunge", "request_id", requestID, "local_id", localID)
	m.reportPending()
	m.backend.Expunge(requestID, localID)
}

// requestResync finds an item to overwrite it with the backend copy.
func (m *Model[E]) requestResync(localID string) {
	requestID := id.NewRequestID()
	m.pending.findAfterFailure[requestID] = localID
	m.pending.resyncAttempts[localID]++
	m.logger.Debug("requesting resync", "request_id", requestID, "local_id", localID,
		"attempt", m.pending.resyncAttempts[localID])
	m.reportPending()
	m.backend.Find(requestID, localID)
}

// requestNoteCount asks for the number of notes of one item.
func (m *Model[E]) requestNoteCount(localID string) {
	requestID := id.NewRequestID()
	m.pending.noteCount[requestID] = localID
	m.reportPending()
	m.backend.NoteCount(requestID, localID)
}

// HandleEvent consumes a backend result. It returns false for values that are
// not meant for this model.
func (m *Model[E]) HandleEvent(ev any) bool {
	switch e := ev.(type) {
	case *backend.Event[E]:
		m.handleEntityEvent(e)
		m.reportPending()
		return true
	case *backend.LinkedNotebooksEvent:
		return m.onLinkedNotebooksPage(e)
	case *backend.RestrictionsEvent:
		if !m.oracle.HandleEvent(e) {
			return false
		}
		if e.Err == nil {
			if n, ok := m.nodeOfGroup(tree.LinkedNotebookGroup(e.LinkedNotebookGUID)); ok {
				m.dataChanged(n)
			}
		}
		return true
	case *backend.LinkedNotebookChanged:
		m.onLinkedNotebookChanged(e)
		return true
	}
	return false
}

func (m *Model[E]) handleEntityEvent(e *backend.Event[E]) {
	switch e.Op {
	case backend.OpList:
		m.onListPage(e)
	case backend.OpAdd:
		m.onAdd(e)
	case backend.OpUpdate:
		m.onUpdate(e)
	case backend.OpFind:
		m.onFind(e)
	case backend.OpExpunge:
		m.onExpunge(e)
	case backend.OpNoteCount:
		m.onNoteCount(e)
	case backend.OpNoteCounts:
		m.onNoteCounts(e)
	}
}

func (m *Model[E]) observe(op backend.Op, err error) {
	m.metrics.ObserveRequest(string(m.kind.EntityKind()), string(op), err == nil)
}

func (m *Model[E]) onAdd(e *backend.Event[E]) {
	localID, ours := take(m.pending.add, e.RequestID)
	if !ours {
		if !e.Failed() {
			m.logger.Debug("external add", "request_id", e.RequestID, "local_id", m.kind.LocalID(e.Entity))
			m.addOrUpdate(e.Entity, true)
		}
		return
	}
	m.observe(backend.OpAdd, e.Err)
	delete(m.pending.created, localID)
	_, edited := m.pending.editedWhileCreating[localID]
	delete(m.pending.editedWhileCreating, localID)

	if e.Failed() {
		m.cache.Remove(localID)
		m.rollbackCreate(localID)
		_ = m.fail(domainerrors.Backend("failed to add "+string(m.kind.EntityKind()), e.Err))
		return
	}

	if !m.items.Contains(localID) {
		// Removed while the add was in flight; its expunge follows.
		return
	}
	m.cache.Put(localID, e.Entity)
	if edited {
		m.scheduleUpdate(localID)
		return
	}
	m.addOrUpdate(e.Entity, false)
}

// rollbackCreate removes an item whose add failed. Its children are re-homed
// the same way Remove does, without any expunge.
func (m *Model[E]) rollbackCreate(localID string) {
	n, ok := m.nodeOfEntity(localID)
	if !ok {
		m.items.Erase(localID)
		return
	}
	if err := m.removeEntity(n, false); err != nil {
		m.logger.Error("failed to roll back create", "local_id", localID, "error", err)
	}
}

func (m *Model[E]) onUpdate(e *backend.Event[E]) {
	localID, ours := take(m.pending.update, e.RequestID)
	if !ours {
		if !e.Failed() {
			m.logger.Debug("external update", "request_id", e.RequestID, "local_id", m.kind.LocalID(e.Entity))
			m.addOrUpdate(e.Entity, true)
		}
		return
	}
	m.observe(backend.OpUpdate, e.Err)

	if e.Failed() {
		m.cache.Remove(localID)
		_ = m.fail(domainerrors.Backend("failed to update "+string(m.kind.EntityKind()), e.Err))
		if m.items.Contains(localID) {
			delete(m.pending.resyncAttempts, localID)
			m.requestResync(localID)
		}
		return
	}

	delete(m.pending.resyncAttempts, localID)
	if !m.items.Contains(localID) {
		m.logger.Debug("dropping update result of removed item", "local_id", localID)
		return
	}
	m.cache.Put(localID, e.Entity)
}

func (m *Model[E]) onFind(e *backend.Event[E]) {
	if localID, ok := take(m.pending.findForUpdate, e.RequestID); ok {
		m.observe(backend.OpFind, e.Err)
		if e.Failed() {
			_ = m.fail(domainerrors.Backend("failed to find "+string(m.kind.EntityKind())+" to update", e.Err))
			return
		}
		if !m.items.Contains(localID) {
			m.logger.Debug("dropping find result of removed item", "local_id", localID)
			return
		}
		m.cache.Put(localID, e.Entity)
		m.scheduleUpdate(localID)
		return
	}

	if localID, ok := take(m.pending.findAfterFailure, e.RequestID); ok {
		m.observe(backend.OpFind, e.Err)
		if e.Failed() {
			m.onResyncFailed(localID, e.Err)
			return
		}
		delete(m.pending.resyncAttempts, localID)
		if !m.items.Contains(localID) {
			m.logger.Debug("dropping resync result of removed item", "local_id", localID)
			return
		}
		m.cache.Put(localID, e.Entity)
		m.addOrUpdate(e.Entity, false)
		return
	}

	if localID, ok := take(m.pending.restore, e.RequestID); ok {
		m.observe(backend.OpFind, e.Err)
		if e.Failed() {
			m.logger.Warn("item of failed expunge is gone", "local_id", localID, "error", e.Err)
			return
		}
		m.cache.Put(localID, e.Entity)
		m.addOrUpdate(e.Entity, true)
		return
	}

	m.logger.Debug("ignoring unknown find result", "request_id", e.RequestID)
}

// onResyncFailed retries the find until the attempts run out, then marks the
// item stale. A later authoritative copy clears the mark.
func (m *Model[E]) onResyncFailed(localID string, cause error) {
	if !m.items.Contains(localID) {
		delete(m.pending.resyncAttempts, localID)
		return
	}
	if m.pending.resyncAttempts[localID] < m.maxResyncAttempts {
		m.requestResync(localID)
		return
	}
	delete(m.pending.resyncAttempts, localID)

	it, err := m.items.Update(localID, func(it *itemstore.Item) { it.Stale = true })
	if err != nil {
		m.logger.Error("failed to mark item stale", "local_id", localID, "error", err)
		return
	}
	m.metrics.ObserveStale(string(m.kind.EntityKind()))
	if n, ok := m.nodeOfEntity(localID); ok {
		m.dataChanged(n)
	}
	_ = m.fail(domainerrors.Backend("giving up resynchronizing "+string(m.kind.EntityKind())+" "+it.Name, cause))
}

func (m *Model[E]) onExpunge(e *backend.Event[E]) {
	localID, ours := take(m.pending.expunge, e.RequestID)
	if !ours {
		if !e.Failed() {
			m.logger.Debug("external expunge", "request_id", e.RequestID, "local_id", e.LocalID)
			m.expungeExternally(e.LocalID, e.ExpungedChildren)
		}
		return
	}
	m.observe(backend.OpExpunge, e.Err)

	if e.Failed() {
		_ = m.fail(domainerrors.Backend("failed to expunge "+string(m.kind.EntityKind()), e.Err))
		requestID := id.NewRequestID()
		m.pending.restore[requestID] = localID
		m.backend.Find(requestID, localID)
		return
	}

	m.cache.Remove(localID)
	for _, child := range e.ExpungedChildren {
		m.expungeExternally(child, nil)
	}
}

// expungeExternally drops an item expunged behind the model's back together
// with its cascaded children and every descendant.
func (m *Model[E]) expungeExternally(localID string, children []string) {
	for _, lid := range append([]string{localID}, children...) {
		m.cache.Remove(lid)
		n, ok := m.nodeOfEntity(lid)
		if !ok {
			m.items.Erase(lid)
			continue
		}
		parent := m.tree.Parent(n)
		m.emit(Event{Type: EventAboutToRemoveItems, LocalIDs: []string{lid}})
		removed := m.removeSubtree(n)
		for _, r := range removed {
			m.items.Erase(r)
		}
		m.emit(Event{Type: EventRemovedItems, LocalIDs: removed})
		m.pruneGroups(parent)
	}
}

// addOrUpdate reconciles a backend entity with the tree: unknown local ids are
// inserted, known ones replaced in place and moved if their parent changed.
// Note counts known locally survive the replacement.
func (m *Model[E]) addOrUpdate(entity E, fetchNoteCount bool) {
	it := m.kind.ToItem(entity)
	if it.LocalID == "" {
		m.logger.Warn("ignoring entity without local id")
		return
	}
	if it.LinkedNotebookGUID != "" {
		m.oracle.Request(it.LinkedNotebookGUID)
	}

	current, exists := m.items.Find(it.LocalID)
	if !exists {
		m.emit(Event{Type: EventAboutToAddItem, LocalIDs: []string{it.LocalID}})
		if err := m.items.Insert(it); err != nil {
			m.logger.Error("failed to store item", "local_id", it.LocalID, "error", err)
			return
		}
		n, err := m.attachItem(it)
		if err != nil {
			m.items.Erase(it.LocalID)
			m.logger.Error("failed to attach item", "local_id", it.LocalID, "error", err)
			return
		}
		m.adoptOrphans(n, it.LocalID)
		m.emit(Event{Type: EventAddedItem, LocalIDs: []string{it.LocalID}})
		if fetchNoteCount {
			m.requestNoteCount(it.LocalID)
		}
		return
	}

	it.NoteCount = current.NoteCount
	n, ok := m.nodeOfEntity(it.LocalID)
	if !ok {
		m.logger.Error("item has no node", "local_id", it.LocalID)
		return
	}

	m.emit(Event{Type: EventAboutToUpdateItem, LocalIDs: []string{it.LocalID}})
	if err := m.items.Replace(it.LocalID, it); err != nil {
		m.logger.Error("failed to replace item", "local_id", it.LocalID, "error", err)
		return
	}

	oldParent := m.tree.Parent(n)
	newParent, err := m.parentNodeFor(it)
	if err != nil {
		m.logger.Error("failed to resolve parent", "local_id", it.LocalID, "error", err)
	} else if newParent != oldParent {
		if err := m.moveNode(n, newParent); err != nil {
			m.logger.Error("failed to move item", "local_id", it.LocalID, "error", err)
		}
		m.pruneGroups(oldParent)
	} else if current.Name != it.Name {
		if err := m.reposition(n); err != nil {
			m.logger.Error("failed to reposition item", "local_id", it.LocalID, "error", err)
		}
	}
	m.dataChanged(n)
	m.emit(Event{Type: EventUpdatedItem, LocalIDs: []string{it.LocalID}})
}

func (m *Model[E]) onNoteCount(e *backend.Event[E]) {
	localID, ours := take(m.pending.noteCount, e.RequestID)
	if !ours {
		// Counts pushed after notes changed behind the model's back.
		if !e.Failed() && e.LocalID != "" {
			m.setNoteCount(e.LocalID, e.NoteCount)
		}
		return
	}
	m.observe(backend.OpNoteCount, e.Err)
	if e.Failed() {
		m.logger.Warn("failed to count notes", "local_id", localID, "error", e.Err)
		return
	}
	m.setNoteCount(localID, e.NoteCount)
}

func (m *Model[E]) onNoteCounts(e *backend.Event[E]) {
	if _, ours := m.pending.noteCounts[e.RequestID]; !ours {
		return
	}
	delete(m.pending.noteCounts, e.RequestID)
	m.observe(backend.OpNoteCounts, e.Err)
	if e.Failed() {
		m.logger.Warn("failed to count notes", "error", e.Err)
		return
	}
	for localID, count := range e.NoteCounts {
		m.setNoteCount(localID, count)
	}
}

func (m *Model[E]) setNoteCount(localID string, count int) {
	current, ok := m.items.Find(localID)
	if !ok || current.NoteCount == count {
		return
	}
	if _, err := m.items.Update(localID, func(it *itemstore.Item) { it.NoteCount = count }); err != nil {
		return
	}
	if n, ok := m.nodeOfEntity(localID); ok {
		col := m.ColumnIndex(ColumnNoteCount)
		if col < 0 {
			return
		}
		m.emit(Event{Type: EventDataChanged, TopLeft: m.indexOf(n, col), BottomRight: m.indexOf(n, col)})
	}
}
