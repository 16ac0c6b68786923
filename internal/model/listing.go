package model

import (
	"github.com/d1vanov/quentier-sub007/internal/backend"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/id"
	"github.com/d1vanov/quentier-sub007/internal/tree"
)

// Start requests the first pages of the entity and linked notebook listings.
// Later pages are requested as earlier ones arrive.
func (m *Model[E]) Start() {
	m.requestListPage(backend.ListOptions{
		Offset:    0,
		Limit:     m.listPageSize,
		Order:     backend.OrderName,
		Direction: backend.Ascending,
		Scope:     backend.ScopeAll,
	})
	if m.lnBackend != nil {
		m.requestLinkedNotebooksPage(backend.ListOptions{
			Offset:    0,
			Limit:     m.lnPageSize,
			Order:     backend.OrderName,
			Direction: backend.Ascending,
			Scope:     backend.ScopeAll,
		})
	} else {
		m.linkedNotebooksListed = true
	}
}

func (m *Model[E]) requestListPage(opts backend.ListOptions) {
	requestID := id.NewRequestID()
	m.pending.list[requestID] = opts
	m.logger.Debug("requesting list page", "request_id", requestID, "offset", opts.Offset, "limit", opts.Limit)
	m.reportPending()
	m.backend.List(requestID, opts)
}

func (m *Model[E]) requestLinkedNotebooksPage(opts backend.ListOptions) {
	requestID := id.NewRequestID()
	m.pending.lnList[requestID] = opts
	m.logger.Debug("requesting linked notebooks page", "request_id", requestID, "offset", opts.Offset)
	m.reportPending()
	m.lnBackend.ListLinkedNotebooks(requestID, opts)
}

// requestNoteCounts asks for the note counts of every item.
func (m *Model[E]) requestNoteCounts() {
	requestID := id.NewRequestID()
	m.pending.noteCounts[requestID] = struct{}{}
	m.reportPending()
	m.backend.NoteCounts(requestID)
}

func (m *Model[E]) onListPage(e *backend.Event[E]) {
	opts, ours := m.pending.list[e.RequestID]
	if !ours {
		return
	}
	delete(m.pending.list, e.RequestID)
	m.observe(backend.OpList, e.Err)

	if e.Failed() {
		_ = m.fail(domainerrors.Backend("failed to list "+string(m.kind.EntityKind())+"s", e.Err))
		return
	}

	for _, entity := range e.Page {
		m.cache.Put(m.kind.LocalID(entity), entity)
		m.addOrUpdate(entity, false)
	}

	if len(e.Page) >= opts.Limit && opts.Limit > 0 {
		m.requestListPage(opts.Next())
		return
	}

	m.allItemsListed = true
	m.logger.Debug("all items listed", "count", m.items.Len())
	m.emit(Event{Type: EventNotifyAllItemsListed})
	m.requestNoteCounts()
}

func (m *Model[E]) onLinkedNotebooksPage(e *backend.LinkedNotebooksEvent) bool {
	opts, ours := m.pending.lnList[e.RequestID]
	if !ours {
		return false
	}
	delete(m.pending.lnList, e.RequestID)
	m.reportPending()

	if e.Err != nil {
		_ = m.fail(domainerrors.Backend("failed to list linked notebooks", e.Err))
		return true
	}

	for _, ln := range e.Page {
		m.setLinkedNotebookOwner(ln.GUID, ln.Username)
	}

	if len(e.Page) >= opts.Limit && opts.Limit > 0 {
		m.requestLinkedNotebooksPage(opts.Next())
		return true
	}

	m.linkedNotebooksListed = true
	m.emit(Event{Type: EventNotifyLinkedNotebooksListed})
	return true
}

// setLinkedNotebookOwner records the name shown for a linked notebook group.
func (m *Model[E]) setLinkedNotebookOwner(guid, username string) {
	if m.lnOwners[guid] == username {
		return
	}
	m.lnOwners[guid] = username

	n, ok := m.nodeOfGroup(tree.LinkedNotebookGroup(guid))
	if !ok {
		return
	}
	if err := m.reposition(n); err != nil {
		m.logger.Error("failed to reposition linked notebook group", "guid", guid, "error", err)
	}
	m.dataChanged(n)
}

func (m *Model[E]) onLinkedNotebookChanged(e *backend.LinkedNotebookChanged) {
	guid := e.LinkedNotebook.GUID
	if !e.Expunged {
		m.setLinkedNotebookOwner(guid, e.LinkedNotebook.Username)
		if _, known := m.oracle.Permissions(guid); known {
			m.oracle.Invalidate(guid)
		}
		return
	}

	delete(m.lnOwners, guid)
	m.oracle.Forget(guid)
	n, ok := m.nodeOfGroup(tree.LinkedNotebookGroup(guid))
	if !ok {
		return
	}

	var localIDs []string
	for _, it := range m.items.ByGroup(guid) {
		localIDs = append(localIDs, it.LocalID)
	}
	m.emit(Event{Type: EventAboutToRemoveItems, LocalIDs: localIDs})
	for _, localID := range m.removeSubtree(n) {
		m.items.Erase(localID)
		m.cache.Remove(localID)
	}
	m.emit(Event{Type: EventRemovedItems, LocalIDs: localIDs})
}
