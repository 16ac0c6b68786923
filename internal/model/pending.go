package model

import "github.com/d1vanov/quentier-sub007/internal/backend"

// pendingRequests holds one set per kind of outgoing request, keyed by
// correlation id. Every result is matched against them and consumed once.
type pendingRequests struct {
	add     map[string]string
	update  map[string]string
	expunge map[string]string
	// Finds issued because an update missed the entity cache; the update is
	// retried once they complete.
	findForUpdate map[string]string
	// Finds issued to resynchronize an item after a failed update.
	findAfterFailure map[string]string
	// Finds issued to bring back an item whose expunge failed.
	restore    map[string]string
	noteCount  map[string]string
	noteCounts map[string]struct{}
	list       map[string]backend.ListOptions
	lnList     map[string]backend.ListOptions

	// Items created locally whose first add has not completed yet.
	created map[string]struct{}
	// Items edited while their add was in flight; they get an update once it completes.
	editedWhileCreating map[string]struct{}
	// Resynchronization attempts per local id.
	resyncAttempts map[string]int
}

func newPendingRequests() pendingRequests {
	return pendingRequests{
		add:                 make(map[string]string),
		update:              make(map[string]string),
		expunge:             make(map[string]string),
		findForUpdate:       make(map[string]string),
		findAfterFailure:    make(map[string]string),
		restore:             make(map[string]string),
		noteCount:           make(map[string]string),
		noteCounts:          make(map[string]struct{}),
		list:                make(map[string]backend.ListOptions),
		lnList:              make(map[string]backend.ListOptions),
		created:             make(map[string]struct{}),
		editedWhileCreating: make(map[string]struct{}),
		resyncAttempts:      make(map[string]int),
	}
}

// hasLocalID reports whether set has a request for localID.
func hasLocalID(set map[string]string, localID string) bool {
	for _, id := range set {
		if id == localID {
			return true
		}
	}
	return false
}

// take removes and returns the local id stored under requestID.
func take(set map[string]string, requestID string) (string, bool) {
	localID, ok := set[requestID]
	if ok {
		delete(set, requestID)
	}
	return localID, ok
}

// PendingRequests returns the number of requests awaiting a result per operation.
func (m *Model[E]) PendingRequests() map[string]int {
	return map[string]int{
		string(backend.OpAdd):        len(m.pending.add),
		string(backend.OpUpdate):     len(m.pending.update),
		string(backend.OpExpunge):    len(m.pending.expunge),
		string(backend.OpFind):       len(m.pending.findForUpdate) + len(m.pending.findAfterFailure) + len(m.pending.restore),
		string(backend.OpNoteCount):  len(m.pending.noteCount),
		string(backend.OpNoteCounts): len(m.pending.noteCounts),
		string(backend.OpList):       len(m.pending.list),
		"list_linked_notebooks":      len(m.pending.lnList),
	}
}

// reportPending publishes the pending request counts.
func (m *Model[E]) reportPending() {
	kind := string(m.kind.EntityKind())
	for op, n := range m.PendingRequests() {
		m.metrics.SetPending(kind, op, n)
	}
}
