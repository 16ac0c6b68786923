// Package restrictions caches what this account may do inside each linked
// notebook partition.
package restrictions

import (
	"log/slog"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/id"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

// Permissions of one partition.
type Permissions struct {
	CanCreate bool
	CanUpdate bool
}

// Translate converts linked notebook restrictions to the permissions of one
// entity kind. It receives nil when the notebook is unrestricted.
type Translate func(*domain.NotebookRestrictions) Permissions

// Oracle answers permission questions per linked notebook guid. Items owned by
// the account itself are always creatable and updatable. A partition whose
// restrictions have not arrived yet is neither.
//
// Oracle is not safe for concurrent use; it belongs to a single model.
type Oracle struct {
	finder    backend.RestrictionsFinder
	translate Translate
	logger    *slog.Logger

	cache map[string]Permissions
	// guid -> request id and back for the single in-flight lookup per guid.
	inFlight  map[string]string
	byRequest map[string]string
}

// New creates an empty oracle.
func New(finder backend.RestrictionsFinder, translate Translate, log *slog.Logger) *Oracle {
	return &Oracle{
		finder:    finder,
		translate: translate,
		logger:    logger.OrDiscard(log),
		cache:     make(map[string]Permissions),
		inFlight:  make(map[string]string),
		byRequest: make(map[string]string),
	}
}

// Permissions returns the cached permissions of a partition.
func (o *Oracle) Permissions(linkedNotebookGUID string) (Permissions, bool) {
	if linkedNotebookGUID == "" {
		return Permissions{CanCreate: true, CanUpdate: true}, true
	}
	p, ok := o.cache[linkedNotebookGUID]
	return p, ok
}

// CanCreate reports whether new items may be created in the partition.
func (o *Oracle) CanCreate(linkedNotebookGUID string) bool {
	p, _ := o.Permissions(linkedNotebookGUID)
	return p.CanCreate
}

// CanUpdate reports whether items of the partition may be changed.
func (o *Oracle) CanUpdate(linkedNotebookGUID string) bool {
	p, _ := o.Permissions(linkedNotebookGUID)
	return p.CanUpdate
}

// Request looks up the restrictions of a partition unless they are cached or
// a lookup is already in flight.
func (o *Oracle) Request(linkedNotebookGUID string) {
	if linkedNotebookGUID == "" {
		return
	}
	if _, ok := o.cache[linkedNotebookGUID]; ok {
		return
	}
	if _, ok := o.inFlight[linkedNotebookGUID]; ok {
		return
	}

	requestID := id.NewRequestID()
	o.inFlight[linkedNotebookGUID] = requestID
	o.byRequest[requestID] = linkedNotebookGUID
	o.logger.Debug("requesting linked notebook restrictions",
		"request_id", requestID, "linked_notebook_guid", linkedNotebookGUID)
	o.finder.FindRestrictions(requestID, linkedNotebookGUID)
}

// Invalidate drops the cached permissions of a partition and looks them up again.
func (o *Oracle) Invalidate(linkedNotebookGUID string) {
	delete(o.cache, linkedNotebookGUID)
	o.Request(linkedNotebookGUID)
}

// Forget drops everything known about a partition, e.g. after its linked
// notebook was expunged.
func (o *Oracle) Forget(linkedNotebookGUID string) {
	delete(o.cache, linkedNotebookGUID)
	if requestID, ok := o.inFlight[linkedNotebookGUID]; ok {
		delete(o.byRequest, requestID)
		delete(o.inFlight, linkedNotebookGUID)
	}
}

// Pending returns the number of lookups in flight.
func (o *Oracle) Pending() int {
	return len(o.inFlight)
}

// HandleEvent consumes the result of a lookup this oracle issued. It returns
// false for results of other requests.
func (o *Oracle) HandleEvent(ev *backend.RestrictionsEvent) bool {
	guid, ok := o.byRequest[ev.RequestID]
	if !ok {
		return false
	}
	delete(o.byRequest, ev.RequestID)
	delete(o.inFlight, guid)

	if ev.Err != nil {
		o.logger.Warn("failed to find linked notebook restrictions",
			"request_id", ev.RequestID, "linked_notebook_guid", guid, "error", ev.Err)
		return true
	}

	o.cache[guid] = o.translate(ev.Restrictions)
	return true
}
