// Package backend defines the asynchronous contract between the tree models and
// the store persisting tags, notebooks and linked notebooks.
//
// Every request is fire-and-forget and carries a correlation id chosen by the
// caller. Results come back as values on the Notifier: *Event[E] for entity
// requests, *LinkedNotebooksEvent, *RestrictionsEvent and
// *LinkedNotebookChanged. A result whose request id nobody issued is a change
// made by someone else.
package backend

import "github.com/d1vanov/quentier-sub007/internal/domain"

// Op names an entity request.
type Op string

// Entity operations.
const (
	OpList       Op = "list"
	OpAdd        Op = "add"
	OpUpdate     Op = "update"
	OpFind       Op = "find"
	OpExpunge    Op = "expunge"
	OpNoteCount  Op = "note_count"
	OpNoteCounts Op = "note_counts"
)

// Order is the field list results are ordered by.
type Order string

// List orders.
const (
	OrderName                 Order = "name"
	OrderUpdateSequenceNumber Order = "update_sequence_number"
)

// Direction is the list ordering direction.
type Direction string

// List directions.
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Scope restricts a listing to a partition.
type Scope string

// List scopes.
const (
	ScopeAll            Scope = "all"
	ScopeUserOwn        Scope = "user_own"
	ScopeLinkedNotebook Scope = "linked_notebook"
)

// ListOptions describe one page of a listing.
type ListOptions struct {
	Offset    int       `json:"offset"`
	Limit     int       `json:"limit"`
	Order     Order     `json:"order"`
	Direction Direction `json:"direction"`
	Scope     Scope     `json:"scope"`
	// LinkedNotebookGUID selects the partition when Scope is ScopeLinkedNotebook.
	LinkedNotebookGUID string `json:"linked_notebook_guid,omitempty"`
}

// Next returns the options of the page following o.
func (o ListOptions) Next() ListOptions {
	o.Offset += o.Limit
	return o
}

// Backend persists entities of one kind.
type Backend[E any] interface {
	List(requestID string, opts ListOptions)
	Add(requestID string, entity E)
	Update(requestID string, entity E)
	Find(requestID, localID string)
	Expunge(requestID, localID string)
	NoteCount(requestID, localID string)
	NoteCounts(requestID string)
}

// LinkedNotebooks lists the linked notebooks of the account.
type LinkedNotebooks interface {
	ListLinkedNotebooks(requestID string, opts ListOptions)
}

// RestrictionsFinder looks up the restrictions of a linked notebook.
type RestrictionsFinder interface {
	FindRestrictions(requestID, linkedNotebookGUID string)
}

// Notifier delivers every result of every request.
type Notifier interface {
	Events() <-chan any
}

// Event is the result of an entity request.
type Event[E any] struct {
	Op        Op
	RequestID string
	// Entity is set for add, update and find results.
	Entity E
	// Page and Options are set for list results.
	Page    []E
	Options ListOptions
	// LocalID is set for find, expunge and note count results.
	LocalID string
	// ExpungedChildren lists the local ids removed together with an expunged tag.
	ExpungedChildren []string
	NoteCount        int
	NoteCounts       map[string]int
	Err              error
}

// Failed reports whether the request failed.
func (e *Event[E]) Failed() bool {
	return e.Err != nil
}

// LinkedNotebooksEvent is the result of a linked notebook listing.
type LinkedNotebooksEvent struct {
	RequestID string
	Page      []domain.LinkedNotebook
	Options   ListOptions
	Err       error
}

// RestrictionsEvent is the result of a restrictions lookup. Nil restrictions
// mean the linked notebook grants everything.
type RestrictionsEvent struct {
	RequestID          string
	LinkedNotebookGUID string
	Restrictions       *domain.NotebookRestrictions
	Err                error
}

// LinkedNotebookChanged reports a linked notebook added, updated or expunged
// outside of any listing.
type LinkedNotebookChanged struct {
	RequestID      string
	LinkedNotebook domain.LinkedNotebook
	Expunged       bool
}
