// Package localstorage persists tags, notebooks, linked notebooks and notes on
// the device and serves them to the tree models through the asynchronous
// backend contract.
//
// Storage is the synchronous persistence layer, implemented on badger here and
// on SQLite in the sqlite subpackage. Manager turns it into backend
// collaborators by running every request on a single worker goroutine and
// publishing the results on its Notifier channel.
package localstorage

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
)

// EntityStore persists entities of one kind.
type EntityStore[E any] interface {
	// Add fails with ErrAlreadyExists when the local id is taken.
	Add(ctx context.Context, entity E) error
	// Update fails with ErrNotFound when the local id is unknown.
	Update(ctx context.Context, entity E) error
	Find(ctx context.Context, localID string) (E, error)
	List(ctx context.Context, opts backend.ListOptions) ([]E, error)
	// Expunge removes the entity and returns the local ids of the entities
	// removed with it.
	Expunge(ctx context.Context, localID string) ([]string, error)
	NoteCount(ctx context.Context, localID string) (int, error)
	NoteCounts(ctx context.Context) (map[string]int, error)
}

// Storage is the local database of one account.
type Storage interface {
	Tags() EntityStore[domain.Tag]
	Notebooks() EntityStore[domain.Notebook]

	// PutLinkedNotebook inserts or replaces a linked notebook.
	PutLinkedNotebook(ctx context.Context, ln domain.LinkedNotebook) error
	// ExpungeLinkedNotebook removes a linked notebook with its tags, notebooks and notes.
	ExpungeLinkedNotebook(ctx context.Context, guid string) error
	ListLinkedNotebooks(ctx context.Context, opts backend.ListOptions) ([]domain.LinkedNotebook, error)
	// FindRestrictions returns the restrictions of the notebook shared through
	// a linked notebook. Nil means unrestricted.
	FindRestrictions(ctx context.Context, linkedNotebookGUID string) (*domain.NotebookRestrictions, error)

	// PutNote inserts or replaces a note and returns the version it replaced.
	PutNote(ctx context.Context, note domain.Note) (*domain.Note, error)
	// ExpungeNote removes a note and returns it.
	ExpungeNote(ctx context.Context, localID string) (*domain.Note, error)

	Close() error
}

// Accessors expose the fields listings filter and order by.
type Accessors[E any] struct {
	Kind               string
	LocalID            func(E) string
	Name               func(E) string
	LinkedNotebookGUID func(E) string
	USN                func(E) int32
}

// TagAccessors read tag fields.
var TagAccessors = Accessors[domain.Tag]{
	Kind:               string(domain.KindTag),
	LocalID:            func(t domain.Tag) string { return t.LocalID },
	Name:               func(t domain.Tag) string { return t.Name },
	LinkedNotebookGUID: func(t domain.Tag) string { return t.LinkedNotebookGUID },
	USN:                func(t domain.Tag) int32 { return t.UpdateSequenceNumber },
}

// NotebookAccessors read notebook fields.
var NotebookAccessors = Accessors[domain.Notebook]{
	Kind:               string(domain.KindNotebook),
	LocalID:            func(n domain.Notebook) string { return n.LocalID },
	Name:               func(n domain.Notebook) string { return n.Name },
	LinkedNotebookGUID: func(n domain.Notebook) string { return n.LinkedNotebookGUID },
	USN:                func(n domain.Notebook) int32 { return n.UpdateSequenceNumber },
}

// InScope reports whether an entity of the given linked notebook belongs to
// the partition a listing asks for.
func InScope(linkedNotebookGUID string, opts backend.ListOptions) bool {
	switch opts.Scope {
	case backend.ScopeUserOwn:
		return linkedNotebookGUID == ""
	case backend.ScopeLinkedNotebook:
		if opts.LinkedNotebookGUID == "" {
			return linkedNotebookGUID != ""
		}
		return linkedNotebookGUID == opts.LinkedNotebookGUID
	default:
		return true
	}
}

// Page filters, orders and slices entities the way a list request asks for.
// Names compare case-insensitively with ties broken by local id, so pages
// are stable across requests.
func Page[E any](all []E, opts backend.ListOptions, acc Accessors[E]) []E {
	items := make([]E, 0, len(all))
	for _, e := range all {
		if InScope(acc.LinkedNotebookGUID(e), opts) {
			items = append(items, e)
		}
	}

	slices.SortStableFunc(items, func(a, b E) int {
		var c int
		switch opts.Order {
		case backend.OrderUpdateSequenceNumber:
			c = cmp.Compare(acc.USN(a), acc.USN(b))
		default:
			c = strings.Compare(strings.ToLower(acc.Name(a)), strings.ToLower(acc.Name(b)))
		}
		if c == 0 {
			c = strings.Compare(acc.LocalID(a), acc.LocalID(b))
		}
		if opts.Direction == backend.Descending {
			return -c
		}
		return c
	})

	return window(items, opts.Offset, opts.Limit)
}

// window returns the items of one page. A non-positive limit means no limit.
func window[E any](items []E, offset, limit int) []E {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []E{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// affectedByNote returns the notebook and tag local ids whose note counts
// change when prev is replaced by next. Either may be nil.
func affectedByNote(prev, next *domain.Note) (notebooks, tags []string) {
	for _, n := range []*domain.Note{prev, next} {
		if n == nil {
			continue
		}
		if n.NotebookLocalID != "" && !slices.Contains(notebooks, n.NotebookLocalID) {
			notebooks = append(notebooks, n.NotebookLocalID)
		}
		for _, tagID := range n.TagLocalIDs {
			if !slices.Contains(tags, tagID) {
				tags = append(tags, tagID)
			}
		}
	}
	return notebooks, tags
}
