// Package model implements the generic tree model shared by tags and notebooks:
// an in-memory projection of backend entities kept as a tree with stable
// addresses for a view layer, reconciled with an asynchronous backend and
// mutated through operations that keep the tree invariants.
//
// A Model is not safe for concurrent use. Every method, HandleEvent included,
// must be called from the same goroutine; see the runloop package.
package model

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/d1vanov/quentier-sub007/internal/address"
	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/id"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/metrics"
	"github.com/d1vanov/quentier-sub007/internal/restrictions"
	"github.com/d1vanov/quentier-sub007/internal/tree"
	"github.com/d1vanov/quentier-sub007/internal/validation"
)

// Defaults for Options left zero.
const (
	DefaultListPageSize           = 100
	DefaultLinkedNotebookPageSize = 40
	DefaultMaxResyncAttempts      = 3
)

// Options configure a Model.
type Options[E any] struct {
	Kind            Kind[E]
	Backend         backend.Backend[E]
	LinkedNotebooks backend.LinkedNotebooks
	Restrictions    backend.RestrictionsFinder
	// Cache may be shared with other models of the same kind.
	Cache   *entitycache.Cache[E]
	Account domain.Account
	Emitter Emitter
	Logger  *slog.Logger
	Metrics metrics.Recorder

	ListPageSize           int
	LinkedNotebookPageSize int
	// MaxResyncAttempts bounds the finds issued to resynchronize an item after
	// a failed update. Zero means DefaultMaxResyncAttempts.
	MaxResyncAttempts int
	// Locale is the BCP 47 tag used to collate names.
	Locale string
}

// Model is the tree projection of the entities of one kind.
type Model[E any] struct {
	kind      Kind[E]
	backend   backend.Backend[E]
	lnBackend backend.LinkedNotebooks
	cache     *entitycache.Cache[E]
	account   domain.Account
	emitter   Emitter
	logger    *slog.Logger
	metrics   metrics.Recorder
	oracle    *restrictions.Oracle
	collator  *collate.Collator
	validator *validation.Validator

	items     *itemstore.Store
	tree      *tree.Tree
	addresses *address.Table
	nodes     map[address.Key]tree.NodeID
	columns   []Column

	newLocalID func(kind string) string

	sortActive bool
	sortOrder  SortOrder

	persistent  map[*PersistentIndex]struct{}
	openBracket EventType

	// Linked notebook owners by guid, used as group names.
	lnOwners map[string]string

	listPageSize      int
	lnPageSize        int
	maxResyncAttempts int

	pending pendingRequests

	allItemsListed        bool
	linkedNotebooksListed bool
}

// New creates a model. Call Start to begin listing.
func New[E any](opts Options[E]) (*Model[E], error) {
	if opts.Kind == nil {
		return nil, errors.New("model: kind is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("model: backend is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("model: cache is required")
	}

	tag, err := language.Parse(opts.Locale)
	if err != nil {
		tag = language.Und
	}

	m := &Model[E]{
		kind:              opts.Kind,
		backend:           opts.Backend,
		lnBackend:         opts.LinkedNotebooks,
		cache:             opts.Cache,
		account:           opts.Account,
		emitter:           opts.Emitter,
		logger:            logger.Component(opts.Logger, "model", "kind", string(opts.Kind.EntityKind())),
		metrics:           metrics.OrNoop(opts.Metrics),
		collator:          collate.New(tag, collate.IgnoreCase),
		validator:         validation.New(),
		items:             itemstore.New(),
		tree:              tree.New(),
		addresses:         address.New(),
		nodes:             make(map[address.Key]tree.NodeID),
		columns:           opts.Kind.Columns(),
		newLocalID:        id.NewLocalID,
		sortActive:        true,
		sortOrder:         Ascending,
		persistent:        make(map[*PersistentIndex]struct{}),
		lnOwners:          make(map[string]string),
		listPageSize:      opts.ListPageSize,
		lnPageSize:        opts.LinkedNotebookPageSize,
		maxResyncAttempts: opts.MaxResyncAttempts,
		pending:           newPendingRequests(),
	}
	if m.emitter == nil {
		m.emitter = NoopEmitter{}
	}
	if m.listPageSize <= 0 {
		m.listPageSize = DefaultListPageSize
	}
	if m.lnPageSize <= 0 {
		m.lnPageSize = DefaultLinkedNotebookPageSize
	}
	if m.maxResyncAttempts <= 0 {
		m.maxResyncAttempts = DefaultMaxResyncAttempts
	}
	m.nodes[address.Key{Type: address.KeyAllItems}] = m.tree.AllItems()

	finder := opts.Restrictions
	if finder == nil {
		finder = noRestrictions{}
	}
	m.oracle = restrictions.New(finder, opts.Kind.Permissions, m.logger)

	return m, nil
}

// noRestrictions answers nothing, leaving every linked notebook closed.
type noRestrictions struct{}

func (noRestrictions) FindRestrictions(string, string) {}

// EntityKind returns the kind of entities the model projects.
func (m *Model[E]) EntityKind() domain.EntityKind {
	return m.kind.EntityKind()
}

// Account returns the account the model belongs to.
func (m *Model[E]) Account() domain.Account {
	return m.account
}

// AllItemsListed reports whether the initial listing completed.
func (m *Model[E]) AllItemsListed() bool {
	return m.allItemsListed
}

// LinkedNotebooksListed reports whether the linked notebook listing completed.
func (m *Model[E]) LinkedNotebooksListed() bool {
	return m.linkedNotebooksListed
}

// Len returns the number of items.
func (m *Model[E]) Len() int {
	return m.items.Len()
}

// emit sends e, checking that structural brackets never overlap.
func (m *Model[E]) emit(e Event) {
	e.Kind = string(m.kind.EntityKind())
	switch {
	case e.Type.opens():
		if m.openBracket != 0 {
			m.logger.Error("structural notification opened inside another one",
				"open", m.openBracket.closes().String(), "new", e.Type.String())
		}
		m.openBracket = e.Type
	case m.openBracket != 0 && e.Type == m.openBracket.closes():
		m.openBracket = 0
	}
	m.emitter.Emit(e)
}

// fail reports err to the view layer once and returns it.
func (m *Model[E]) fail(err error) error {
	if err == nil {
		return nil
	}
	level := slog.LevelWarn
	if domainerrors.CodeOf(err) == domainerrors.CodeInternalConsistency {
		level = slog.LevelError
	}
	m.logger.Log(context.Background(), level, "model operation failed", "error", err)
	m.emit(Event{Type: EventNotifyError, Err: err})
	return err
}

// keyOf returns the address key of a node.
func (m *Model[E]) keyOf(n tree.NodeID) (address.Key, bool) {
	switch p := m.tree.Payload(n).(type) {
	case tree.Entity:
		return address.EntityKey(p.LocalID), true
	case tree.Group:
		if p.Key.Kind == tree.GroupStack {
			return address.StackKey(p.Key.Name, p.Key.LinkedNotebookGUID), true
		}
		return address.LinkedNotebookKey(p.Key.LinkedNotebookGUID), true
	case tree.Root:
		if p.AllItems {
			return address.Key{Type: address.KeyAllItems}, true
		}
	}
	return address.Key{}, false
}

// groupKey returns the address key of a group.
func groupAddressKey(k tree.GroupKey) address.Key {
	if k.Kind == tree.GroupStack {
		return address.StackKey(k.Name, k.LinkedNotebookGUID)
	}
	return address.LinkedNotebookKey(k.LinkedNotebookGUID)
}

// nodeOfEntity returns the node of an item.
func (m *Model[E]) nodeOfEntity(localID string) (tree.NodeID, bool) {
	n, ok := m.nodes[address.EntityKey(localID)]
	return n, ok
}

// nodeOfGroup returns the node of a group.
func (m *Model[E]) nodeOfGroup(k tree.GroupKey) (tree.NodeID, bool) {
	n, ok := m.nodes[groupAddressKey(k)]
	return n, ok
}

// itemOf returns the item of an entity node.
func (m *Model[E]) itemOf(n tree.NodeID) (itemstore.Item, bool) {
	e, ok := m.tree.Payload(n).(tree.Entity)
	if !ok {
		return itemstore.Item{}, false
	}
	return m.items.Find(e.LocalID)
}

// newNode allocates a detached node and registers its key.
func (m *Model[E]) newNode(p tree.Payload) tree.NodeID {
	n := m.tree.NewNode(p)
	if k, ok := m.keyOf(n); ok {
		m.nodes[k] = n
	}
	return n
}

// forgetNode drops the key and address of a freed node.
func (m *Model[E]) forgetNode(k address.Key) {
	delete(m.nodes, k)
	m.addresses.Release(k)
}

// partitionOf returns the linked notebook guid of the partition holding n.
func (m *Model[E]) partitionOf(n tree.NodeID) string {
	switch p := m.tree.Payload(n).(type) {
	case tree.Entity:
		it, _ := m.items.Find(p.LocalID)
		return it.LinkedNotebookGUID
	case tree.Group:
		return p.Key.LinkedNotebookGUID
	}
	return ""
}

// isPartitionRoot reports whether n is the all items root or a linked notebook group.
func (m *Model[E]) isPartitionRoot(n tree.NodeID) bool {
	switch p := m.tree.Payload(n).(type) {
	case tree.Root:
		return p.AllItems
	case tree.Group:
		return p.Key.Kind == tree.GroupLinkedNotebook
	}
	return false
}

// canUpdate checks the permission to change an item.
func (m *Model[E]) canUpdate(it itemstore.Item) error {
	if it.LinkedNotebookGUID != "" && !m.oracle.CanUpdate(it.LinkedNotebookGUID) {
		return domainerrors.Restrictionf("%s %q of a linked notebook cannot be changed", m.kind.EntityKind(), it.Name)
	}
	if m.kind.Nesting() == NestByStack && !it.CanUpdate {
		return domainerrors.Restrictionf("%s %q cannot be changed", m.kind.EntityKind(), it.Name)
	}
	return nil
}
