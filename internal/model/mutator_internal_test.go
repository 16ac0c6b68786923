package model

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/restrictions"
	"github.com/d1vanov/quentier-sub007/internal/tree"
)

type bareKind struct{}

func (bareKind) EntityKind() domain.EntityKind { return domain.KindTag }
func (bareKind) Nesting() Nesting              { return NestByParent }
func (bareKind) Columns() []Column             { return []Column{ColumnName} }
func (bareKind) AllItemsLabel() string         { return "All tags" }
func (bareKind) LocalID(e domain.Tag) string   { return e.LocalID }
func (bareKind) ValidateName(string) error     { return nil }

func (bareKind) ToItem(e domain.Tag) itemstore.Item {
	return itemstore.Item{LocalID: e.LocalID, Name: e.Name}
}

func (bareKind) Merge(base domain.Tag, it itemstore.Item) domain.Tag {
	base.Name = it.Name
	return base
}

func (bareKind) Permissions(*domain.NotebookRestrictions) restrictions.Permissions {
	return restrictions.Permissions{}
}

type silentBackend struct{}

func (silentBackend) List(string, backend.ListOptions) {}
func (silentBackend) Add(string, domain.Tag)           {}
func (silentBackend) Update(string, domain.Tag)        {}
func (silentBackend) Find(string, string)              {}
func (silentBackend) Expunge(string, string)           {}
func (silentBackend) NoteCount(string, string)         {}
func (silentBackend) NoteCounts(string)                {}

func newBareModel(t *testing.T, log *slog.Logger, events *[]Event) *Model[domain.Tag] {
	t.Helper()

	cache, err := entitycache.New[domain.Tag]("tag", 4, nil)
	require.NoError(t, err)
	m, err := New(Options[domain.Tag]{
		Kind:    bareKind{},
		Backend: silentBackend{},
		Cache:   cache,
		Logger:  log,
		Emitter: EmitterFunc(func(e Event) { *events = append(*events, e) }),
	})
	require.NoError(t, err)
	return m
}

func TestMoveNode_FailedInsertLeavesNodeInPlace(t *testing.T) {
	var events []Event
	m := newBareModel(t, nil, &events)

	n := m.tree.NewNode(tree.Entity{LocalID: "a"})
	require.NoError(t, m.tree.InsertChild(m.tree.AllItems(), 0, n))

	err := m.moveNode(n, tree.NodeID(9999))
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeInternalConsistency, domainerrors.CodeOf(err))

	assert.Equal(t, m.tree.AllItems(), m.tree.Parent(n))
	assert.Equal(t, 0, m.tree.Row(n))

	require.Len(t, events, 2)
	assert.Equal(t, EventRowsAboutToBeMoved, events[0].Type)
	moved := events[1]
	assert.Equal(t, EventRowsMoved, moved.Type)
	assert.Equal(t, moved.Parent, moved.DestParent)
	assert.Equal(t, moved.First, moved.DestRow)
	assert.Zero(t, m.openBracket)
}

func TestRestoreNode_LogsLostNode(t *testing.T) {
	var buf bytes.Buffer
	var events []Event
	m := newBareModel(t, slog.New(slog.NewJSONHandler(&buf, nil)), &events)

	n := m.tree.NewNode(tree.Entity{LocalID: "a"})
	require.NoError(t, m.tree.InsertChild(m.tree.AllItems(), 0, n))

	// n is still attached, so putting it back fails.
	m.restoreNode(m.tree.AllItems(), 0, n)

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "node lost after failed move")
	assert.Contains(t, out, "restore node")
}

func TestCreate_FailedInsertOpensNoBracket(t *testing.T) {
	var events []Event
	m := newBareModel(t, nil, &events)
	require.NoError(t, m.items.Insert(itemstore.Item{LocalID: "taken", Name: "Existing"}))
	m.newLocalID = func(string) string { return "taken" }

	_, err := m.Create(CreateRequest{Name: "Fresh"})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeInternalConsistency, domainerrors.CodeOf(err))

	require.Len(t, events, 1)
	assert.Equal(t, EventNotifyError, events[0].Type)
	assert.Equal(t, 1, m.items.Len())
	assert.Zero(t, m.openBracket)
}
