package model

import (
	"github.com/d1vanov/quentier-sub007/internal/address"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/tree"
)

// Index addresses one cell of the view layer contract. The zero Index is the
// invisible root.
type Index struct {
	Row    int             `json:"row"`
	Column int             `json:"column"`
	Addr   address.Address `json:"address"`
}

// IsValid reports whether the index refers to a node.
func (i Index) IsValid() bool {
	return i.Addr != address.None
}

// Flag describes what the view layer may do with a cell.
type Flag uint8

// Cell flags.
const (
	FlagEnabled Flag = 1 << iota
	FlagSelectable
	FlagEditable
	FlagDragEnabled
	FlagDropEnabled
)

// Has reports whether f includes every bit of other.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// PersistentIndex is an index the view layer keeps across changes. The model
// updates its row after every sort and move, and invalidates it when the node
// goes away.
type PersistentIndex struct {
	index Index
}

// Index returns the current index.
func (p *PersistentIndex) Index() Index {
	return p.index
}

// node resolves an index to a tree node. The invisible root is returned for
// the zero index.
func (m *Model[E]) node(idx Index) (tree.NodeID, bool) {
	if !idx.IsValid() {
		return m.tree.Root(), true
	}
	k, ok := m.addresses.Lookup(idx.Addr)
	if !ok {
		return tree.None, false
	}
	n, ok := m.nodes[k]
	return n, ok
}

// nodeOrError resolves an index that must refer to a visible node.
func (m *Model[E]) nodeOrError(idx Index) (tree.NodeID, error) {
	if !idx.IsValid() {
		return tree.None, domainerrors.NotFound("index does not refer to an item")
	}
	n, ok := m.node(idx)
	if !ok {
		return tree.None, domainerrors.NotFoundf("no item at address %d", idx.Addr)
	}
	return n, nil
}

// indexOf returns the index of column of node n.
func (m *Model[E]) indexOf(n tree.NodeID, column int) Index {
	if n == m.tree.Root() || !m.tree.Contains(n) {
		return Index{}
	}
	k, ok := m.keyOf(n)
	if !ok {
		return Index{}
	}
	return Index{Row: m.tree.Row(n), Column: column, Addr: m.addresses.AddressOf(k)}
}

// Index returns the index of the child at row and column under parent.
func (m *Model[E]) Index(row, column int, parent Index) (Index, bool) {
	if column < 0 || column >= len(m.columns) {
		return Index{}, false
	}
	p, ok := m.node(parent)
	if !ok {
		return Index{}, false
	}
	child, ok := m.tree.ChildAt(p, row)
	if !ok {
		return Index{}, false
	}
	return m.indexOf(child, column), true
}

// Parent returns the index of the parent of idx.
func (m *Model[E]) Parent(idx Index) Index {
	n, ok := m.node(idx)
	if !ok || !idx.IsValid() {
		return Index{}
	}
	return m.indexOf(m.tree.Parent(n), 0)
}

// RowCount returns the number of children under parent.
func (m *Model[E]) RowCount(parent Index) int {
	n, ok := m.node(parent)
	if !ok {
		return 0
	}
	return m.tree.ChildCount(n)
}

// ColumnCount returns the number of columns.
func (m *Model[E]) ColumnCount() int {
	return len(m.columns)
}

// Columns returns the columns in display order.
func (m *Model[E]) Columns() []Column {
	return append([]Column(nil), m.columns...)
}

// ColumnIndex returns the position of c, or -1 if the kind does not show it.
func (m *Model[E]) ColumnIndex(c Column) int {
	for i, col := range m.columns {
		if col == c {
			return i
		}
	}
	return -1
}

// HeaderData returns the name of a column.
func (m *Model[E]) HeaderData(column int) (string, bool) {
	if column < 0 || column >= len(m.columns) {
		return "", false
	}
	return m.columns[column].String(), true
}

// Item returns the item an index refers to.
func (m *Model[E]) Item(idx Index) (itemstore.Item, bool) {
	n, ok := m.node(idx)
	if !ok {
		return itemstore.Item{}, false
	}
	return m.itemOf(n)
}

// Data returns the value of a cell, or nil when the cell is empty.
func (m *Model[E]) Data(idx Index) any {
	n, ok := m.node(idx)
	if !ok || !idx.IsValid() || idx.Column < 0 || idx.Column >= len(m.columns) {
		return nil
	}
	column := m.columns[idx.Column]

	switch p := m.tree.Payload(n).(type) {
	case tree.Root:
		if column == ColumnName {
			return m.kind.AllItemsLabel()
		}
		return nil
	case tree.Group:
		if column == ColumnName {
			return m.groupName(p.Key)
		}
		return nil
	}

	it, ok := m.itemOf(n)
	if !ok {
		return nil
	}
	switch column {
	case ColumnName:
		return it.Name
	case ColumnSynchronizable:
		return it.Synchronizable
	case ColumnDirty:
		return it.Dirty
	case ColumnDefault:
		return it.Default
	case ColumnLastUsed:
		return it.LastUsed
	case ColumnPublished:
		return it.Published
	case ColumnFromLinkedNotebook:
		return it.LinkedNotebookGUID != ""
	case ColumnNoteCount:
		return it.NoteCount
	case ColumnFavorited:
		return it.Favorited
	}
	return nil
}

// groupName is the display name of a group.
func (m *Model[E]) groupName(k tree.GroupKey) string {
	if k.Kind == tree.GroupStack {
		return k.Name
	}
	if owner, ok := m.lnOwners[k.LinkedNotebookGUID]; ok && owner != "" {
		return owner
	}
	return k.LinkedNotebookGUID
}

// Flags returns what the view layer may do with a cell.
func (m *Model[E]) Flags(idx Index) Flag {
	n, ok := m.node(idx)
	if !ok || !idx.IsValid() || idx.Column < 0 || idx.Column >= len(m.columns) {
		return 0
	}
	column := m.columns[idx.Column]
	flags := FlagEnabled | FlagSelectable

	switch p := m.tree.Payload(n).(type) {
	case tree.Root:
		return flags | FlagDropEnabled
	case tree.Group:
		if !m.oracle.CanUpdate(p.Key.LinkedNotebookGUID) {
			return flags
		}
		flags |= FlagDropEnabled
		if p.Key.Kind == tree.GroupStack && column == ColumnName {
			flags |= FlagEditable
		}
		return flags
	}

	it, ok := m.itemOf(n)
	if !ok {
		return 0
	}
	if m.canUpdate(it) != nil {
		return flags
	}
	flags |= FlagDragEnabled
	if m.kind.Nesting() == NestByParent {
		flags |= FlagDropEnabled
	}

	switch column {
	case ColumnName:
		if m.kind.Nesting() == NestByParent || it.CanRename {
			flags |= FlagEditable
		}
	case ColumnSynchronizable:
		if !it.Synchronizable && !m.account.IsLocal() {
			flags |= FlagEditable
		}
	case ColumnDefault, ColumnLastUsed:
		if it.LinkedNotebookGUID == "" {
			flags |= FlagEditable
		}
	}
	return flags
}

// Persist registers idx as a persistent index.
func (m *Model[E]) Persist(idx Index) *PersistentIndex {
	p := &PersistentIndex{index: idx}
	m.persistent[p] = struct{}{}
	return p
}

// ReleasePersistent stops tracking p.
func (m *Model[E]) ReleasePersistent(p *PersistentIndex) {
	delete(m.persistent, p)
}

// remapPersistent moves every persistent index to the current row of its node.
func (m *Model[E]) remapPersistent() {
	for p := range m.persistent {
		if !p.index.IsValid() {
			continue
		}
		n, ok := m.node(p.index)
		if !ok {
			p.index = Index{}
			continue
		}
		p.index.Row = m.tree.Row(n)
	}
}
