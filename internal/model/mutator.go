package model

import (
	"github.com/d1vanov/quentier-sub007/internal/address"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/tree"
)

// insertNode attaches the detached node n under parent at its sorted row.
func (m *Model[E]) insertNode(parent, n tree.NodeID) error {
	row := m.insertionRow(parent, n)
	parentIdx := m.indexOf(parent, 0)

	m.emit(Event{Type: EventRowsAboutToBeInserted, Parent: parentIdx, First: row, Last: row})
	err := m.tree.InsertChild(parent, row, n)
	m.emit(Event{Type: EventRowsInserted, Parent: parentIdx, First: row, Last: row})
	if err != nil {
		return err
	}
	m.remapPersistent()
	return nil
}

// moveNode detaches n and attaches it under newParent at its sorted row, within
// a single move notification. Moving within the same parent repositions n.
func (m *Model[E]) moveNode(n, newParent tree.NodeID) error {
	oldParent := m.tree.Parent(n)
	srcRow := m.tree.RowOf(oldParent, n)
	if srcRow < 0 {
		return domainerrors.InternalConsistencyf("node %d is missing from its parent", n)
	}
	if newParent == n || m.tree.IsAncestor(n, newParent) {
		return domainerrors.Structural("cannot move an item under its own descendant")
	}

	row := m.insertionRow(newParent, n)
	destRow := row
	if oldParent == newParent {
		if row == srcRow {
			return nil
		}
		// Destination rows count the moved node as still present.
		if row > srcRow {
			destRow = row + 1
		}
	}

	srcIdx := m.indexOf(oldParent, 0)
	dstIdx := m.indexOf(newParent, 0)
	m.emit(Event{
		Type: EventRowsAboutToBeMoved, Parent: srcIdx, First: srcRow, Last: srcRow,
		DestParent: dstIdx, DestRow: destRow,
	})
	_, err := m.tree.TakeChild(oldParent, srcRow)
	if err == nil {
		if err = m.tree.InsertChild(newParent, row, n); err != nil {
			m.restoreNode(oldParent, srcRow, n)
		}
	}
	if err != nil {
		// Nothing moved: close the bracket as a move of the row onto itself.
		dstIdx, destRow = srcIdx, srcRow
	}
	m.emit(Event{
		Type: EventRowsMoved, Parent: srcIdx, First: srcRow, Last: srcRow,
		DestParent: dstIdx, DestRow: destRow,
	})
	if err != nil {
		return err
	}
	m.remapPersistent()
	return nil
}

// restoreNode puts n back at row of parent after a failed move.
func (m *Model[E]) restoreNode(parent tree.NodeID, row int, n tree.NodeID) {
	if err := m.tree.InsertChild(parent, row, n); err != nil {
		m.logger.Error("node lost after failed move",
			"node", n, "parent", parent, "row", row,
			"error", domainerrors.Wrapf(err, domainerrors.CodeInternalConsistency, "restore node %d", n))
	}
}

// reposition moves n to its sorted row under its current parent.
func (m *Model[E]) reposition(n tree.NodeID) error {
	if !m.sortActive {
		return nil
	}
	return m.moveNode(n, m.tree.Parent(n))
}

// removeSubtree removes n with all its descendants from the tree, freeing
// their addresses. Items are not touched. It returns the local ids of the
// entity nodes removed.
func (m *Model[E]) removeSubtree(n tree.NodeID) []string {
	parent := m.tree.Parent(n)
	row := m.tree.RowOf(parent, n)
	if row < 0 {
		return nil
	}
	parentIdx := m.indexOf(parent, 0)

	m.emit(Event{Type: EventRowsAboutToBeRemoved, Parent: parentIdx, First: row, Last: row})
	var keys []tree.NodeID
	m.tree.Walk(n, func(id tree.NodeID) bool {
		keys = append(keys, id)
		return true
	})
	var localIDs []string
	for _, id := range keys {
		if k, ok := m.keyOf(id); ok {
			m.forgetNode(k)
		}
		if e, ok := m.tree.Payload(id).(tree.Entity); ok {
			localIDs = append(localIDs, e.LocalID)
		}
	}
	m.tree.Delete(n)
	m.emit(Event{Type: EventRowsRemoved, Parent: parentIdx, First: row, Last: row})

	m.remapPersistent()
	return localIDs
}

// pruneGroups removes n and its ancestors as long as they are childless groups.
func (m *Model[E]) pruneGroups(n tree.NodeID) {
	for n != tree.None && m.tree.Contains(n) {
		if _, ok := m.tree.Payload(n).(tree.Group); !ok || m.tree.ChildCount(n) > 0 {
			return
		}
		parent := m.tree.Parent(n)
		m.removeSubtree(n)
		n = parent
	}
}

// ensureGroup returns the node of group k under parent, creating it if needed.
func (m *Model[E]) ensureGroup(parent tree.NodeID, k tree.GroupKey) (tree.NodeID, error) {
	if n, ok := m.nodeOfGroup(k); ok {
		return n, nil
	}
	n := m.newNode(tree.Group{Key: k})
	if err := m.insertNode(parent, n); err != nil {
		m.forgetNode(groupAddressKey(k))
		m.tree.Delete(n)
		return tree.None, err
	}
	return n, nil
}

// partitionRoot returns the all items root, or the group of a linked notebook.
func (m *Model[E]) partitionRoot(linkedNotebookGUID string) (tree.NodeID, error) {
	if linkedNotebookGUID == "" {
		return m.tree.AllItems(), nil
	}
	return m.ensureGroup(m.tree.AllItems(), tree.LinkedNotebookGroup(linkedNotebookGUID))
}

// parentNodeFor returns the node an item belongs under, creating groups on the
// way. A tag whose parent is not known yet is placed at its partition root.
func (m *Model[E]) parentNodeFor(it itemstore.Item) (tree.NodeID, error) {
	root, err := m.partitionRoot(it.LinkedNotebookGUID)
	if err != nil {
		return tree.None, err
	}

	switch m.kind.Nesting() {
	case NestByParent:
		if it.ParentLocalID == "" {
			return root, nil
		}
		parent, ok := m.nodeOfEntity(it.ParentLocalID)
		if !ok || m.partitionOf(parent) != it.LinkedNotebookGUID {
			return root, nil
		}
		return parent, nil
	case NestByStack:
		if it.Stack == "" {
			return root, nil
		}
		return m.ensureGroup(root, tree.StackGroup(it.Stack, it.LinkedNotebookGUID))
	}
	return root, nil
}

// attachItem creates the node of a stored item and inserts it.
func (m *Model[E]) attachItem(it itemstore.Item) (tree.NodeID, error) {
	parent, err := m.parentNodeFor(it)
	if err != nil {
		return tree.None, err
	}
	n := m.newNode(tree.Entity{LocalID: it.LocalID})
	if err := m.insertNode(parent, n); err != nil {
		m.forgetNode(address.EntityKey(it.LocalID))
		m.tree.Delete(n)
		return tree.None, err
	}
	return n, nil
}

// dataChanged notifies that every column of n changed.
func (m *Model[E]) dataChanged(n tree.NodeID) {
	m.emit(Event{
		Type:        EventDataChanged,
		TopLeft:     m.indexOf(n, 0),
		BottomRight: m.indexOf(n, len(m.columns)-1),
	})
}

// adoptOrphans moves tags that name parentLocalID as their parent but were
// placed elsewhere because it was not known yet.
func (m *Model[E]) adoptOrphans(parent tree.NodeID, parentLocalID string) {
	if m.kind.Nesting() != NestByParent {
		return
	}
	for _, child := range m.items.ByParent(parentLocalID) {
		n, ok := m.nodeOfEntity(child.LocalID)
		if !ok || m.tree.Parent(n) == parent {
			continue
		}
		if child.LinkedNotebookGUID != m.partitionOf(parent) {
			continue
		}
		if err := m.moveNode(n, parent); err != nil {
			m.logger.Error("failed to adopt orphan", "local_id", child.LocalID, "error", err)
		}
	}
}
