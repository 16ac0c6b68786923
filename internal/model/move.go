package model

import (
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/tree"
	"github.com/d1vanov/quentier-sub007/internal/validation"
)

// entityAt resolves an index that must refer to an item.
func (m *Model[E]) entityAt(idx Index) (tree.NodeID, itemstore.Item, error) {
	n, err := m.nodeOrError(idx)
	if err != nil {
		return tree.None, itemstore.Item{}, err
	}
	it, ok := m.itemOf(n)
	if !ok {
		return tree.None, itemstore.Item{}, domainerrors.Validation("index does not refer to an item")
	}
	return n, it, nil
}

// Promote moves a nested tag one level up, next to its former parent.
func (m *Model[E]) Promote(idx Index) error {
	if m.kind.Nesting() != NestByParent {
		return m.fail(m.unsupported("promote"))
	}
	n, it, err := m.entityAt(idx)
	if err != nil {
		return m.fail(err)
	}
	parent := m.tree.Parent(n)
	if _, ok := m.tree.Payload(parent).(tree.Entity); !ok {
		return m.fail(domainerrors.Structuralf("%s %q is already at the top level", m.kind.EntityKind(), it.Name))
	}
	return m.fail(m.reparent(n, m.tree.Parent(parent)))
}

// Demote moves a tag under its previous sibling.
func (m *Model[E]) Demote(idx Index) error {
	if m.kind.Nesting() != NestByParent {
		return m.fail(m.unsupported("demote"))
	}
	n, it, err := m.entityAt(idx)
	if err != nil {
		return m.fail(err)
	}
	parent := m.tree.Parent(n)
	row := m.tree.RowOf(parent, n)
	if row < 0 {
		return m.fail(domainerrors.InternalConsistencyf("%s %q is missing from its parent", m.kind.EntityKind(), it.Name))
	}
	if row == 0 {
		return m.fail(domainerrors.Structuralf("%s %q is the first child and has no sibling to move under", m.kind.EntityKind(), it.Name))
	}
	sibling, _ := m.tree.ChildAt(parent, row-1)
	if _, ok := m.tree.Payload(sibling).(tree.Entity); !ok {
		return m.fail(domainerrors.Structural("the previous row is not an item"))
	}
	return m.fail(m.reparent(n, sibling))
}

// MoveToParent moves a tag under the tag named parentName of the same
// partition. An empty name moves it to the top level.
func (m *Model[E]) MoveToParent(idx Index, parentName string) error {
	if m.kind.Nesting() != NestByParent {
		return m.fail(m.unsupported("move to parent"))
	}
	n, it, err := m.entityAt(idx)
	if err != nil {
		return m.fail(err)
	}
	name := validation.Normalize(parentName)
	if name == "" {
		return m.RemoveFromParent(idx)
	}

	target, ok := m.items.FindByName(name, it.LinkedNotebookGUID)
	if !ok {
		if len(m.items.ByName(name)) > 0 {
			return m.fail(domainerrors.Structuralf("cannot move %s %q under %q of another linked notebook", m.kind.EntityKind(), it.Name, name))
		}
		return m.fail(domainerrors.NotFoundf("%s %q not found", m.kind.EntityKind(), name))
	}
	tn, ok := m.nodeOfEntity(target.LocalID)
	if !ok {
		return m.fail(domainerrors.InternalConsistencyf("%s %q has no row", m.kind.EntityKind(), target.Name))
	}
	return m.fail(m.reparent(n, tn))
}

// RemoveFromParent moves a nested tag to the top level of its partition.
func (m *Model[E]) RemoveFromParent(idx Index) error {
	if m.kind.Nesting() != NestByParent {
		return m.fail(m.unsupported("remove from parent"))
	}
	n, it, err := m.entityAt(idx)
	if err != nil {
		return m.fail(err)
	}
	root, err := m.partitionRoot(it.LinkedNotebookGUID)
	if err != nil {
		return m.fail(err)
	}
	if m.tree.Parent(n) == root {
		return nil
	}
	return m.fail(m.reparent(n, root))
}

// MoveToStack puts a notebook into the named stack, creating the stack if needed.
func (m *Model[E]) MoveToStack(idx Index, stack string) error {
	if m.kind.Nesting() != NestByStack {
		return m.fail(m.unsupported("move to stack"))
	}
	n, it, err := m.entityAt(idx)
	if err != nil {
		return m.fail(err)
	}
	name := validation.Normalize(stack)
	if name == "" {
		return m.RemoveFromStack(idx)
	}
	if err := m.validator.StackName(name); err != nil {
		return m.fail(err)
	}
	if it.Stack == name {
		return nil
	}
	if err := m.canUpdate(it); err != nil {
		return m.fail(err)
	}

	root, err := m.partitionRoot(it.LinkedNotebookGUID)
	if err != nil {
		return m.fail(err)
	}
	group, err := m.ensureGroup(root, tree.StackGroup(name, it.LinkedNotebookGUID))
	if err != nil {
		return m.fail(err)
	}
	if err := m.reparent(n, group); err != nil {
		m.pruneGroups(group)
		return m.fail(err)
	}
	return nil
}

// RemoveFromStack takes a notebook out of its stack.
func (m *Model[E]) RemoveFromStack(idx Index) error {
	if m.kind.Nesting() != NestByStack {
		return m.fail(m.unsupported("remove from stack"))
	}
	n, it, err := m.entityAt(idx)
	if err != nil {
		return m.fail(err)
	}
	if it.Stack == "" {
		return nil
	}
	root, err := m.partitionRoot(it.LinkedNotebookGUID)
	if err != nil {
		return m.fail(err)
	}
	return m.fail(m.reparent(n, root))
}

// RenameStack renames the stack at idx on every notebook it holds.
func (m *Model[E]) RenameStack(idx Index, name string) error {
	n, err := m.nodeOrError(idx)
	if err != nil {
		return m.fail(err)
	}
	g, ok := m.tree.Payload(n).(tree.Group)
	if !ok || g.Key.Kind != tree.GroupStack {
		return m.fail(domainerrors.Validation("index does not refer to a stack"))
	}
	return m.fail(m.renameStack(n, g.Key, name))
}

func (m *Model[E]) renameStack(n tree.NodeID, old tree.GroupKey, raw string) error {
	name := validation.Normalize(raw)
	if name == old.Name {
		return nil
	}
	if err := m.validator.StackName(name); err != nil {
		return err
	}
	renamed := tree.StackGroup(name, old.LinkedNotebookGUID)
	if _, exists := m.nodeOfGroup(renamed); exists {
		return domainerrors.Validationf("stack %q already exists", name)
	}
	if !m.oracle.CanUpdate(old.LinkedNotebookGUID) {
		return domainerrors.Restriction("stacks of this linked notebook cannot be changed")
	}

	members := m.items.ByStack(old.LinkedNotebookGUID, old.Name)
	localIDs := make([]string, 0, len(members))
	for _, it := range members {
		if err := m.canUpdate(it); err != nil {
			return err
		}
		localIDs = append(localIDs, it.LocalID)
	}

	m.emit(Event{Type: EventAboutToUpdateItem, LocalIDs: localIDs})
	for _, localID := range localIDs {
		if _, err := m.items.Update(localID, func(it *itemstore.Item) {
			it.Stack = name
			it.Dirty = true
		}); err != nil {
			return err
		}
	}

	oldKey, newKey := groupAddressKey(old), groupAddressKey(renamed)
	m.tree.SetPayload(n, tree.Group{Key: renamed})
	m.addresses.Rekey(oldKey, newKey)
	delete(m.nodes, oldKey)
	m.nodes[newKey] = n

	if err := m.reposition(n); err != nil {
		return err
	}
	m.dataChanged(n)
	for _, child := range m.tree.Children(n) {
		m.dataChanged(child)
	}
	m.emit(Event{Type: EventUpdatedItem, LocalIDs: localIDs})

	for _, localID := range localIDs {
		m.scheduleUpdate(localID)
	}
	return nil
}

// reparent moves the item of n under target and sends the change. Moves under
// the item's own descendants, into another partition and, for notebooks,
// under another notebook are rejected.
func (m *Model[E]) reparent(n, target tree.NodeID) error {
	it, ok := m.itemOf(n)
	if !ok {
		return domainerrors.InternalConsistencyf("node %d is not an item", n)
	}
	if target == n || m.tree.IsAncestor(n, target) {
		return domainerrors.Structuralf("cannot move %s %q under itself or its descendant", m.kind.EntityKind(), it.Name)
	}
	if m.partitionOf(target) != it.LinkedNotebookGUID {
		return domainerrors.Structuralf("cannot move %s %q into another linked notebook", m.kind.EntityKind(), it.Name)
	}
	if !m.acceptsChild(target, it) {
		return domainerrors.Structuralf("%s %q cannot be placed there", m.kind.EntityKind(), it.Name)
	}
	if err := m.canUpdate(it); err != nil {
		return err
	}

	oldParent := m.tree.Parent(n)
	if oldParent == target {
		return nil
	}

	m.emit(Event{Type: EventAboutToUpdateItem, LocalIDs: []string{it.LocalID}})
	if err := m.moveNode(n, target); err != nil {
		return err
	}
	m.setParentFields(&it, target)
	it.Dirty = true
	if err := m.items.Replace(it.LocalID, it); err != nil {
		return err
	}
	m.dataChanged(n)
	m.emit(Event{Type: EventUpdatedItem, LocalIDs: []string{it.LocalID}})
	m.pruneGroups(oldParent)

	m.scheduleUpdate(it.LocalID)
	return nil
}
