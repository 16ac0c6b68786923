package model

import (
	"fmt"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/tree"
	"github.com/d1vanov/quentier-sub007/internal/validation"
)

// CreateRequest describes a new item.
type CreateRequest struct {
	Name string
	// ParentName names the parent tag. Tags only.
	ParentName string
	// Stack puts the new notebook into a stack. Notebooks only.
	Stack              string
	LinkedNotebookGUID string
}

// Create adds a new item, inserts it into the tree and sends it to the backend.
// It returns the index of the new item.
func (m *Model[E]) Create(req CreateRequest) (Index, error) {
	it, err := m.newItem(req)
	if err != nil {
		return Index{}, m.fail(err)
	}

	if err := m.items.Insert(it); err != nil {
		return Index{}, m.fail(err)
	}
	m.emit(Event{Type: EventAboutToAddItem, LocalIDs: []string{it.LocalID}})
	n, err := m.attachItem(it)
	m.emit(Event{Type: EventAddedItem, LocalIDs: []string{it.LocalID}})
	if err != nil {
		m.items.Erase(it.LocalID)
		return Index{}, m.fail(err)
	}

	m.requestAdd(it)
	return m.indexOf(n, 0), nil
}

func (m *Model[E]) newItem(req CreateRequest) (itemstore.Item, error) {
	name := validation.Normalize(req.Name)
	if err := m.kind.ValidateName(name); err != nil {
		return itemstore.Item{}, err
	}
	ln := req.LinkedNotebookGUID
	if existing, ok := m.items.FindByName(name, ln); ok {
		return itemstore.Item{}, domainerrors.Validationf("%s %q already exists", m.kind.EntityKind(), existing.Name).
			WithDetails(map[string]string{"name": "is already taken"})
	}
	if ln != "" && !m.oracle.CanCreate(ln) {
		m.oracle.Request(ln)
		return itemstore.Item{}, domainerrors.Restrictionf("cannot create %s in this linked notebook", m.kind.EntityKind())
	}

	it := itemstore.Item{
		LocalID:            m.newLocalID(string(m.kind.EntityKind())),
		Name:               name,
		LinkedNotebookGUID: ln,
		Synchronizable:     !m.account.IsLocal(),
		Dirty:              true,
		CanCreateNotes:     true,
		CanUpdateNotes:     true,
		CanUpdate:          true,
		CanRename:          true,
	}

	switch m.kind.Nesting() {
	case NestByParent:
		if parentName := validation.Normalize(req.ParentName); parentName != "" {
			parent, ok := m.items.FindByName(parentName, ln)
			if !ok {
				return itemstore.Item{}, domainerrors.NotFoundf("parent %s %q not found", m.kind.EntityKind(), parentName)
			}
			it.ParentLocalID = parent.LocalID
			it.ParentGUID = parent.GUID
		}
	case NestByStack:
		if stack := validation.Normalize(req.Stack); stack != "" {
			if err := m.validator.StackName(stack); err != nil {
				return itemstore.Item{}, err
			}
			it.Stack = stack
		}
	}
	return it, nil
}

// Remove removes an item that was never synchronized. Its children move to its
// parent, are marked dirty and get updated; exactly one expunge is sent for
// the item itself.
func (m *Model[E]) Remove(idx Index) error {
	n, err := m.nodeOrError(idx)
	if err != nil {
		return m.fail(err)
	}
	it, ok := m.itemOf(n)
	if !ok {
		return m.fail(domainerrors.Structural("only items can be removed"))
	}
	if it.IsSynchronized() {
		return m.fail(domainerrors.Structuralf("%s %q is synchronized and cannot be removed", m.kind.EntityKind(), it.Name))
	}

	var syncedDescendant string
	m.tree.Walk(n, func(d tree.NodeID) bool {
		if d == n {
			return true
		}
		if child, ok := m.itemOf(d); ok && child.IsSynchronized() {
			syncedDescendant = child.Name
			return false
		}
		return true
	})
	if syncedDescendant != "" {
		return m.fail(domainerrors.Structuralf("%s %q has synchronized descendant %q and cannot be removed",
			m.kind.EntityKind(), it.Name, syncedDescendant))
	}
	if err := m.canUpdate(it); err != nil {
		return m.fail(err)
	}

	return m.fail(m.removeEntity(n, true))
}

// removeEntity re-homes the children of n, then removes n and its item.
func (m *Model[E]) removeEntity(n tree.NodeID, expunge bool) error {
	it, ok := m.itemOf(n)
	if !ok {
		return domainerrors.InternalConsistencyf("node %d is not an item", n)
	}
	parent := m.tree.Parent(n)

	m.emit(Event{Type: EventAboutToRemoveItems, LocalIDs: []string{it.LocalID}})

	for _, child := range m.tree.Children(n) {
		childItem, ok := m.itemOf(child)
		if !ok {
			continue
		}
		target := parent
		if !m.acceptsChild(parent, childItem) {
			root, err := m.partitionRoot(childItem.LinkedNotebookGUID)
			if err != nil {
				return err
			}
			target = root
		}
		if err := m.moveNode(child, target); err != nil {
			return err
		}
		m.setParentFields(&childItem, target)
		childItem.Dirty = true
		if err := m.items.Replace(childItem.LocalID, childItem); err != nil {
			return err
		}
		m.dataChanged(child)
		m.scheduleUpdate(childItem.LocalID)
	}

	m.removeSubtree(n)
	m.items.Erase(it.LocalID)
	m.cache.Remove(it.LocalID)
	delete(m.pending.editedWhileCreating, it.LocalID)
	m.emit(Event{Type: EventRemovedItems, LocalIDs: []string{it.LocalID}})
	m.pruneGroups(parent)

	if expunge {
		m.requestExpunge(it.LocalID)
	}
	return nil
}

// acceptsChild reports whether parent may hold the item.
func (m *Model[E]) acceptsChild(parent tree.NodeID, it itemstore.Item) bool {
	if !m.tree.Contains(parent) || m.partitionOf(parent) != it.LinkedNotebookGUID {
		return false
	}
	switch p := m.tree.Payload(parent).(type) {
	case tree.Entity:
		return m.kind.Nesting() == NestByParent
	case tree.Group:
		return p.Key.Kind == tree.GroupLinkedNotebook || m.kind.Nesting() == NestByStack
	case tree.Root:
		return p.AllItems
	}
	return false
}

// setParentFields writes the parent reference implied by placing it under target.
func (m *Model[E]) setParentFields(it *itemstore.Item, target tree.NodeID) {
	switch m.kind.Nesting() {
	case NestByParent:
		it.ParentLocalID, it.ParentGUID = "", ""
		if parent, ok := m.itemOf(target); ok {
			it.ParentLocalID = parent.LocalID
			it.ParentGUID = parent.GUID
		}
	case NestByStack:
		it.Stack = ""
		if g, ok := m.tree.Payload(target).(tree.Group); ok && g.Key.Kind == tree.GroupStack {
			it.Stack = g.Key.Name
		}
	}
}

// SetData edits the cell at idx: names, the synchronizable, default, last
// used and favorited flags are editable.
func (m *Model[E]) SetData(idx Index, value any) error {
	n, err := m.nodeOrError(idx)
	if err != nil {
		return m.fail(err)
	}
	if idx.Column < 0 || idx.Column >= len(m.columns) {
		return m.fail(domainerrors.NotFoundf("no column %d", idx.Column))
	}
	column := m.columns[idx.Column]

	if g, ok := m.tree.Payload(n).(tree.Group); ok && g.Key.Kind == tree.GroupStack && column == ColumnName {
		name, ok := value.(string)
		if !ok {
			return m.fail(domainerrors.Validationf("stack name must be a string, got %T", value))
		}
		return m.fail(m.renameStack(n, g.Key, name))
	}

	it, ok := m.itemOf(n)
	if !ok {
		return m.fail(domainerrors.Validation("this row cannot be edited"))
	}

	switch column {
	case ColumnName:
		name, ok := value.(string)
		if !ok {
			return m.fail(domainerrors.Validationf("name must be a string, got %T", value))
		}
		return m.fail(m.rename(n, it, name))
	case ColumnSynchronizable, ColumnDefault, ColumnLastUsed, ColumnFavorited:
		flag, ok := value.(bool)
		if !ok {
			return m.fail(domainerrors.Validationf("%s must be a boolean, got %T", column, value))
		}
		switch column {
		case ColumnSynchronizable:
			return m.fail(m.setSynchronizable(n, it, flag))
		case ColumnDefault:
			return m.fail(m.setDefault(n, it, flag))
		case ColumnLastUsed:
			return m.fail(m.setLastUsed(n, it, flag))
		default:
			return m.fail(m.setFavorited(n, it, flag))
		}
	}
	return m.fail(domainerrors.Validationf("column %s is read only", column))
}

// ItemEdit lists the changes of one Edit. Nil fields are left alone.
type ItemEdit struct {
	Name           *string
	Synchronizable *bool
	Default        *bool
	LastUsed       *bool
	Favorited      *bool
}

// Edit applies every change of e to the item at idx, or none of them: each
// change is checked before the first one is made.
func (m *Model[E]) Edit(idx Index, e ItemEdit) error {
	n, err := m.nodeOrError(idx)
	if err != nil {
		return m.fail(err)
	}
	it, ok := m.itemOf(n)
	if !ok {
		return m.fail(domainerrors.Validation("this row cannot be edited"))
	}
	if err := m.checkEdit(it, e); err != nil {
		return m.fail(err)
	}
	localID := it.LocalID

	if e.Name != nil {
		if err := m.rename(n, it, *e.Name); err != nil {
			return m.fail(err)
		}
	}
	steps := []struct {
		value *bool
		apply func(tree.NodeID, itemstore.Item, bool) error
	}{
		{e.Synchronizable, m.setSynchronizable},
		{e.Default, m.setDefault},
		{e.LastUsed, m.setLastUsed},
		{e.Favorited, m.setFavorited},
	}
	for _, step := range steps {
		if step.value == nil {
			continue
		}
		// Earlier steps may have changed the item.
		if it, ok = m.itemOf(n); !ok {
			return m.fail(domainerrors.InternalConsistencyf("item %s vanished during edit", localID))
		}
		if err := step.apply(n, it, *step.value); err != nil {
			return m.fail(err)
		}
	}
	return nil
}

func (m *Model[E]) checkEdit(it itemstore.Item, e ItemEdit) error {
	if e.Name != nil {
		if _, err := m.checkRename(it, *e.Name); err != nil {
			return err
		}
	}
	if e.Synchronizable != nil {
		if err := m.checkSynchronizable(it, *e.Synchronizable); err != nil {
			return err
		}
	}
	if e.Default != nil {
		if err := m.checkDefault(it, *e.Default); err != nil {
			return err
		}
	}
	if e.LastUsed != nil {
		if err := m.checkLastUsed(it, *e.LastUsed); err != nil {
			return err
		}
	}
	return nil
}

// SetFavorited marks the item at idx as favorited or not.
func (m *Model[E]) SetFavorited(idx Index, favorited bool) error {
	n, err := m.nodeOrError(idx)
	if err != nil {
		return m.fail(err)
	}
	it, ok := m.itemOf(n)
	if !ok {
		return m.fail(domainerrors.Validation("only items can be favorited"))
	}
	return m.fail(m.setFavorited(n, it, favorited))
}

// updateItem stores the result of fn applied to the item of n, notifies the
// view and sends the update.
func (m *Model[E]) updateItem(n tree.NodeID, localID string, fn func(*itemstore.Item)) error {
	m.emit(Event{Type: EventAboutToUpdateItem, LocalIDs: []string{localID}})
	if _, err := m.items.Update(localID, fn); err != nil {
		return err
	}
	m.dataChanged(n)
	m.emit(Event{Type: EventUpdatedItem, LocalIDs: []string{localID}})
	m.scheduleUpdate(localID)
	return nil
}

// checkRename returns the normalized new name of it, or why it cannot be
// renamed to raw.
func (m *Model[E]) checkRename(it itemstore.Item, raw string) (string, error) {
	name := validation.Normalize(raw)
	if name == it.Name {
		return name, nil
	}
	if err := m.kind.ValidateName(name); err != nil {
		return "", err
	}
	if other, ok := m.items.FindByName(name, it.LinkedNotebookGUID); ok && other.LocalID != it.LocalID {
		return "", domainerrors.Validationf("%s %q already exists", m.kind.EntityKind(), other.Name).
			WithDetails(map[string]string{"name": "is already taken"})
	}
	if err := m.canUpdate(it); err != nil {
		return "", err
	}
	if m.kind.Nesting() == NestByStack && !it.CanRename {
		return "", domainerrors.Restrictionf("%s %q cannot be renamed", m.kind.EntityKind(), it.Name)
	}
	return name, nil
}

func (m *Model[E]) rename(n tree.NodeID, it itemstore.Item, raw string) error {
	name, err := m.checkRename(it, raw)
	if err != nil || name == it.Name {
		return err
	}

	m.emit(Event{Type: EventAboutToUpdateItem, LocalIDs: []string{it.LocalID}})
	if _, err := m.items.Update(it.LocalID, func(it *itemstore.Item) {
		it.Name = name
		it.Dirty = true
	}); err != nil {
		return err
	}
	if err := m.reposition(n); err != nil {
		return err
	}
	m.dataChanged(n)
	m.emit(Event{Type: EventUpdatedItem, LocalIDs: []string{it.LocalID}})
	m.scheduleUpdate(it.LocalID)
	return nil
}

// setSynchronizable turns a local item into a synchronizable one. A
// synchronizable tag cannot have local ancestors, so they follow. Going back
// is not possible.
func (m *Model[E]) setSynchronizable(n tree.NodeID, it itemstore.Item, synchronizable bool) error {
	if err := m.checkSynchronizable(it, synchronizable); err != nil || synchronizable == it.Synchronizable {
		return err
	}

	chain := []tree.NodeID{n}
	for p := m.tree.Parent(n); ; p = m.tree.Parent(p) {
		parent, ok := m.itemOf(p)
		if !ok || parent.Synchronizable {
			break
		}
		chain = append(chain, p)
	}

	for _, node := range chain {
		item, _ := m.itemOf(node)
		if err := m.updateItem(node, item.LocalID, func(it *itemstore.Item) {
			it.Synchronizable = true
			it.Dirty = true
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model[E]) checkSynchronizable(it itemstore.Item, synchronizable bool) error {
	if synchronizable == it.Synchronizable {
		return nil
	}
	if !synchronizable {
		return domainerrors.Validationf("%s %q is synchronizable and cannot be made local", m.kind.EntityKind(), it.Name)
	}
	if m.account.IsLocal() {
		return domainerrors.Validation("items of a local account cannot be synchronizable")
	}
	return m.canUpdate(it)
}

// setDefault makes the notebook the only default one. The default notebook
// cannot be unset directly; another one has to become default instead.
func (m *Model[E]) setDefault(n tree.NodeID, it itemstore.Item, isDefault bool) error {
	if err := m.checkDefault(it, isDefault); err != nil || isDefault == it.Default {
		return err
	}
	return m.setExclusive(n, it.LocalID, func(it *itemstore.Item) *bool { return &it.Default })
}

func (m *Model[E]) checkDefault(it itemstore.Item, isDefault bool) error {
	if m.ColumnIndex(ColumnDefault) < 0 {
		return domainerrors.Validationf("%s items have no default flag", m.kind.EntityKind())
	}
	if isDefault == it.Default {
		return nil
	}
	if !isDefault {
		return domainerrors.Validation("the default notebook cannot be unset, make another notebook default instead")
	}
	if it.LinkedNotebookGUID != "" {
		return domainerrors.Restriction("a notebook of a linked notebook cannot be default")
	}
	return nil
}

// setLastUsed makes the notebook the only last used one, or clears the flag.
func (m *Model[E]) setLastUsed(n tree.NodeID, it itemstore.Item, lastUsed bool) error {
	if err := m.checkLastUsed(it, lastUsed); err != nil || lastUsed == it.LastUsed {
		return err
	}
	if !lastUsed {
		return m.updateItem(n, it.LocalID, func(it *itemstore.Item) {
			it.LastUsed = false
			it.Dirty = true
		})
	}
	return m.setExclusive(n, it.LocalID, func(it *itemstore.Item) *bool { return &it.LastUsed })
}

// setExclusive sets the flag field picks on one item after clearing it on
// every other item holding it.
func (m *Model[E]) setExclusive(n tree.NodeID, localID string, field func(*itemstore.Item) *bool) error {
	var holders []string
	for other := range m.items.All() {
		if other.LocalID != localID && *field(&other) {
			holders = append(holders, other.LocalID)
		}
	}
	for _, holder := range holders {
		hn, ok := m.nodeOfEntity(holder)
		if !ok {
			continue
		}
		if err := m.updateItem(hn, holder, func(it *itemstore.Item) {
			*field(it) = false
			it.Dirty = true
		}); err != nil {
			return err
		}
	}
	return m.updateItem(n, localID, func(it *itemstore.Item) {
		*field(it) = true
		it.Dirty = true
	})
}

func (m *Model[E]) checkLastUsed(it itemstore.Item, lastUsed bool) error {
	if m.ColumnIndex(ColumnLastUsed) < 0 {
		return domainerrors.Validationf("%s items have no last used flag", m.kind.EntityKind())
	}
	if lastUsed && !it.LastUsed && it.LinkedNotebookGUID != "" {
		return domainerrors.Restriction("a notebook of a linked notebook cannot be last used")
	}
	return nil
}

func (m *Model[E]) setFavorited(n tree.NodeID, it itemstore.Item, favorited bool) error {
	if favorited == it.Favorited {
		return nil
	}
	return m.updateItem(n, it.LocalID, func(it *itemstore.Item) {
		it.Favorited = favorited
	})
}

// unsupported reports an operation the kind does not offer.
func (m *Model[E]) unsupported(op string) error {
	return domainerrors.Validation(fmt.Sprintf("%s is not supported for %ss", op, m.kind.EntityKind()))
}
