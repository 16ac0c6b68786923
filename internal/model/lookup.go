package model

import (
	"slices"

	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/tree"
)

// IndexForLocalID returns the index of the item with localID.
func (m *Model[E]) IndexForLocalID(localID string) (Index, bool) {
	n, ok := m.nodeOfEntity(localID)
	if !ok {
		return Index{}, false
	}
	return m.indexOf(n, 0), true
}

// IndexForName returns the index of the item named name, case-insensitively,
// within the partition of linkedNotebookGUID.
func (m *Model[E]) IndexForName(name, linkedNotebookGUID string) (Index, bool) {
	it, ok := m.items.FindByName(name, linkedNotebookGUID)
	if !ok {
		return Index{}, false
	}
	return m.IndexForLocalID(it.LocalID)
}

// IndexForLinkedNotebookGUID returns the index of a linked notebook group.
func (m *Model[E]) IndexForLinkedNotebookGUID(guid string) (Index, bool) {
	n, ok := m.nodeOfGroup(tree.LinkedNotebookGroup(guid))
	if !ok {
		return Index{}, false
	}
	return m.indexOf(n, 0), true
}

// IndexForStack returns the index of a notebook stack.
func (m *Model[E]) IndexForStack(stack, linkedNotebookGUID string) (Index, bool) {
	n, ok := m.nodeOfGroup(tree.StackGroup(stack, linkedNotebookGUID))
	if !ok {
		return Index{}, false
	}
	return m.indexOf(n, 0), true
}

// AllItemsIndex returns the index of the all items root.
func (m *Model[E]) AllItemsIndex() Index {
	return m.indexOf(m.tree.AllItems(), 0)
}

// ItemNames returns the sorted names of the items of one partition.
func (m *Model[E]) ItemNames(linkedNotebookGUID string) []string {
	var names []string
	for it := range m.items.All() {
		if it.LinkedNotebookGUID == linkedNotebookGUID {
			names = append(names, it.Name)
		}
	}
	slices.SortFunc(names, m.collator.CompareString)
	return names
}

// Stacks returns the sorted stack names of one partition.
func (m *Model[E]) Stacks(linkedNotebookGUID string) []string {
	seen := make(map[string]struct{})
	var stacks []string
	for it := range m.items.All() {
		if it.Stack == "" || it.LinkedNotebookGUID != linkedNotebookGUID {
			continue
		}
		if _, ok := seen[it.Stack]; ok {
			continue
		}
		seen[it.Stack] = struct{}{}
		stacks = append(stacks, it.Stack)
	}
	slices.SortFunc(stacks, m.collator.CompareString)
	return stacks
}

// LinkedNotebookOwners returns the owner usernames known per linked notebook guid.
func (m *Model[E]) LinkedNotebookOwners() map[string]string {
	owners := make(map[string]string, len(m.lnOwners))
	for guid, owner := range m.lnOwners {
		owners[guid] = owner
	}
	return owners
}

// NodeView is a snapshot of one node and its subtree.
type NodeView struct {
	Index    Index           `json:"index"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Item     *itemstore.Item `json:"item,omitempty"`
	Flags    Flag            `json:"flags"`
	Children []*NodeView     `json:"children,omitempty"`
}

// Node types of a NodeView.
const (
	NodeTypeAllItems       = "all_items"
	NodeTypeItem           = "item"
	NodeTypeStack          = "stack"
	NodeTypeLinkedNotebook = "linked_notebook"
)

// Snapshot returns the visible tree starting at the all items root.
func (m *Model[E]) Snapshot() *NodeView {
	root := m.tree.AllItems()
	views := map[tree.NodeID]*NodeView{}
	m.tree.Walk(root, func(n tree.NodeID) bool {
		v := m.viewOf(n)
		views[n] = v
		if n != root {
			parent := views[m.tree.Parent(n)]
			parent.Children = append(parent.Children, v)
		}
		return true
	})
	return views[root]
}

func (m *Model[E]) viewOf(n tree.NodeID) *NodeView {
	idx := m.indexOf(n, 0)
	v := &NodeView{Index: idx, Name: m.nodeName(n), Flags: m.Flags(idx)}
	switch p := m.tree.Payload(n).(type) {
	case tree.Root:
		v.Type = NodeTypeAllItems
	case tree.Group:
		v.Type = NodeTypeLinkedNotebook
		if p.Key.Kind == tree.GroupStack {
			v.Type = NodeTypeStack
		}
	case tree.Entity:
		v.Type = NodeTypeItem
		if it, ok := m.items.Find(p.LocalID); ok {
			v.Item = &it
		}
	}
	return v
}
