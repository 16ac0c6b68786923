// Package tree implements the node arena of a tree model. Nodes are addressed
// by NodeID; parent and child links are ids, never pointers, and every
// reparent is a detach followed by an attach so cycles cannot be built.
package tree

import (
	"slices"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
)

// NodeID identifies a node within one Tree. Zero means no node.
type NodeID uint64

// None is the zero NodeID.
const None NodeID = 0

type node struct {
	payload  Payload
	parent   NodeID
	children []NodeID
}

// Tree owns every node of a model. It is not safe for concurrent use.
type Tree struct {
	nodes    map[NodeID]*node
	next     NodeID
	root     NodeID
	allItems NodeID
}

// New creates a tree holding the invisible root and its all items child.
func New() *Tree {
	t := &Tree{nodes: make(map[NodeID]*node)}
	t.root = t.NewNode(Root{})
	t.allItems = t.NewNode(Root{AllItems: true})
	t.nodes[t.root].children = []NodeID{t.allItems}
	t.nodes[t.allItems].parent = t.root
	return t
}

// Root returns the invisible top level root.
func (t *Tree) Root() NodeID { return t.root }

// AllItems returns the visible all items root.
func (t *Tree) AllItems() NodeID { return t.allItems }

// Len returns the number of nodes, both roots included.
func (t *Tree) Len() int { return len(t.nodes) }

// NewNode allocates a detached node.
func (t *Tree) NewNode(p Payload) NodeID {
	t.next++
	t.nodes[t.next] = &node{payload: p}
	return t.next
}

// Contains reports whether id is a live node.
func (t *Tree) Contains(id NodeID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Payload returns the payload of id, or nil for unknown ids.
func (t *Tree) Payload(id NodeID) Payload {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return n.payload
}

// SetPayload replaces the payload of a live node.
func (t *Tree) SetPayload(id NodeID, p Payload) {
	if n, ok := t.nodes[id]; ok {
		n.payload = p
	}
}

// Parent returns the parent of id, or None for detached nodes and the root.
func (t *Tree) Parent(id NodeID) NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return None
	}
	return n.parent
}

// Children returns a copy of the ordered children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

// ChildCount returns the number of children of id.
func (t *Tree) ChildCount(id NodeID) int {
	n, ok := t.nodes[id]
	if !ok {
		return 0
	}
	return len(n.children)
}

// ChildAt returns the child of parent at row.
func (t *Tree) ChildAt(parent NodeID, row int) (NodeID, bool) {
	n, ok := t.nodes[parent]
	if !ok || row < 0 || row >= len(n.children) {
		return None, false
	}
	return n.children[row], true
}

// RowOf returns the row of child under parent, or -1 when child is not one of
// its children. Callers must check the result.
func (t *Tree) RowOf(parent, child NodeID) int {
	n, ok := t.nodes[parent]
	if !ok {
		return -1
	}
	return slices.Index(n.children, child)
}

// Row returns the row of id under its own parent, or -1.
func (t *Tree) Row(id NodeID) int {
	return t.RowOf(t.Parent(id), id)
}

// InsertChild attaches the detached node child to parent at row pos.
func (t *Tree) InsertChild(parent NodeID, pos int, child NodeID) error {
	p, ok := t.nodes[parent]
	if !ok {
		return domainerrors.InternalConsistencyf("parent node %d does not exist", parent)
	}
	c, ok := t.nodes[child]
	if !ok {
		return domainerrors.InternalConsistencyf("child node %d does not exist", child)
	}
	if c.parent != None {
		return domainerrors.InternalConsistencyf("node %d is still attached to %d", child, c.parent)
	}
	if pos < 0 || pos > len(p.children) {
		return domainerrors.InternalConsistencyf("row %d out of range for node %d", pos, parent)
	}
	if child == parent || t.IsAncestor(child, parent) {
		return domainerrors.Structural("cannot move an item under its own descendant")
	}

	p.children = slices.Insert(p.children, pos, child)
	c.parent = parent
	return nil
}

// TakeChild detaches and returns the child of parent at row pos.
func (t *Tree) TakeChild(parent NodeID, pos int) (NodeID, error) {
	p, ok := t.nodes[parent]
	if !ok {
		return None, domainerrors.InternalConsistencyf("parent node %d does not exist", parent)
	}
	if pos < 0 || pos >= len(p.children) {
		return None, domainerrors.InternalConsistencyf("row %d out of range for node %d", pos, parent)
	}

	child := p.children[pos]
	p.children = slices.Delete(p.children, pos, pos+1)
	t.nodes[child].parent = None
	return child, nil
}

// Detach takes id out of its parent and returns the row it occupied.
func (t *Tree) Detach(id NodeID) (int, error) {
	parent := t.Parent(id)
	if parent == None {
		return -1, domainerrors.InternalConsistencyf("node %d is not attached", id)
	}
	row := t.RowOf(parent, id)
	if row < 0 {
		return -1, domainerrors.InternalConsistencyf("node %d is missing from its parent %d", id, parent)
	}
	_, err := t.TakeChild(parent, row)
	return row, err
}

// Delete detaches id and frees it together with its whole subtree. It returns
// the freed ids in pre-order. The roots cannot be deleted.
func (t *Tree) Delete(id NodeID) []NodeID {
	if id == t.root || id == t.allItems || !t.Contains(id) {
		return nil
	}
	if t.Parent(id) != None {
		_, _ = t.Detach(id)
	}

	var freed []NodeID
	t.Walk(id, func(n NodeID) bool {
		freed = append(freed, n)
		return true
	})
	for _, n := range freed {
		delete(t.nodes, n)
	}
	return freed
}

// SortChildren stably sorts the children of parent and reports whether the
// order changed.
func (t *Tree) SortChildren(parent NodeID, less func(a, b NodeID) bool) bool {
	p, ok := t.nodes[parent]
	if !ok || len(p.children) < 2 {
		return false
	}

	before := slices.Clone(p.children)
	slices.SortStableFunc(p.children, func(a, b NodeID) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		default:
			return 0
		}
	})
	return !slices.Equal(before, p.children)
}

// IsAncestor reports whether ancestor is a strict ancestor of id.
func (t *Tree) IsAncestor(ancestor, id NodeID) bool {
	for cur := t.Parent(id); cur != None; cur = t.Parent(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Walk visits start and its descendants in pre-order until fn returns false.
// It uses an explicit stack, so deep trees do not grow the goroutine stack.
func (t *Tree) Walk(start NodeID, fn func(NodeID) bool) {
	if !t.Contains(start) {
		return
	}
	stack := []NodeID{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			return
		}
		children := t.nodes[cur].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}
