package model

import (
	"sort"

	"github.com/d1vanov/quentier-sub007/internal/tree"
)

// SortOrder is the direction of the name ordering.
type SortOrder int

// Sort orders.
const (
	Ascending SortOrder = iota
	Descending
)

// Unsorted passed as the column to Sort turns sorting off; new rows are then appended.
const Unsorted = -1

// SortState returns whether sorting by name is active and its order.
func (m *Model[E]) SortState() (bool, SortOrder) {
	return m.sortActive, m.sortOrder
}

// less orders siblings: roots last, groups after entities, then names
// compared case-insensitively with the model's collation in the active order.
func (m *Model[E]) less(a, b tree.NodeID) bool {
	ra, rb := m.rank(a), m.rank(b)
	if ra != rb {
		return ra < rb
	}

	c := m.collator.CompareString(m.nodeName(a), m.nodeName(b))
	if m.sortOrder == Descending {
		return c > 0
	}
	return c < 0
}

// rank groups siblings: entities first, then groups, then roots.
func (m *Model[E]) rank(n tree.NodeID) int {
	switch m.tree.Payload(n).(type) {
	case tree.Entity:
		return 0
	case tree.Group:
		return 1
	default:
		return 2
	}
}

// nodeName is the name a node is sorted by.
func (m *Model[E]) nodeName(n tree.NodeID) string {
	switch p := m.tree.Payload(n).(type) {
	case tree.Entity:
		it, _ := m.items.Find(p.LocalID)
		return it.Name
	case tree.Group:
		return m.groupName(p.Key)
	case tree.Root:
		return m.kind.AllItemsLabel()
	}
	return ""
}

// insertionRow returns the row at which child belongs under parent, ignoring
// child itself if it is already there. Without sorting it is the last row.
func (m *Model[E]) insertionRow(parent, child tree.NodeID) int {
	siblings := m.tree.Children(parent)
	if i := m.tree.RowOf(parent, child); i >= 0 {
		siblings = append(siblings[:i], siblings[i+1:]...)
	}
	if !m.sortActive {
		return len(siblings)
	}
	return sort.Search(len(siblings), func(i int) bool {
		return m.less(child, siblings[i])
	})
}

// Sort orders the whole tree by name. Sorting on any column other than the
// name column does nothing; Unsorted stops keeping rows ordered. Repeating the
// active sort emits nothing.
func (m *Model[E]) Sort(column int, order SortOrder) {
	if column == Unsorted {
		m.sortActive = false
		return
	}
	if column < 0 || column >= len(m.columns) || m.columns[column] != ColumnName {
		return
	}
	if m.sortActive && m.sortOrder == order {
		return
	}

	m.sortActive = true
	m.sortOrder = order

	m.emit(Event{Type: EventAboutToResort})
	m.emit(Event{Type: EventLayoutAboutToBeChanged})

	var parents []tree.NodeID
	m.tree.Walk(m.tree.AllItems(), func(n tree.NodeID) bool {
		if m.tree.ChildCount(n) > 1 {
			parents = append(parents, n)
		}
		return true
	})
	for _, p := range parents {
		m.tree.SortChildren(p, m.less)
	}

	m.remapPersistent()
	m.emit(Event{Type: EventLayoutChanged})
	m.emit(Event{Type: EventResorted})
}
