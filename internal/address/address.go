// Package address maps the opaque integers a view layer uses to reference tree
// nodes to the domain keys those nodes stand for.
package address

import "fmt"

// Address is an opaque, stable reference to a tree node.
type Address uint64

const (
	// None never refers to a node.
	None Address = 0
	// AllItems always refers to the all items root.
	AllItems Address = 1

	firstAllocated Address = 2
)

// KeyType says what a Key's value means.
type KeyType int

// Key types.
const (
	KeyAllItems KeyType = iota
	// KeyEntity keys an entity by local id.
	KeyEntity
	// KeyStack keys a stack by name; Parent holds the linked notebook guid of its partition.
	KeyStack
	// KeyLinkedNotebook keys a linked notebook group by guid.
	KeyLinkedNotebook
)

// Key is the domain identity of an addressable node.
type Key struct {
	Type   KeyType
	Value  string
	Parent string
}

// EntityKey returns the key of an entity node.
func EntityKey(localID string) Key {
	return Key{Type: KeyEntity, Value: localID}
}

// StackKey returns the key of a stack group node.
func StackKey(stack, linkedNotebookGUID string) Key {
	return Key{Type: KeyStack, Value: stack, Parent: linkedNotebookGUID}
}

// LinkedNotebookKey returns the key of a linked notebook group node.
func LinkedNotebookKey(guid string) Key {
	return Key{Type: KeyLinkedNotebook, Value: guid}
}

func (k Key) String() string {
	switch k.Type {
	case KeyAllItems:
		return "all-items"
	case KeyEntity:
		return "entity:" + k.Value
	case KeyStack:
		return fmt.Sprintf("stack:%s/%s", k.Parent, k.Value)
	case KeyLinkedNotebook:
		return "linked-notebook:" + k.Value
	default:
		return "unknown"
	}
}

// Table is a bidirectional map between addresses and keys. Addresses are
// allocated on first use of a key and are never handed out again, even after
// the key was released.
//
// Table is not safe for concurrent use; it belongs to a single model.
type Table struct {
	byKey     map[Key]Address
	byAddress map[Address]Key
	next      Address
}

// New creates a table that knows only the all items address.
func New() *Table {
	t := &Table{
		byKey:     make(map[Key]Address),
		byAddress: make(map[Address]Key),
		next:      firstAllocated,
	}
	allItems := Key{Type: KeyAllItems}
	t.byKey[allItems] = AllItems
	t.byAddress[AllItems] = allItems
	return t
}

// AddressOf returns the address of k, allocating a fresh one if needed.
func (t *Table) AddressOf(k Key) Address {
	if a, ok := t.byKey[k]; ok {
		return a
	}
	a := t.next
	t.next++
	t.byKey[k] = a
	t.byAddress[a] = k
	return a
}

// Find returns the address of k without allocating.
func (t *Table) Find(k Key) (Address, bool) {
	a, ok := t.byKey[k]
	return a, ok
}

// Lookup returns the key an address refers to.
func (t *Table) Lookup(a Address) (Key, bool) {
	k, ok := t.byAddress[a]
	return k, ok
}

// Release forgets k. Its address stays retired.
func (t *Table) Release(k Key) {
	if k.Type == KeyAllItems {
		return
	}
	a, ok := t.byKey[k]
	if !ok {
		return
	}
	delete(t.byKey, k)
	delete(t.byAddress, a)
}

// Rekey moves the address of from to to, e.g. when a stack gets renamed.
// It returns false if from is unknown or to is already mapped.
func (t *Table) Rekey(from, to Key) bool {
	a, ok := t.byKey[from]
	if !ok {
		return false
	}
	if _, taken := t.byKey[to]; taken {
		return false
	}
	delete(t.byKey, from)
	t.byKey[to] = a
	t.byAddress[a] = to
	return true
}

// Len returns the number of live mappings, the all items address included.
func (t *Table) Len() int {
	return len(t.byKey)
}
