package itemstore

import (
	"iter"
	"maps"
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
)

// Index names.
const (
	IndexParent = "parent"
	IndexName   = "name"
	IndexGroup  = "group"
	IndexStack  = "stack"
)

var upper = cases.Upper(language.Und)

// NameKey is the key under which names are indexed: NFC normalized and upper-cased.
func NameKey(name string) string {
	return upper.String(norm.NFC.String(name))
}

// index is a non-unique secondary index from a derived key to local ids.
type index struct {
	name            string
	keyGen          func(*Item) (string, bool)
	lookupTransform func(string) string // Optional transformation for lookups
	entries         map[string]map[string]struct{}
}

func (idx *index) add(it *Item) {
	key, ok := idx.keyGen(it)
	if !ok {
		return
	}
	set := idx.entries[key]
	if set == nil {
		set = make(map[string]struct{})
		idx.entries[key] = set
	}
	set[it.LocalID] = struct{}{}
}

func (idx *index) remove(it *Item) {
	key, ok := idx.keyGen(it)
	if !ok {
		return
	}
	set := idx.entries[key]
	delete(set, it.LocalID)
	if len(set) == 0 {
		delete(idx.entries, key)
	}
}

// Store keeps items under their primary key and every secondary index. Each
// mutating method updates all indexes before returning, so readers never see
// one view updated and another stale. Items are copied in and out.
//
// Store is not safe for concurrent use; it belongs to a single model.
type Store struct {
	items   map[string]*Item
	indexes map[string]*index
}

// New creates an empty store with the parent, name, group and stack indexes.
func New() *Store {
	s := &Store{
		items:   make(map[string]*Item),
		indexes: make(map[string]*index),
	}
	s.withIndex(IndexParent, func(it *Item) (string, bool) {
		return it.ParentLocalID, true
	}, nil)
	s.withIndex(IndexName, func(it *Item) (string, bool) {
		return NameKey(it.Name), true
	}, NameKey)
	s.withIndex(IndexGroup, func(it *Item) (string, bool) {
		return it.LinkedNotebookGUID, true
	}, nil)
	s.withIndex(IndexStack, func(it *Item) (string, bool) {
		if it.Stack == "" {
			return "", false
		}
		return it.LinkedNotebookGUID + "\x00" + it.Stack, true
	}, nil)
	return s
}

func (s *Store) withIndex(name string, keyGen func(*Item) (string, bool), lookupTransform func(string) string) {
	s.indexes[name] = &index{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
		entries:         make(map[string]map[string]struct{}),
	}
}

// Len returns the number of items.
func (s *Store) Len() int {
	return len(s.items)
}

// Insert adds a new item. Inserting an existing local id is a defect and is rejected.
func (s *Store) Insert(it Item) error {
	if it.LocalID == "" {
		return domainerrors.InternalConsistency("cannot insert item without local id")
	}
	if _, exists := s.items[it.LocalID]; exists {
		return domainerrors.InternalConsistencyf("item %s is already stored", it.LocalID)
	}

	stored := it
	s.items[it.LocalID] = &stored
	for _, idx := range s.indexes {
		idx.add(&stored)
	}
	return nil
}

// Replace overwrites the item stored under localID. The local id itself is immutable.
func (s *Store) Replace(localID string, it Item) error {
	current, ok := s.items[localID]
	if !ok {
		return domainerrors.InternalConsistencyf("item %s is not stored", localID)
	}
	if it.LocalID != localID {
		return domainerrors.InternalConsistencyf("cannot change local id %s to %s", localID, it.LocalID)
	}

	for _, idx := range s.indexes {
		idx.remove(current)
	}
	*current = it
	for _, idx := range s.indexes {
		idx.add(current)
	}
	return nil
}

// Update applies fn to a copy of the stored item and replaces it with the result.
func (s *Store) Update(localID string, fn func(*Item)) (Item, error) {
	it, ok := s.Find(localID)
	if !ok {
		return Item{}, domainerrors.InternalConsistencyf("item %s is not stored", localID)
	}
	fn(&it)
	if err := s.Replace(localID, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Erase removes the item and reports whether it was present.
func (s *Store) Erase(localID string) bool {
	current, ok := s.items[localID]
	if !ok {
		return false
	}
	for _, idx := range s.indexes {
		idx.remove(current)
	}
	delete(s.items, localID)
	return true
}

// Find returns the item stored under localID.
func (s *Store) Find(localID string) (Item, bool) {
	it, ok := s.items[localID]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Contains reports whether localID is stored.
func (s *Store) Contains(localID string) bool {
	_, ok := s.items[localID]
	return ok
}

// ByParent returns the items whose parent tag is parentLocalID. An empty id
// returns top level items.
func (s *Store) ByParent(parentLocalID string) []Item {
	return s.lookup(IndexParent, parentLocalID)
}

// ByName returns the items whose name equals name ignoring case.
func (s *Store) ByName(name string) []Item {
	return s.lookup(IndexName, name)
}

// ByGroup returns the items of one linked notebook. An empty guid returns the
// items owned by the account itself.
func (s *Store) ByGroup(linkedNotebookGUID string) []Item {
	return s.lookup(IndexGroup, linkedNotebookGUID)
}

// ByStack returns the notebooks of the given stack within one partition.
// Stack names are matched exactly.
func (s *Store) ByStack(linkedNotebookGUID, stack string) []Item {
	return s.lookup(IndexStack, linkedNotebookGUID+"\x00"+stack)
}

// FindByName returns the item of a partition whose name equals name ignoring case.
func (s *Store) FindByName(name, linkedNotebookGUID string) (Item, bool) {
	for _, it := range s.ByName(name) {
		if it.LinkedNotebookGUID == linkedNotebookGUID {
			return it, true
		}
	}
	return Item{}, false
}

// All iterates over every item ordered by local id.
func (s *Store) All() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for _, localID := range slices.Sorted(maps.Keys(s.items)) {
			if !yield(*s.items[localID]) {
				return
			}
		}
	}
}

// lookup returns copies of the items under key in the named index, ordered by local id.
func (s *Store) lookup(name, key string) []Item {
	idx := s.indexes[name]
	if idx.lookupTransform != nil {
		key = idx.lookupTransform(key)
	}
	set := idx.entries[key]
	if len(set) == 0 {
		return nil
	}

	out := make([]Item, 0, len(set))
	for _, localID := range slices.Sorted(maps.Keys(set)) {
		out = append(out, *s.items[localID])
	}
	return out
}
