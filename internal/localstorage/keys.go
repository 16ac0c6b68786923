package localstorage

import (
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes.
const (
	tagPrefix            = "tag:"                 // tag:{localID} → Tag JSON
	notebookPrefix       = "notebook:"            // notebook:{localID} → Notebook JSON
	linkedNotebookPrefix = "linkednotebook:"      // linkednotebook:{guid} → LinkedNotebook JSON
	notePrefix           = "note:"                // note:{localID} → Note JSON
	tagChildrenIndex     = "idx:tags:parent:"     // idx:tags:parent:{parentID}:{childID} → empty
	notebookNotesIndex   = "idx:notes:notebook:"  // idx:notes:notebook:{notebookID}:{noteID} → empty
	tagNotesIndex        = "idx:notes:tag:"       // idx:notes:tag:{tagID}:{noteID} → empty
)

// recordKey builds the key of a record.
// Keys handed to txn.Set must stay untouched until commit, so every call
// allocates.
func recordKey(prefix, id string) []byte {
	return []byte(prefix + id)
}

// indexKey builds the key linking owner to member in an index.
func indexKey(index, owner, member string) []byte {
	return []byte(index + owner + ":" + member)
}

// indexPrefix builds the prefix shared by every member of owner in an index.
func indexPrefix(index, owner string) []byte {
	return []byte(index + owner + ":")
}

// splitIndexKey parses the owner and member from the key of an index entry.
// Members never contain a colon.
func splitIndexKey(index string, key []byte) (owner, member string, ok bool) {
	rest, found := strings.CutPrefix(string(key), index)
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// exists checks if a key exists.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// members returns the member ids indexed under prefix.
func members(txn *badger.Txn, prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false // Only need keys
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	return ids
}

// countPrefix counts the keys starting with prefix.
func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}
