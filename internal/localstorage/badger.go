package localstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/logger"
)

// BadgerStorage keeps the local database in badger.
type BadgerStorage struct {
	db     *badger.DB
	logger *slog.Logger

	tags      *badgerEntities[domain.Tag]
	notebooks *badgerEntities[domain.Notebook]
}

// OpenBadger opens the badger database at path. With inMemory set the path is
// ignored and nothing touches the disk.
func OpenBadger(path string, inMemory bool, log *slog.Logger) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = !inMemory  // Sync writes to disk to survive crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &BadgerStorage{
		db:     db,
		logger: logger.OrDiscard(log),
	}
	s.tags = &badgerEntities[domain.Tag]{
		db:         db,
		prefix:     tagPrefix,
		acc:        TagAccessors,
		childIndex: tagChildrenIndex,
		parent:     func(t domain.Tag) string { return t.ParentLocalID },
		noteIndex:  tagNotesIndex,
	}
	s.notebooks = &badgerEntities[domain.Notebook]{
		db:        db,
		prefix:    notebookPrefix,
		acc:       NotebookAccessors,
		noteIndex: notebookNotesIndex,
		onExpunge: s.expungeNotebookNotes,
	}

	s.logger.Info("Badger database opened successfully", "path", path, "in_memory", inMemory)
	return s, nil
}

// Close gracefully closes the database connection.
func (s *BadgerStorage) Close() error {
	s.logger.Info("Closing database connection")
	return s.db.Close()
}

// Tags returns the tag records.
func (s *BadgerStorage) Tags() EntityStore[domain.Tag] { return s.tags }

// Notebooks returns the notebook records.
func (s *BadgerStorage) Notebooks() EntityStore[domain.Notebook] { return s.notebooks }

// PutLinkedNotebook inserts or replaces a linked notebook.
func (s *BadgerStorage) PutLinkedNotebook(ctx context.Context, ln domain.LinkedNotebook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ln.GUID == "" {
		return ErrInvalidInput.WithMessage("linked notebook without guid")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, recordKey(linkedNotebookPrefix, ln.GUID), ln)
	})
}

// ExpungeLinkedNotebook removes a linked notebook with its tags, notebooks and notes.
func (s *BadgerStorage) ExpungeLinkedNotebook(ctx context.Context, guid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(linkedNotebookPrefix, guid)
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("linked notebook", guid)
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		inPartition := func(lnGUID string) bool { return lnGUID == guid }
		if err := s.tags.removeWhere(txn, inPartition); err != nil {
			return err
		}
		return s.notebooks.removeWhere(txn, inPartition)
	})
}

// ListLinkedNotebooks returns linked notebooks ordered by owner username.
func (s *BadgerStorage) ListLinkedNotebooks(ctx context.Context, opts backend.ListOptions) ([]domain.LinkedNotebook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var all []domain.LinkedNotebook
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		all, err = scan[domain.LinkedNotebook](txn, []byte(linkedNotebookPrefix))
		return err
	})
	if err != nil {
		return nil, err
	}
	sortLinkedNotebooks(all, opts.Direction)
	return window(all, opts.Offset, opts.Limit), nil
}

// FindRestrictions returns the restrictions of the notebook shared through a
// linked notebook.
func (s *BadgerStorage) FindRestrictions(ctx context.Context, linkedNotebookGUID string) (*domain.NotebookRestrictions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var notebooks []domain.Notebook
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		notebooks, err = scan[domain.Notebook](txn, []byte(notebookPrefix))
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, nb := range notebooks {
		if nb.LinkedNotebookGUID == linkedNotebookGUID {
			return nb.Clone().Restrictions, nil
		}
	}
	return nil, notFound("notebook of linked notebook", linkedNotebookGUID)
}

// PutNote inserts or replaces a note and returns the version it replaced.
func (s *BadgerStorage) PutNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if note.LocalID == "" {
		return nil, ErrInvalidInput.WithMessage("note without local id")
	}
	var prev *domain.Note
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		if prev, err = deleteNote(txn, note.LocalID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := setJSON(txn, recordKey(notePrefix, note.LocalID), note); err != nil {
			return err
		}
		return indexNote(txn, note)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// ExpungeNote removes a note and returns it.
func (s *BadgerStorage) ExpungeNote(ctx context.Context, localID string) (*domain.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var removed *domain.Note
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		removed, err = deleteNote(txn, localID)
		return err
	})
	return removed, err
}

func (s *BadgerStorage) expungeNotebookNotes(txn *badger.Txn, notebookID string) error {
	for _, noteID := range members(txn, indexPrefix(notebookNotesIndex, notebookID)) {
		if _, err := deleteNote(txn, noteID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func indexNote(txn *badger.Txn, note domain.Note) error {
	if note.NotebookLocalID != "" {
		if err := txn.Set(indexKey(notebookNotesIndex, note.NotebookLocalID, note.LocalID), nil); err != nil {
			return err
		}
	}
	for _, tagID := range note.TagLocalIDs {
		if err := txn.Set(indexKey(tagNotesIndex, tagID, note.LocalID), nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteNote removes a note with its index entries and returns it.
func deleteNote(txn *badger.Txn, localID string) (*domain.Note, error) {
	key := recordKey(notePrefix, localID)
	var note domain.Note
	if err := getJSON(txn, key, &note); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound("note", localID)
		}
		return nil, err
	}
	if note.NotebookLocalID != "" {
		if err := txn.Delete(indexKey(notebookNotesIndex, note.NotebookLocalID, localID)); err != nil {
			return nil, err
		}
	}
	for _, tagID := range note.TagLocalIDs {
		if err := txn.Delete(indexKey(tagNotesIndex, tagID, localID)); err != nil {
			return nil, err
		}
	}
	if err := txn.Delete(key); err != nil {
		return nil, err
	}
	return &note, nil
}

// badgerEntities stores the records of one entity kind.
type badgerEntities[E any] struct {
	db     *badger.DB
	prefix string
	acc    Accessors[E]
	// childIndex and parent are set for kinds that nest.
	childIndex string
	parent     func(E) string
	noteIndex  string
	// onExpunge runs inside the expunge transaction for every removed record.
	onExpunge func(txn *badger.Txn, localID string) error
}

func (b *badgerEntities[E]) Add(ctx context.Context, entity E) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	localID := b.acc.LocalID(entity)
	if localID == "" {
		return ErrInvalidInput.WithMessage(b.acc.Kind + " without local id")
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := recordKey(b.prefix, localID)
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if ok {
			return alreadyExists(b.acc.Kind, localID)
		}
		if err := setJSON(txn, key, entity); err != nil {
			return err
		}
		return b.index(txn, entity)
	})
}

func (b *badgerEntities[E]) Update(ctx context.Context, entity E) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	localID := b.acc.LocalID(entity)

	return b.db.Update(func(txn *badger.Txn) error {
		key := recordKey(b.prefix, localID)
		var old E
		if err := getJSON(txn, key, &old); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(b.acc.Kind, localID)
			}
			return err
		}
		if err := b.unindex(txn, old); err != nil {
			return err
		}
		if err := setJSON(txn, key, entity); err != nil {
			return err
		}
		return b.index(txn, entity)
	})
}

func (b *badgerEntities[E]) Find(ctx context.Context, localID string) (E, error) {
	var entity E
	if err := ctx.Err(); err != nil {
		return entity, err
	}

	err := b.db.View(func(txn *badger.Txn) error {
		err := getJSON(txn, recordKey(b.prefix, localID), &entity)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(b.acc.Kind, localID)
		}
		return err
	})
	return entity, err
}

func (b *badgerEntities[E]) List(ctx context.Context, opts backend.ListOptions) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var all []E
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		all, err = scan[E](txn, []byte(b.prefix))
		return err
	})
	if err != nil {
		return nil, err
	}
	return Page(all, opts, b.acc), nil
}

// Expunge removes the entity and, for nesting kinds, every descendant.
func (b *badgerEntities[E]) Expunge(ctx context.Context, localID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var removed []string
	err := b.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, recordKey(b.prefix, localID))
		if err != nil {
			return err
		}
		if !ok {
			return notFound(b.acc.Kind, localID)
		}

		ids := []string{localID}
		seen := map[string]bool{localID: true}
		for i := 0; i < len(ids) && b.childIndex != ""; i++ {
			for _, child := range members(txn, indexPrefix(b.childIndex, ids[i])) {
				if !seen[child] {
					seen[child] = true
					ids = append(ids, child)
				}
			}
		}

		for _, id := range ids {
			if err := b.remove(txn, id); err != nil {
				return err
			}
		}
		removed = ids[1:]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (b *badgerEntities[E]) NoteCount(ctx context.Context, localID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := b.db.View(func(txn *badger.Txn) error {
		n = countPrefix(txn, indexPrefix(b.noteIndex, localID))
		return nil
	})
	return n, err
}

func (b *badgerEntities[E]) NoteCounts(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(b.noteIndex)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if owner, _, ok := splitIndexKey(b.noteIndex, it.Item().Key()); ok {
				counts[owner]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// remove deletes one record with its index entries. Missing records are skipped.
func (b *badgerEntities[E]) remove(txn *badger.Txn, localID string) error {
	key := recordKey(b.prefix, localID)
	var entity E
	if err := getJSON(txn, key, &entity); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if err := b.unindex(txn, entity); err != nil {
		return err
	}
	if err := txn.Delete(key); err != nil {
		return err
	}
	if b.onExpunge != nil {
		return b.onExpunge(txn, localID)
	}
	return nil
}

// removeWhere deletes every record whose linked notebook guid matches.
func (b *badgerEntities[E]) removeWhere(txn *badger.Txn, match func(linkedNotebookGUID string) bool) error {
	all, err := scan[E](txn, []byte(b.prefix))
	if err != nil {
		return err
	}
	for _, e := range all {
		if !match(b.acc.LinkedNotebookGUID(e)) {
			continue
		}
		if err := b.remove(txn, b.acc.LocalID(e)); err != nil {
			return err
		}
	}
	return nil
}

func (b *badgerEntities[E]) index(txn *badger.Txn, entity E) error {
	if b.parent == nil {
		return nil
	}
	parent := b.parent(entity)
	if parent == "" {
		return nil
	}
	return txn.Set(indexKey(b.childIndex, parent, b.acc.LocalID(entity)), nil)
}

func (b *badgerEntities[E]) unindex(txn *badger.Txn, entity E) error {
	if b.parent == nil {
		return nil
	}
	parent := b.parent(entity)
	if parent == "" {
		return nil
	}
	return txn.Delete(indexKey(b.childIndex, parent, b.acc.LocalID(entity)))
}

// getJSON retrieves a value by key.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// setJSON stores a value by key.
func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set(key, data)
}

// scan decodes every record under prefix.
func scan[T any](txn *badger.Txn, prefix []byte) ([]T, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var out []T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var v T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// sortLinkedNotebooks orders linked notebooks by owner username, then guid.
func sortLinkedNotebooks(lns []domain.LinkedNotebook, dir backend.Direction) {
	slices.SortFunc(lns, func(a, b domain.LinkedNotebook) int {
		c := strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
		if c == 0 {
			c = strings.Compare(a.GUID, b.GUID)
		}
		if dir == backend.Descending {
			return -c
		}
		return c
	})
}
