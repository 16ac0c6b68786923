package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/localstorage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(MemoryPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tag(localID, name, parent string) domain.Tag {
	return domain.Tag{Syncable: domain.Syncable{LocalID: localID}, Name: name, ParentLocalID: parent}
}

func TestOpen_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil)
	require.NoError(t, err)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"tags", "notebooks", "linked_notebooks", "notes", "note_tags"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
	require.NoError(t, s.Close())

	// Re-open should work (schema is idempotent).
	s, err = Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestTags_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	want := domain.Tag{
		Syncable: domain.Syncable{
			LocalID:              "t1",
			GUID:                 "g1",
			LinkedNotebookGUID:   "ln-1",
			UpdateSequenceNumber: 42,
			Dirty:                true,
			Favorited:            true,
		},
		Name:          "Work",
		ParentLocalID: "p1",
		ParentGUID:    "pg1",
	}
	require.NoError(t, s.Tags().Add(ctx, want))

	got, err := s.Tags().Find(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.ErrorIs(t, s.Tags().Add(ctx, want), localstorage.ErrAlreadyExists)
	assert.ErrorIs(t, s.Tags().Add(ctx, tag("", "x", "")), localstorage.ErrInvalidInput)

	want.Name = "Job"
	want.Local = true
	require.NoError(t, s.Tags().Update(ctx, want))
	got, err = s.Tags().Find(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.ErrorIs(t, s.Tags().Update(ctx, tag("missing", "x", "")), localstorage.ErrNotFound)
	_, err = s.Tags().Find(ctx, "missing")
	assert.ErrorIs(t, err, localstorage.ErrNotFound)
}

func TestTags_ExpungeCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.Tags().Add(ctx, tag("root", "Root", "")))
	require.NoError(t, s.Tags().Add(ctx, tag("b", "B", "root")))
	require.NoError(t, s.Tags().Add(ctx, tag("a", "A", "root")))
	require.NoError(t, s.Tags().Add(ctx, tag("a1", "A1", "a")))

	removed, err := s.Tags().Expunge(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a1"}, removed)

	all, err := s.Tags().List(ctx, backend.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.Tags().Expunge(ctx, "root")
	assert.ErrorIs(t, err, localstorage.ErrNotFound)
}

func TestListClause(t *testing.T) {
	clause, args := listClause(backend.ListOptions{
		Offset:             10,
		Limit:              5,
		Order:              backend.OrderUpdateSequenceNumber,
		Direction:          backend.Descending,
		Scope:              backend.ScopeLinkedNotebook,
		LinkedNotebookGUID: "ln-1",
	})
	assert.Equal(t, " WHERE linked_notebook_guid = ? ORDER BY usn DESC, local_id DESC LIMIT ? OFFSET ?", clause)
	assert.Equal(t, []any{"ln-1", 5, 10}, args)

	clause, args = listClause(backend.ListOptions{Offset: 3})
	assert.Equal(t, " ORDER BY name COLLATE NOCASE ASC, local_id ASC LIMIT -1 OFFSET ?", clause)
	assert.Equal(t, []any{3}, args)
}

func TestNotebooks_ListScopes(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	for _, nb := range []domain.Notebook{
		{Syncable: domain.Syncable{LocalID: "n1"}, Name: "beta", Stack: "Work"},
		{Syncable: domain.Syncable{LocalID: "n2"}, Name: "Alpha", Default: true},
		{Syncable: domain.Syncable{LocalID: "n3", LinkedNotebookGUID: "ln-1"}, Name: "Shared"},
	} {
		require.NoError(t, s.Notebooks().Add(ctx, nb))
	}

	own, err := s.Notebooks().List(ctx, backend.ListOptions{Scope: backend.ScopeUserOwn, Order: backend.OrderName})
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "Alpha", own[0].Name)
	assert.True(t, own[0].Default)
	assert.Equal(t, "Work", own[1].Stack)

	linked, err := s.Notebooks().List(ctx, backend.ListOptions{Scope: backend.ScopeLinkedNotebook})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "n3", linked[0].LocalID)

	page, err := s.Notebooks().List(ctx, backend.ListOptions{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "beta", page[0].Name)
}

func TestNotebooks_UpdateAndRestrictions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	nb := domain.Notebook{
		Syncable:     domain.Syncable{LocalID: "n1", LinkedNotebookGUID: "ln-1"},
		Name:         "Shared",
		Restrictions: &domain.NotebookRestrictions{NoUpdateNotebook: true},
	}
	require.NoError(t, s.Notebooks().Add(ctx, nb))

	r, err := s.FindRestrictions(ctx, "ln-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, r.NoUpdateNotebook)

	nb.Restrictions = nil
	nb.Published = true
	require.NoError(t, s.Notebooks().Update(ctx, nb))

	got, err := s.Notebooks().Find(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, nb, got)

	r, err = s.FindRestrictions(ctx, "ln-1")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = s.FindRestrictions(ctx, "ln-2")
	assert.ErrorIs(t, err, localstorage.ErrNotFound)

	assert.ErrorIs(t, s.Notebooks().Update(ctx, domain.Notebook{Syncable: domain.Syncable{LocalID: "x"}}), localstorage.ErrNotFound)
}

func TestNotes_Counts(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	require.NoError(t, s.Notebooks().Add(ctx, domain.Notebook{Syncable: domain.Syncable{LocalID: "nb1"}, Name: "Inbox"}))

	prev, err := s.PutNote(ctx, domain.Note{LocalID: "note-1", NotebookLocalID: "nb1", TagLocalIDs: []string{"t2", "t1"}})
	require.NoError(t, err)
	assert.Nil(t, prev)
	_, err = s.PutNote(ctx, domain.Note{LocalID: "note-2", NotebookLocalID: "nb1", TagLocalIDs: []string{"t1"}})
	require.NoError(t, err)

	prev, err = s.PutNote(ctx, domain.Note{LocalID: "note-1", NotebookLocalID: "nb2"})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, []string{"t2", "t1"}, prev.TagLocalIDs)

	counts, err := s.Notebooks().NoteCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"nb1": 1, "nb2": 1}, counts)

	tagCounts, err := s.Tags().NoteCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t1": 1}, tagCounts)

	removed, err := s.Notebooks().Expunge(ctx, "nb1")
	require.NoError(t, err)
	assert.Empty(t, removed)

	n, err := s.Tags().NoteCount(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, n, "note tags go with the notebook's notes")

	_, err = s.ExpungeNote(ctx, "note-2")
	assert.ErrorIs(t, err, localstorage.ErrNotFound)

	removedNote, err := s.ExpungeNote(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, "nb2", removedNote.NotebookLocalID)
}

func TestLinkedNotebooks_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.PutLinkedNotebook(ctx, domain.LinkedNotebook{GUID: "ln-1", Username: "zoe"}))
	require.NoError(t, s.PutLinkedNotebook(ctx, domain.LinkedNotebook{GUID: "ln-2", Username: "adam"}))
	require.NoError(t, s.PutLinkedNotebook(ctx, domain.LinkedNotebook{GUID: "ln-1", Username: "Zoe", ShareName: "Recipes"}))

	lns, err := s.ListLinkedNotebooks(ctx, backend.ListOptions{})
	require.NoError(t, err)
	require.Len(t, lns, 2)
	assert.Equal(t, "adam", lns[0].Username)
	assert.Equal(t, "Recipes", lns[1].ShareName)

	lnTag := tag("t1", "Shared", "")
	lnTag.LinkedNotebookGUID = "ln-1"
	require.NoError(t, s.Tags().Add(ctx, lnTag))
	require.NoError(t, s.Notebooks().Add(ctx, domain.Notebook{Syncable: domain.Syncable{LocalID: "nb1", LinkedNotebookGUID: "ln-1"}, Name: "Shared"}))
	_, err = s.PutNote(ctx, domain.Note{LocalID: "note-1", NotebookLocalID: "nb1"})
	require.NoError(t, err)

	require.NoError(t, s.ExpungeLinkedNotebook(ctx, "ln-1"))

	_, err = s.Tags().Find(ctx, "t1")
	assert.ErrorIs(t, err, localstorage.ErrNotFound)
	n, err := s.Notebooks().NoteCount(ctx, "nb1")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.ExpungeLinkedNotebook(ctx, "ln-1"), localstorage.ErrNotFound)
}

func TestManager_WithSQLiteStorage(t *testing.T) {
	s := newTestStorage(t)
	m := localstorage.NewManager(s, nil)
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	m.Tags().Add("r1", tag("t1", "Work", ""))
	m.Tags().Add("r2", tag("t1", "Work", ""))

	first := (<-m.Events()).(*backend.Event[domain.Tag])
	assert.NoError(t, first.Err)
	second := (<-m.Events()).(*backend.Event[domain.Tag])
	assert.ErrorIs(t, second.Err, localstorage.ErrAlreadyExists)
}
