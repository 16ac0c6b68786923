package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/model"
)

var errBackend = errors.New("storage unavailable")

type tagEvent = backend.Event[domain.Tag]

func TestListing_Paging(t *testing.T) {
	f := newTagFixture(t, withPageSize[domain.Tag](2))
	f.m.Start()

	first, ok := f.backend.Last(backend.OpList)
	require.True(t, ok)
	assert.Equal(t, 0, first.Options.Offset)
	assert.Equal(t, 2, first.Options.Limit)

	f.m.HandleEvent(&tagEvent{
		Op: backend.OpList, RequestID: first.RequestID, Options: first.Options,
		Page: []domain.Tag{tag("a", "A", ""), tag("b", "B", "")},
	})
	assert.False(t, f.m.AllItemsListed())

	second, ok := f.backend.Last(backend.OpList)
	require.True(t, ok)
	assert.Equal(t, 2, second.Options.Offset)

	f.m.HandleEvent(&tagEvent{
		Op: backend.OpList, RequestID: second.RequestID, Options: second.Options,
		Page: []domain.Tag{tag("c", "C", "")},
	})
	assert.True(t, f.m.AllItemsListed())
	assert.Equal(t, 3, f.m.Len())
	assert.Equal(t, 1, f.emitter.Count(model.EventNotifyAllItemsListed))
	assert.Equal(t, 1, f.backend.Count(backend.OpNoteCounts))
	assert.Equal(t, 2, f.backend.Count(backend.OpList))
}

func TestListing_FailureReported(t *testing.T) {
	f := newTagFixture(t)
	f.m.Start()

	req, ok := f.backend.Last(backend.OpList)
	require.True(t, ok)
	f.m.HandleEvent(&tagEvent{Op: backend.OpList, RequestID: req.RequestID, Err: errBackend})

	assert.False(t, f.m.AllItemsListed())
	errs := f.emitter.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domainerrors.ErrBackend)
	assert.ErrorIs(t, errs[0], errBackend)
}

func TestNoteCounts(t *testing.T) {
	f := newTagFixture(t)
	f.m.Start()
	list, _ := f.backend.Last(backend.OpList)
	f.m.HandleEvent(&tagEvent{
		Op: backend.OpList, RequestID: list.RequestID, Options: list.Options,
		Page: []domain.Tag{tag("a", "A", "")},
	})

	counts, ok := f.backend.Last(backend.OpNoteCounts)
	require.True(t, ok)
	f.m.HandleEvent(&tagEvent{
		Op: backend.OpNoteCounts, RequestID: counts.RequestID,
		NoteCounts: map[string]int{"a": 3, "unknown": 9},
	})
	assert.Equal(t, 3, f.m.Data(f.column(t, "a", model.ColumnNoteCount)))

	// Backend replacements keep the known count.
	renamed := tag("a", "Alpha", "")
	f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: "external", Entity: renamed})
	assert.Equal(t, 3, f.m.Data(f.column(t, "a", model.ColumnNoteCount)))
	assert.Equal(t, "Alpha", f.m.Data(f.index(t, "a")))
}

func TestExternalChanges(t *testing.T) {
	t.Run("unknown update reconciles", func(t *testing.T) {
		f := newTagFixture(t)
		f.list(t, []domain.Tag{tag("a", "A", ""), tag("p", "P", "")})

		moved := tag("a", "A", "p")
		moved.Dirty = true
		f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: "not-ours", Entity: moved})

		assert.Equal(t, f.index(t, "p"), f.m.Parent(f.index(t, "a")))
		assert.Equal(t, 1, f.emitter.Count(model.EventUpdatedItem))
		assert.Empty(t, f.emitter.Errors())
		f.checkTree(t)
	})

	t.Run("unknown add inserts", func(t *testing.T) {
		f := newTagFixture(t)
		f.list(t, nil)

		f.m.HandleEvent(&tagEvent{Op: backend.OpAdd, RequestID: "not-ours", Entity: syncedTag("n", "New", "")})

		idx := f.index(t, "n")
		assert.Equal(t, "New", f.m.Data(idx))
		req, ok := f.backend.Last(backend.OpNoteCount)
		require.True(t, ok)
		assert.Equal(t, "n", req.LocalID)
		f.checkTree(t)
	})

	t.Run("unknown expunge cascades", func(t *testing.T) {
		f := newTagFixture(t)
		f.list(t, []domain.Tag{
			tag("p", "P", ""),
			tag("c", "C", "p"),
			tag("o", "Other", ""),
		})

		f.m.HandleEvent(&tagEvent{
			Op: backend.OpExpunge, RequestID: "not-ours", LocalID: "p", ExpungedChildren: []string{"c"},
		})

		assert.Equal(t, 1, f.m.Len())
		assert.Equal(t, []string{"Other"}, f.names(f.m.AllItemsIndex()))
		f.checkTree(t)
	})

	t.Run("stack change moves notebook", func(t *testing.T) {
		f := newNotebookFixture(t)
		f.list(t, []domain.Notebook{notebook("n", "N", "")})

		f.m.HandleEvent(&backend.Event[domain.Notebook]{
			Op: backend.OpUpdate, RequestID: "not-ours", Entity: notebook("n", "N", "S"),
		})

		stack, ok := f.m.IndexForStack("S", "")
		require.True(t, ok)
		assert.Equal(t, stack, f.m.Parent(f.index(t, "n")))

		f.m.HandleEvent(&backend.Event[domain.Notebook]{
			Op: backend.OpUpdate, RequestID: "not-ours-either", Entity: notebook("n", "N", ""),
		})
		_, ok = f.m.IndexForStack("S", "")
		assert.False(t, ok)
		f.checkTree(t)
	})
}

func TestAdd_FailureRollsBack(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, []domain.Tag{tag("p", "P", "")})

	idx, err := f.m.Create(model.CreateRequest{Name: "New"})
	require.NoError(t, err)
	newID, _ := f.m.Item(idx)

	add, ok := f.backend.Last(backend.OpAdd)
	require.True(t, ok)
	f.m.HandleEvent(&tagEvent{Op: backend.OpAdd, RequestID: add.RequestID, Entity: add.Entity, Err: errBackend})

	_, ok = f.m.IndexForLocalID(newID.LocalID)
	assert.False(t, ok)
	assert.Equal(t, []string{"P"}, f.names(f.m.AllItemsIndex()))
	errs := f.emitter.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domainerrors.ErrBackend)
	assert.Zero(t, f.backend.Count(backend.OpExpunge))
	f.checkTree(t)
}

func TestAdd_SuccessConfirms(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, nil)

	idx, err := f.m.Create(model.CreateRequest{Name: "New"})
	require.NoError(t, err)

	add, _ := f.backend.Last(backend.OpAdd)
	confirmed := add.Entity
	confirmed.GUID = "guid-new"
	confirmed.Dirty = false
	f.m.HandleEvent(&tagEvent{Op: backend.OpAdd, RequestID: add.RequestID, Entity: confirmed})

	it, ok := f.m.Item(idx)
	require.True(t, ok)
	assert.Equal(t, "guid-new", it.GUID)
	assert.False(t, it.Dirty)
	assert.Zero(t, f.m.PendingRequests()[string(backend.OpAdd)])

	// Synchronized now, so it can no longer be removed.
	assert.ErrorIs(t, f.m.Remove(idx), domainerrors.ErrStructural)
}

func TestAdd_EditedWhileInFlight(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, nil)

	idx, err := f.m.Create(model.CreateRequest{Name: "New"})
	require.NoError(t, err)
	require.NoError(t, f.m.SetData(idx, "Newer"))
	assert.Zero(t, f.backend.Count(backend.OpUpdate))

	add, _ := f.backend.Last(backend.OpAdd)
	f.m.HandleEvent(&tagEvent{Op: backend.OpAdd, RequestID: add.RequestID, Entity: add.Entity})

	update, ok := f.backend.Last(backend.OpUpdate)
	require.True(t, ok)
	assert.Equal(t, "Newer", update.Entity.Name)
	assert.Equal(t, "Newer", f.m.Data(f.index(t, add.Entity.LocalID)))
}

func TestAdd_ResultAfterRemovalIgnored(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, nil)

	idx, err := f.m.Create(model.CreateRequest{Name: "New"})
	require.NoError(t, err)
	require.NoError(t, f.m.Remove(idx))

	add, _ := f.backend.Last(backend.OpAdd)
	f.m.HandleEvent(&tagEvent{Op: backend.OpAdd, RequestID: add.RequestID, Entity: add.Entity})

	assert.Zero(t, f.m.Len())
	assert.Equal(t, 1, f.backend.Count(backend.OpExpunge))
	f.checkTree(t)
}

func TestUpdate_ResultAfterExternalExpungeIgnored(t *testing.T) {
	cache, err := entitycache.New[domain.Tag]("tag", 10, nil)
	require.NoError(t, err)
	f := newTagFixture(t, withCache(cache))
	f.list(t, []domain.Tag{syncedTag("a", "A", "")})

	require.NoError(t, f.m.SetData(f.index(t, "a"), "Renamed"))
	update, ok := f.backend.Last(backend.OpUpdate)
	require.True(t, ok)

	f.m.HandleEvent(&tagEvent{Op: backend.OpExpunge, RequestID: "not-ours", LocalID: "a"})
	require.Zero(t, f.m.Len())
	_, cached := cache.Peek("a")
	require.False(t, cached)

	f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: update.RequestID, Entity: update.Entity})

	assert.Zero(t, f.m.Len())
	_, cached = cache.Peek("a")
	assert.False(t, cached)
	assert.Zero(t, f.m.PendingRequests()[string(backend.OpUpdate)])
	f.checkTree(t)
}

func TestUpdate_FindResultAfterExternalExpungeIgnored(t *testing.T) {
	cache, err := entitycache.New[domain.Tag]("tag", 1, nil)
	require.NoError(t, err)
	f := newTagFixture(t, withCache(cache))
	f.list(t, []domain.Tag{syncedTag("a", "A", ""), syncedTag("b", "B", "")})

	// "a" was evicted by "b", so the edit looks it up first.
	require.NoError(t, f.m.SetData(f.index(t, "a"), "Renamed"))
	find, ok := f.backend.Last(backend.OpFind)
	require.True(t, ok)
	require.Equal(t, "a", find.LocalID)

	f.m.HandleEvent(&tagEvent{Op: backend.OpExpunge, RequestID: "not-ours", LocalID: "a"})
	f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: find.RequestID, LocalID: "a", Entity: syncedTag("a", "A", "")})

	assert.Equal(t, 1, f.m.Len())
	_, cached := cache.Peek("a")
	assert.False(t, cached)
	assert.Zero(t, f.backend.Count(backend.OpUpdate))
	f.checkTree(t)
}

func TestUpdate_ResyncResultAfterExternalExpungeIgnored(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, []domain.Tag{syncedTag("a", "A", "")})

	require.NoError(t, f.m.SetData(f.index(t, "a"), "Renamed"))
	update, _ := f.backend.Last(backend.OpUpdate)
	f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: update.RequestID, Err: errBackend})
	find, ok := f.backend.Last(backend.OpFind)
	require.True(t, ok)

	f.m.HandleEvent(&tagEvent{Op: backend.OpExpunge, RequestID: "not-ours", LocalID: "a"})
	f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: find.RequestID, LocalID: "a", Entity: syncedTag("a", "A", "")})

	assert.Zero(t, f.m.Len())
	f.checkTree(t)
}

func TestUpdate_CacheMissFindsFirst(t *testing.T) {
	f := newTagFixture(t, withCacheCapacity[domain.Tag](t, 1))
	original := tag("a", "A", "")
	original.UpdateSequenceNumber = 42
	f.list(t, []domain.Tag{original, tag("b", "B", "")})

	require.NoError(t, f.m.SetData(f.index(t, "a"), "A2"))
	assert.Zero(t, f.backend.Count(backend.OpUpdate))
	find, ok := f.backend.Last(backend.OpFind)
	require.True(t, ok)
	assert.Equal(t, "a", find.LocalID)

	// A second edit waits for the same find.
	require.NoError(t, f.m.SetData(f.index(t, "a"), "A3"))
	assert.Equal(t, 1, f.backend.Count(backend.OpFind))

	f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: find.RequestID, LocalID: "a", Entity: original})

	update, ok := f.backend.Last(backend.OpUpdate)
	require.True(t, ok)
	assert.Equal(t, "A3", update.Entity.Name)
	assert.Equal(t, int32(42), update.Entity.UpdateSequenceNumber)
}

func TestUpdate_FailureResyncs(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, []domain.Tag{tag("a", "A", "")})

	require.NoError(t, f.m.SetData(f.index(t, "a"), "Renamed"))
	update, _ := f.backend.Last(backend.OpUpdate)
	f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: update.RequestID, Entity: update.Entity, Err: errBackend})

	require.Len(t, f.emitter.Errors(), 1)
	find, ok := f.backend.Last(backend.OpFind)
	require.True(t, ok)
	assert.Equal(t, "a", find.LocalID)

	f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: find.RequestID, LocalID: "a", Entity: tag("a", "A", "")})

	assert.Equal(t, "A", f.m.Data(f.index(t, "a")))
	it, _ := f.m.Item(f.index(t, "a"))
	assert.False(t, it.Stale)
	f.checkTree(t)
}

func TestUpdate_ResyncGivesUpAndMarksStale(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, []domain.Tag{tag("a", "A", "")})

	require.NoError(t, f.m.SetData(f.index(t, "a"), "Renamed"))
	update, _ := f.backend.Last(backend.OpUpdate)
	f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: update.RequestID, Err: errBackend})

	for range model.DefaultMaxResyncAttempts {
		find, ok := f.backend.Last(backend.OpFind)
		require.True(t, ok)
		f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: find.RequestID, LocalID: "a", Err: errBackend})
	}

	assert.Equal(t, model.DefaultMaxResyncAttempts, f.backend.Count(backend.OpFind))
	it, ok := f.m.Item(f.index(t, "a"))
	require.True(t, ok)
	assert.True(t, it.Stale)
	assert.Len(t, f.emitter.Errors(), 2)

	// The next authoritative copy clears the mark.
	f.m.HandleEvent(&tagEvent{Op: backend.OpUpdate, RequestID: "external", Entity: tag("a", "A", "")})
	it, _ = f.m.Item(f.index(t, "a"))
	assert.False(t, it.Stale)
	assert.Equal(t, "A", it.Name)
}

func TestExpunge_FailureRestores(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, []domain.Tag{tag("a", "A", "")})

	require.NoError(t, f.m.Remove(f.index(t, "a")))
	assert.Zero(t, f.m.Len())

	expunge, ok := f.backend.Last(backend.OpExpunge)
	require.True(t, ok)
	f.m.HandleEvent(&tagEvent{Op: backend.OpExpunge, RequestID: expunge.RequestID, LocalID: "a", Err: errBackend})
	require.Len(t, f.emitter.Errors(), 1)

	find, ok := f.backend.Last(backend.OpFind)
	require.True(t, ok)
	f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: find.RequestID, LocalID: "a", Entity: tag("a", "A", "")})

	assert.Equal(t, []string{"A"}, f.names(f.m.AllItemsIndex()))
	f.checkTree(t)
}

func TestHandleEvent_ForeignValues(t *testing.T) {
	f := newTagFixture(t)
	f.list(t, nil)

	assert.False(t, f.m.HandleEvent("noise"))
	assert.False(t, f.m.HandleEvent(&backend.Event[domain.Notebook]{Op: backend.OpAdd}))
	assert.False(t, f.m.HandleEvent(&backend.RestrictionsEvent{RequestID: "someone-else"}))
	assert.False(t, f.m.HandleEvent(&backend.LinkedNotebooksEvent{RequestID: "someone-else"}))

	// Unknown find results are dropped.
	assert.True(t, f.m.HandleEvent(&tagEvent{Op: backend.OpFind, RequestID: "stray", Entity: tag("z", "Z", "")}))
	assert.Zero(t, f.m.Len())
}
