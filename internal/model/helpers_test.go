package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/model/modeltest"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

var (
	evernoteAccount = domain.Account{Name: "Work", Type: domain.AccountEvernote}
	localAccount    = domain.Account{Name: "Offline", Type: domain.AccountLocal}
)

type fixture[E any] struct {
	m       *model.Model[E]
	backend *modeltest.Backend[E]
	ln      *modeltest.LinkedNotebooks
	emitter *modeltest.Emitter
}

type fixtureOption[E any] func(*model.Options[E])

func withAccount[E any](a domain.Account) fixtureOption[E] {
	return func(o *model.Options[E]) { o.Account = a }
}

func withCacheCapacity[E any](t *testing.T, capacity int) fixtureOption[E] {
	return func(o *model.Options[E]) {
		cache, err := entitycache.New[E]("test", capacity, nil)
		require.NoError(t, err)
		o.Cache = cache
	}
}

func withCache[E any](cache *entitycache.Cache[E]) fixtureOption[E] {
	return func(o *model.Options[E]) { o.Cache = cache }
}

func withPageSize[E any](size int) fixtureOption[E] {
	return func(o *model.Options[E]) { o.ListPageSize = size }
}

func newFixture[E any](t *testing.T, kind model.Kind[E], opts ...fixtureOption[E]) *fixture[E] {
	t.Helper()

	f := &fixture[E]{
		backend: &modeltest.Backend[E]{},
		ln:      &modeltest.LinkedNotebooks{},
		emitter: &modeltest.Emitter{},
	}
	cache, err := entitycache.New[E](string(kind.EntityKind()), 20, nil)
	require.NoError(t, err)

	o := model.Options[E]{
		Kind:            kind,
		Backend:         f.backend,
		LinkedNotebooks: f.ln,
		Restrictions:    f.ln,
		Cache:           cache,
		Account:         evernoteAccount,
		Emitter:         f.emitter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	f.m, err = model.New(o)
	require.NoError(t, err)
	return f
}

func newTagFixture(t *testing.T, opts ...fixtureOption[domain.Tag]) *fixture[domain.Tag] {
	return newFixture[domain.Tag](t, tagmodel.NewKind(), opts...)
}

func newNotebookFixture(t *testing.T, opts ...fixtureOption[domain.Notebook]) *fixture[domain.Notebook] {
	return newFixture[domain.Notebook](t, notebookmodel.NewKind(), opts...)
}

// list starts the model and answers its first listing with entities, and the
// linked notebook listing with linkedNotebooks.
func (f *fixture[E]) list(t *testing.T, entities []E, linkedNotebooks ...domain.LinkedNotebook) {
	t.Helper()

	f.m.Start()
	req, ok := f.backend.Last(backend.OpList)
	require.True(t, ok)
	require.True(t, f.m.HandleEvent(&backend.Event[E]{
		Op: backend.OpList, RequestID: req.RequestID, Page: entities, Options: req.Options,
	}))

	listings := f.ln.Listings()
	require.NotEmpty(t, listings)
	last := listings[len(listings)-1]
	require.True(t, f.m.HandleEvent(&backend.LinkedNotebooksEvent{
		RequestID: last.RequestID, Page: linkedNotebooks, Options: last.Options,
	}))

	require.True(t, f.m.AllItemsListed())
	require.True(t, f.m.LinkedNotebooksListed())
	f.emitter.Reset()
}

// grant answers the restrictions lookup of a linked notebook.
func (f *fixture[E]) grant(t *testing.T, guid string, r *domain.NotebookRestrictions) {
	t.Helper()

	requestID, ok := f.ln.RestrictionsRequest(guid)
	require.True(t, ok, "no restrictions lookup for %s", guid)
	require.True(t, f.m.HandleEvent(&backend.RestrictionsEvent{
		RequestID: requestID, LinkedNotebookGUID: guid, Restrictions: r,
	}))
}

// index returns the index of the item with localID.
func (f *fixture[E]) index(t *testing.T, localID string) model.Index {
	t.Helper()

	idx, ok := f.m.IndexForLocalID(localID)
	require.True(t, ok, "no index for %s", localID)
	return idx
}

// column returns the index of column c of the item with localID.
func (f *fixture[E]) column(t *testing.T, localID string, c model.Column) model.Index {
	t.Helper()

	idx := f.index(t, localID)
	col := f.m.ColumnIndex(c)
	require.GreaterOrEqual(t, col, 0)
	cell, ok := f.m.Index(idx.Row, col, f.m.Parent(idx))
	require.True(t, ok)
	return cell
}

// names returns the names of the children of parent in row order.
func (f *fixture[E]) names(parent model.Index) []string {
	var names []string
	for row := range f.m.RowCount(parent) {
		idx, ok := f.m.Index(row, 0, parent)
		if !ok {
			continue
		}
		name, _ := f.m.Data(idx).(string)
		names = append(names, name)
	}
	return names
}

// checkTree verifies the structural invariants over the whole visible tree:
// every child is found at its row under its parent, and no group is empty.
func (f *fixture[E]) checkTree(t *testing.T) {
	t.Helper()

	var walk func(parent model.Index)
	walk = func(parent model.Index) {
		for row := range f.m.RowCount(parent) {
			idx, ok := f.m.Index(row, 0, parent)
			require.True(t, ok)
			require.Equal(t, row, idx.Row)
			require.Equal(t, parent, f.m.Parent(idx))
			walk(idx)
		}
	}
	walk(model.Index{})

	var groups func(v *model.NodeView)
	groups = func(v *model.NodeView) {
		if v.Type == model.NodeTypeStack || v.Type == model.NodeTypeLinkedNotebook {
			require.NotEmpty(t, v.Children, "empty group %q", v.Name)
		}
		for _, c := range v.Children {
			groups(c)
		}
	}
	groups(f.m.Snapshot())

	require.NoError(t, f.emitter.CheckBrackets())
}

func tag(localID, name, parentLocalID string) domain.Tag {
	return domain.Tag{
		Syncable:      domain.Syncable{LocalID: localID},
		Name:          name,
		ParentLocalID: parentLocalID,
	}
}

func syncedTag(localID, name, parentLocalID string) domain.Tag {
	t := tag(localID, name, parentLocalID)
	t.GUID = "guid-" + localID
	return t
}

func linkedTag(localID, name, linkedNotebookGUID string) domain.Tag {
	t := syncedTag(localID, name, "")
	t.LinkedNotebookGUID = linkedNotebookGUID
	return t
}

func notebook(localID, name, stack string) domain.Notebook {
	return domain.Notebook{
		Syncable: domain.Syncable{LocalID: localID},
		Name:     name,
		Stack:    stack,
	}
}
