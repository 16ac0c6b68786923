package notebookmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/entitycache"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/model/modeltest"
	"github.com/d1vanov/quentier-sub007/internal/restrictions"
)

func TestKind_ItemProjection(t *testing.T) {
	k := NewKind()
	nb := domain.Notebook{
		Syncable:  domain.Syncable{LocalID: "n1", GUID: "g1", Local: true},
		Name:      "Journal",
		Stack:     "Personal",
		Default:   true,
		Published: true,
		Restrictions: &domain.NotebookRestrictions{
			NoCreateNotes:    true,
			NoRenameNotebook: true,
		},
	}

	it := k.ToItem(nb)
	assert.Equal(t, "Personal", it.Stack)
	assert.False(t, it.Synchronizable)
	assert.True(t, it.Default)
	assert.True(t, it.Published)
	assert.False(t, it.CanCreateNotes)
	assert.True(t, it.CanUpdateNotes)
	assert.True(t, it.CanUpdate)
	assert.False(t, it.CanRename)

	it.Stack = ""
	it.LastUsed = true
	merged := k.Merge(nb, it)
	assert.Empty(t, merged.Stack)
	assert.True(t, merged.LastUsed)
	require.NotNil(t, merged.Restrictions)
	assert.True(t, merged.Restrictions.NoRenameNotebook)

	// The merged copy does not share restrictions with the base.
	merged.Restrictions.NoCreateNotes = false
	assert.True(t, nb.Restrictions.NoCreateNotes)
}

func TestKind_Permissions(t *testing.T) {
	k := NewKind()

	assert.Equal(t, restrictions.Permissions{CanUpdate: true}, k.Permissions(nil))
	assert.Equal(t, restrictions.Permissions{CanUpdate: false},
		k.Permissions(&domain.NotebookRestrictions{NoUpdateNotebook: true}))
}

func TestKind_Shape(t *testing.T) {
	k := NewKind()

	assert.Equal(t, domain.KindNotebook, k.EntityKind())
	assert.Equal(t, model.NestByStack, k.Nesting())
	assert.Len(t, k.Columns(), 8)
	assert.NoError(t, k.ValidateName("Work, home"))
}

func TestNew_FillsKind(t *testing.T) {
	cache, err := entitycache.New[domain.Notebook]("notebook", 4, nil)
	require.NoError(t, err)

	m, err := New(Options{Backend: &modeltest.Backend[domain.Notebook]{}, Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, AllNotebooksLabel, m.Data(m.AllItemsIndex()))
}
