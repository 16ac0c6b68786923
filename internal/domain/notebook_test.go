package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotebook_CloneCopiesRestrictions(t *testing.T) {
	nb := Notebook{Name: "Shared", Restrictions: &NotebookRestrictions{NoRenameNotebook: true}}

	clone := nb.Clone()
	clone.Restrictions.NoRenameNotebook = false

	assert.True(t, nb.Restrictions.NoRenameNotebook)
	assert.NotSame(t, nb.Restrictions, clone.Restrictions)
}

func TestNotebook_Permissions(t *testing.T) {
	var open Notebook
	assert.True(t, open.CanCreateNotes())
	assert.True(t, open.CanUpdate())
	assert.True(t, open.CanRename())

	restricted := Notebook{Restrictions: &NotebookRestrictions{
		NoCreateNotes:    true,
		NoUpdateNotebook: true,
	}}
	assert.False(t, restricted.CanCreateNotes())
	assert.True(t, restricted.CanUpdateNotes())
	assert.False(t, restricted.CanUpdate())
	assert.True(t, restricted.CanRename())
}

func TestSyncable_State(t *testing.T) {
	tag := Tag{Syncable: Syncable{LocalID: "tag-1", Local: true}}

	assert.False(t, tag.IsSynchronized())
	assert.False(t, tag.Synchronizable())

	tag.GUID = "guid-1"
	tag.MarkDirty()
	assert.True(t, tag.IsSynchronized())
	assert.True(t, tag.Dirty)
}
