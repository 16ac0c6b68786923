// Package itemstore holds the in-memory entity records projected by a tree
// model, indexed by local id, parent, upper-cased name, linked notebook and stack.
package itemstore

// Item is the record a tree model keeps for one tag or notebook. It carries the
// fields of both kinds; fields that do not apply to a kind stay zero.
type Item struct {
	LocalID string `json:"local_id"`
	GUID    string `json:"guid,omitempty"`
	Name    string `json:"name"`

	// Tags only.
	ParentLocalID string `json:"parent_local_id,omitempty"`
	ParentGUID    string `json:"parent_guid,omitempty"`

	// Notebooks only.
	Stack string `json:"stack,omitempty"`

	LinkedNotebookGUID string `json:"linked_notebook_guid,omitempty"`

	Synchronizable bool `json:"synchronizable"`
	Dirty          bool `json:"dirty"`
	Favorited      bool `json:"favorited"`
	NoteCount      int  `json:"note_count"`

	// Notebooks only.
	Default        bool `json:"default,omitempty"`
	LastUsed       bool `json:"last_used,omitempty"`
	Published      bool `json:"published,omitempty"`
	CanCreateNotes bool `json:"can_create_notes,omitempty"`
	CanUpdateNotes bool `json:"can_update_notes,omitempty"`
	CanUpdate      bool `json:"can_update,omitempty"`
	CanRename      bool `json:"can_rename,omitempty"`

	// Stale is set when the item could not be resynchronized with the backend.
	Stale bool `json:"stale,omitempty"`
}

// IsSynchronized returns true once the backend assigned a guid.
func (it *Item) IsSynchronized() bool {
	return it.GUID != ""
}
