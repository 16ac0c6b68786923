package domain

// NotebookRestrictions are the permissions the owner of a linked notebook
// granted to this account. A nil value means no restrictions.
type NotebookRestrictions struct {
	NoCreateNotes     bool `json:"no_create_notes"`
	NoUpdateNotes     bool `json:"no_update_notes"`
	NoUpdateNotebook  bool `json:"no_update_notebook"`
	NoRenameNotebook  bool `json:"no_rename_notebook"`
	NoExpungeNotebook bool `json:"no_expunge_notebook"`
	NoCreateTags      bool `json:"no_create_tags"`
	NoUpdateTags      bool `json:"no_update_tags"`
	NoExpungeTags     bool `json:"no_expunge_tags"`
}

// Notebook holds notes. Notebooks are grouped in single level stacks.
type Notebook struct {
	Syncable
	Name         string                `json:"name"`
	Stack        string                `json:"stack,omitempty"`
	Default      bool                  `json:"default"`
	LastUsed     bool                  `json:"last_used"`
	Published    bool                  `json:"published"`
	Restrictions *NotebookRestrictions `json:"restrictions,omitempty"`
}

// Clone returns a deep copy of the notebook.
func (n Notebook) Clone() Notebook {
	if n.Restrictions != nil {
		r := *n.Restrictions
		n.Restrictions = &r
	}
	return n
}

// CanCreateNotes reports whether notes may be added to the notebook.
func (n *Notebook) CanCreateNotes() bool {
	return n.Restrictions == nil || !n.Restrictions.NoCreateNotes
}

// CanUpdateNotes reports whether notes of the notebook may be edited.
func (n *Notebook) CanUpdateNotes() bool {
	return n.Restrictions == nil || !n.Restrictions.NoUpdateNotes
}

// CanUpdate reports whether the notebook itself may be edited.
func (n *Notebook) CanUpdate() bool {
	return n.Restrictions == nil || !n.Restrictions.NoUpdateNotebook
}

// CanRename reports whether the notebook may be renamed.
func (n *Notebook) CanRename() bool {
	return n.Restrictions == nil || !n.Restrictions.NoRenameNotebook
}
