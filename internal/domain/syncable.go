package domain

// Syncable provides the fields shared by every entity that can be synchronized
// with the remote service. It gets embedded in Tag and Notebook.
type Syncable struct {
	// LocalID is assigned on creation and never changes or gets reused.
	LocalID string `json:"local_id"`
	// GUID is assigned by the remote service once the entity was synchronized.
	GUID string `json:"guid,omitempty"`
	// LinkedNotebookGUID is set for entities living inside a linked notebook.
	LinkedNotebookGUID   string `json:"linked_notebook_guid,omitempty"`
	UpdateSequenceNumber int32  `json:"update_sequence_number,omitempty"`
	// Local entities are never sent to the remote service.
	Local     bool `json:"local"`
	Dirty     bool `json:"dirty"`
	Favorited bool `json:"favorited"`
}

// IsSynchronized returns true once the remote service has confirmed the entity.
func (s *Syncable) IsSynchronized() bool {
	return s.GUID != ""
}

// Synchronizable is the inverse of Local.
func (s *Syncable) Synchronizable() bool {
	return !s.Local
}

// MarkDirty flags the entity as modified locally since the last sync.
func (s *Syncable) MarkDirty() {
	s.Dirty = true
}
