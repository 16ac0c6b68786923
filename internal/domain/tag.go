package domain

// Tag is a label that can be nested under another tag of the same partition.
type Tag struct {
	Syncable
	Name string `json:"name"`
	// ParentLocalID is empty for top level tags.
	ParentLocalID string `json:"parent_local_id,omitempty"`
	ParentGUID    string `json:"parent_guid,omitempty"`
}

// HasParent reports whether the tag is nested under another tag.
func (t *Tag) HasParent() bool {
	return t.ParentLocalID != ""
}
