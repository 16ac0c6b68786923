package domain

// LinkedNotebook is a notebook shared with this account by another user.
// Tags and notebooks coming from it form a separate partition of the tree.
type LinkedNotebook struct {
	GUID                   string `json:"guid"`
	Username               string `json:"username"`
	ShareName              string `json:"share_name,omitempty"`
	SharedNotebookGlobalID string `json:"shared_notebook_global_id,omitempty"`
	UpdateSequenceNumber   int32  `json:"update_sequence_number,omitempty"`
}
