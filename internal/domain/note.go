package domain

// Note is only tracked to count notes per tag and per notebook.
type Note struct {
	LocalID         string   `json:"local_id"`
	Title           string   `json:"title"`
	NotebookLocalID string   `json:"notebook_local_id"`
	TagLocalIDs     []string `json:"tag_local_ids,omitempty"`
}
