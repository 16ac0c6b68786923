package domain

// AccountType tells whether the account synchronizes with the remote service.
type AccountType string

// Account types.
const (
	AccountLocal    AccountType = "local"
	AccountEvernote AccountType = "evernote"
)

// Account owns every tag and notebook a model shows.
type Account struct {
	Name string      `json:"name"`
	Type AccountType `json:"type"`
}

// IsLocal reports whether entities of the account never leave the device.
func (a Account) IsLocal() bool {
	return a.Type == AccountLocal
}

// EntityKind names the kind of entity a tree model projects.
type EntityKind string

// Entity kinds.
const (
	KindTag      EntityKind = "tag"
	KindNotebook EntityKind = "notebook"
)
