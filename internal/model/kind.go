package model

import (
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/restrictions"
)

// Nesting says how the entities of a kind form a tree.
type Nesting int

const (
	// NestByParent nests entities under other entities (tags).
	NestByParent Nesting = iota + 1
	// NestByStack groups entities under single level stacks (notebooks).
	NestByStack
)

// Column is a data column of the view layer contract.
type Column int

// Columns. A kind picks the ones it shows and their order.
const (
	ColumnName Column = iota
	ColumnSynchronizable
	ColumnDirty
	ColumnDefault
	ColumnLastUsed
	ColumnPublished
	ColumnFromLinkedNotebook
	ColumnNoteCount
	ColumnFavorited
)

var columnNames = map[Column]string{
	ColumnName:               "name",
	ColumnSynchronizable:     "synchronizable",
	ColumnDirty:              "dirty",
	ColumnDefault:            "default",
	ColumnLastUsed:           "last_used",
	ColumnPublished:          "published",
	ColumnFromLinkedNotebook: "from_linked_notebook",
	ColumnNoteCount:          "note_count",
	ColumnFavorited:          "favorited",
}

func (c Column) String() string {
	if name, ok := columnNames[c]; ok {
		return name
	}
	return "unknown"
}

// Kind supplies everything kind specific to the generic model.
type Kind[E any] interface {
	EntityKind() domain.EntityKind
	Nesting() Nesting
	Columns() []Column
	// AllItemsLabel is the name shown for the all items root.
	AllItemsLabel() string

	LocalID(e E) string
	// ToItem projects an entity on the fields the model keeps.
	ToItem(e E) itemstore.Item
	// Merge writes the projected fields of it over base, keeping every field
	// of base the model does not project.
	Merge(base E, it itemstore.Item) E

	// ValidateName checks a trimmed entity name.
	ValidateName(name string) error
	// Permissions translates linked notebook restrictions.
	Permissions(r *domain.NotebookRestrictions) restrictions.Permissions
}
