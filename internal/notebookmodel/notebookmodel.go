// Package notebookmodel instantiates the generic tree model for notebooks.
// Notebooks do not nest; they are grouped in single level stacks.
package notebookmodel

import (
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/restrictions"
	"github.com/d1vanov/quentier-sub007/internal/validation"
)

// AllNotebooksLabel is the name of the all items root.
const AllNotebooksLabel = "All notebooks"

// Model is the notebook tree.
type Model = model.Model[domain.Notebook]

// Options configure a notebook model.
type Options = model.Options[domain.Notebook]

// Kind implements model.Kind for notebooks.
type Kind struct {
	validator *validation.Validator
}

var _ model.Kind[domain.Notebook] = (*Kind)(nil)

// NewKind creates the notebook kind.
func NewKind() *Kind {
	return &Kind{validator: validation.New()}
}

// New creates a notebook model. Kind is filled in when left empty.
func New(opts Options) (*Model, error) {
	if opts.Kind == nil {
		opts.Kind = NewKind()
	}
	return model.New(opts)
}

// EntityKind implements model.Kind.
func (*Kind) EntityKind() domain.EntityKind { return domain.KindNotebook }

// Nesting implements model.Kind.
func (*Kind) Nesting() model.Nesting { return model.NestByStack }

// Columns implements model.Kind.
func (*Kind) Columns() []model.Column {
	return []model.Column{
		model.ColumnName,
		model.ColumnSynchronizable,
		model.ColumnDirty,
		model.ColumnDefault,
		model.ColumnLastUsed,
		model.ColumnPublished,
		model.ColumnFromLinkedNotebook,
		model.ColumnNoteCount,
	}
}

// AllItemsLabel implements model.Kind.
func (*Kind) AllItemsLabel() string { return AllNotebooksLabel }

// LocalID implements model.Kind.
func (*Kind) LocalID(n domain.Notebook) string { return n.LocalID }

// ToItem implements model.Kind.
func (*Kind) ToItem(n domain.Notebook) itemstore.Item {
	return itemstore.Item{
		LocalID:            n.LocalID,
		GUID:               n.GUID,
		Name:               n.Name,
		Stack:              n.Stack,
		LinkedNotebookGUID: n.LinkedNotebookGUID,
		Synchronizable:     n.Synchronizable(),
		Dirty:              n.Dirty,
		Favorited:          n.Favorited,
		Default:            n.Default,
		LastUsed:           n.LastUsed,
		Published:          n.Published,
		CanCreateNotes:     n.CanCreateNotes(),
		CanUpdateNotes:     n.CanUpdateNotes(),
		CanUpdate:          n.CanUpdate(),
		CanRename:          n.CanRename(),
	}
}

// Merge implements model.Kind. Restrictions are owned by the backend and
// always come from base.
func (*Kind) Merge(base domain.Notebook, it itemstore.Item) domain.Notebook {
	nb := base.Clone()
	nb.LocalID = it.LocalID
	nb.GUID = it.GUID
	nb.Name = it.Name
	nb.Stack = it.Stack
	nb.LinkedNotebookGUID = it.LinkedNotebookGUID
	nb.Local = !it.Synchronizable
	nb.Dirty = it.Dirty
	nb.Favorited = it.Favorited
	nb.Default = it.Default
	nb.LastUsed = it.LastUsed
	nb.Published = it.Published
	return nb
}

// ValidateName implements model.Kind.
func (k *Kind) ValidateName(name string) error {
	return k.validator.NotebookName(name)
}

// Permissions implements model.Kind. Notebooks can never be created inside a
// linked notebook.
func (*Kind) Permissions(r *domain.NotebookRestrictions) restrictions.Permissions {
	if r == nil {
		return restrictions.Permissions{CanUpdate: true}
	}
	return restrictions.Permissions{CanUpdate: !r.NoUpdateNotebook}
}
