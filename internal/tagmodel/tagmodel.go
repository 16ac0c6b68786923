// Package tagmodel instantiates the generic tree model for tags. Tags nest
// under other tags of the same partition.
package tagmodel

import (
	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/restrictions"
	"github.com/d1vanov/quentier-sub007/internal/validation"
)

// AllTagsLabel is the name of the all items root.
const AllTagsLabel = "All tags"

// Model is the tag tree.
type Model = model.Model[domain.Tag]

// Options configure a tag model.
type Options = model.Options[domain.Tag]

// Kind implements model.Kind for tags.
type Kind struct {
	validator *validation.Validator
}

var _ model.Kind[domain.Tag] = (*Kind)(nil)

// NewKind creates the tag kind.
func NewKind() *Kind {
	return &Kind{validator: validation.New()}
}

// New creates a tag model. Kind is filled in when left empty.
func New(opts Options) (*Model, error) {
	if opts.Kind == nil {
		opts.Kind = NewKind()
	}
	return model.New(opts)
}

// EntityKind implements model.Kind.
func (*Kind) EntityKind() domain.EntityKind { return domain.KindTag }

// Nesting implements model.Kind.
func (*Kind) Nesting() model.Nesting { return model.NestByParent }

// Columns implements model.Kind.
func (*Kind) Columns() []model.Column {
	return []model.Column{
		model.ColumnName,
		model.ColumnSynchronizable,
		model.ColumnDirty,
		model.ColumnFromLinkedNotebook,
		model.ColumnNoteCount,
	}
}

// AllItemsLabel implements model.Kind.
func (*Kind) AllItemsLabel() string { return AllTagsLabel }

// LocalID implements model.Kind.
func (*Kind) LocalID(t domain.Tag) string { return t.LocalID }

// ToItem implements model.Kind.
func (*Kind) ToItem(t domain.Tag) itemstore.Item {
	return itemstore.Item{
		LocalID:            t.LocalID,
		GUID:               t.GUID,
		Name:               t.Name,
		ParentLocalID:      t.ParentLocalID,
		ParentGUID:         t.ParentGUID,
		LinkedNotebookGUID: t.LinkedNotebookGUID,
		Synchronizable:     t.Synchronizable(),
		Dirty:              t.Dirty,
		Favorited:          t.Favorited,
	}
}

// Merge implements model.Kind. The update sequence number of base is kept.
func (*Kind) Merge(base domain.Tag, it itemstore.Item) domain.Tag {
	base.LocalID = it.LocalID
	base.GUID = it.GUID
	base.Name = it.Name
	base.ParentLocalID = it.ParentLocalID
	base.ParentGUID = it.ParentGUID
	base.LinkedNotebookGUID = it.LinkedNotebookGUID
	base.Local = !it.Synchronizable
	base.Dirty = it.Dirty
	base.Favorited = it.Favorited
	return base
}

// ValidateName implements model.Kind.
func (k *Kind) ValidateName(name string) error {
	return k.validator.TagName(name)
}

// Permissions implements model.Kind.
func (*Kind) Permissions(r *domain.NotebookRestrictions) restrictions.Permissions {
	if r == nil {
		return restrictions.Permissions{CanCreate: true, CanUpdate: true}
	}
	return restrictions.Permissions{
		CanCreate: !r.NoCreateTags,
		CanUpdate: !r.NoUpdateTags,
	}
}
