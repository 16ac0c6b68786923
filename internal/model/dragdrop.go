package model

import (
	"encoding/json"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/itemstore"
)

// DragMIMEType is the media type of drag payloads.
const DragMIMEType = "application/vnd.treeview.item+json"

type dragPayload struct {
	Kind string         `json:"kind"`
	Item itemstore.Item `json:"item"`
}

// Encode serializes the item at idx together with the entity kind.
func (m *Model[E]) Encode(idx Index) ([]byte, error) {
	it, ok := m.Item(idx)
	if !ok {
		return nil, domainerrors.NotFound("index does not refer to an item")
	}
	data, err := json.Marshal(dragPayload{Kind: string(m.kind.EntityKind()), Item: it})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternalConsistency, "failed to encode drag payload")
	}
	return data, nil
}

// Decode parses a drag payload, rejecting payloads of another entity kind.
func (m *Model[E]) Decode(data []byte) (itemstore.Item, error) {
	var p dragPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return itemstore.Item{}, domainerrors.Wrap(err, domainerrors.CodeValidation, "malformed drag payload")
	}
	if p.Kind != string(m.kind.EntityKind()) {
		return itemstore.Item{}, domainerrors.Validationf("cannot drop a %q on a %s tree", p.Kind, m.kind.EntityKind())
	}
	if p.Item.LocalID == "" {
		return itemstore.Item{}, domainerrors.Validation("drag payload has no local id")
	}
	return p.Item, nil
}

// Drop moves the item carried by data under parent. Dropping on the all items
// root or a linked notebook group moves the item to the top level of its
// partition.
func (m *Model[E]) Drop(data []byte, parent Index) error {
	dropped, err := m.Decode(data)
	if err != nil {
		return m.fail(err)
	}
	n, ok := m.nodeOfEntity(dropped.LocalID)
	if !ok {
		return m.fail(domainerrors.NotFoundf("%s %q is no longer in the tree", m.kind.EntityKind(), dropped.Name))
	}
	target, err := m.nodeOrError(parent)
	if err != nil {
		return m.fail(err)
	}
	if !m.Flags(parent).Has(FlagDropEnabled) {
		return m.fail(domainerrors.Restriction("dropping here is not allowed"))
	}
	return m.fail(m.reparent(n, target))
}
