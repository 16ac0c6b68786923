package model

// EventType identifies a notification sent to the view layer.
type EventType int

// Structural notifications. Each About-to event is followed by its matching
// done event before any other structural notification is sent.
const (
	EventRowsAboutToBeInserted EventType = iota + 1
	EventRowsInserted
	EventRowsAboutToBeRemoved
	EventRowsRemoved
	EventRowsAboutToBeMoved
	EventRowsMoved
	EventLayoutAboutToBeChanged
	EventLayoutChanged
	EventDataChanged
)

// Bulk notifications that let a view preserve its selection around a change.
const (
	EventAboutToAddItem EventType = iota + 100
	EventAddedItem
	EventAboutToUpdateItem
	EventUpdatedItem
	EventAboutToRemoveItems
	EventRemovedItems
	EventAboutToResort
	EventResorted
)

// Model state notifications.
const (
	EventNotifyError EventType = iota + 200
	EventNotifyAllItemsListed
	EventNotifyLinkedNotebooksListed
)

var eventNames = map[EventType]string{
	EventRowsAboutToBeInserted:       "rows_about_to_be_inserted",
	EventRowsInserted:                "rows_inserted",
	EventRowsAboutToBeRemoved:        "rows_about_to_be_removed",
	EventRowsRemoved:                 "rows_removed",
	EventRowsAboutToBeMoved:          "rows_about_to_be_moved",
	EventRowsMoved:                   "rows_moved",
	EventLayoutAboutToBeChanged:      "layout_about_to_be_changed",
	EventLayoutChanged:               "layout_changed",
	EventDataChanged:                 "data_changed",
	EventAboutToAddItem:              "about_to_add_item",
	EventAddedItem:                   "added_item",
	EventAboutToUpdateItem:           "about_to_update_item",
	EventUpdatedItem:                 "updated_item",
	EventAboutToRemoveItems:          "about_to_remove_items",
	EventRemovedItems:                "removed_items",
	EventAboutToResort:               "about_to_resort",
	EventResorted:                    "resorted",
	EventNotifyError:                 "error",
	EventNotifyAllItemsListed:        "all_items_listed",
	EventNotifyLinkedNotebooksListed: "linked_notebooks_listed",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// opens reports whether t opens a structural bracket.
func (t EventType) opens() bool {
	switch t {
	case EventRowsAboutToBeInserted, EventRowsAboutToBeRemoved, EventRowsAboutToBeMoved, EventLayoutAboutToBeChanged:
		return true
	}
	return false
}

// closes returns the event closing the bracket t opens.
func (t EventType) closes() EventType {
	switch t {
	case EventRowsAboutToBeInserted:
		return EventRowsInserted
	case EventRowsAboutToBeRemoved:
		return EventRowsRemoved
	case EventRowsAboutToBeMoved:
		return EventRowsMoved
	case EventLayoutAboutToBeChanged:
		return EventLayoutChanged
	}
	return 0
}

// Event is one notification. Only the fields relevant to Type are set.
type Event struct {
	Type EventType
	// Kind is the entity kind of the emitting model.
	Kind string

	// Row range under Parent for row notifications.
	Parent Index
	First  int
	Last   int
	// Destination of a move.
	DestParent Index
	DestRow    int

	// Changed cells for EventDataChanged.
	TopLeft     Index
	BottomRight Index

	// LocalIDs of the items a bulk notification is about.
	LocalIDs []string

	Err error
}

// Emitter receives the notifications of a model.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter drops every notification.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }
