// Package sse implements Server-Sent Events streaming the notifications of
// the tree models to view layer clients.
package sse

import (
	"time"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
	"github.com/d1vanov/quentier-sub007/internal/model"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is sent once when a client connects.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
	// EventResync tells a client that it missed notifications and has to
	// reload the tree before applying further ones.
	EventResync EventType = "resync"
)

// ModelEventType returns the SSE type of a model notification, e.g.
// "tag.rows_inserted".
func ModelEventType(kind string, t model.EventType) EventType {
	return EventType(kind + "." + t.String())
}

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	// ID increases with every broadcast notification. Heartbeats carry none.
	ID        uint64    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// Kind limits delivery to clients following that entity kind. Empty means
	// every client.
	Kind string `json:"-"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// ModelEventData is the payload of a model notification. Only the fields
// relevant to the notification are set.
type ModelEventData struct {
	Kind string `json:"kind"`

	Parent     *model.Index `json:"parent,omitempty"`
	First      *int         `json:"first,omitempty"`
	Last       *int         `json:"last,omitempty"`
	DestParent *model.Index `json:"dest_parent,omitempty"`
	DestRow    *int         `json:"dest_row,omitempty"`

	TopLeft     *model.Index `json:"top_left,omitempty"`
	BottomRight *model.Index `json:"bottom_right,omitempty"`

	LocalIDs []string `json:"local_ids,omitempty"`

	Error     string            `json:"error,omitempty"`
	ErrorCode domainerrors.Code `json:"error_code,omitempty"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// ResyncEventData is the payload of a resync event.
type ResyncEventData struct {
	// Kind is the kind to reload, empty for both.
	Kind string `json:"kind,omitempty"`
}

// NewResyncEvent creates a resync event for clients following kind.
func NewResyncEvent(kind string) Event {
	return Event{
		Type:      EventResync,
		Kind:      kind,
		Data:      ResyncEventData{Kind: kind},
		Timestamp: time.Now(),
	}
}

// NewModelEvent converts a model notification.
func NewModelEvent(e model.Event) Event {
	data := ModelEventData{Kind: e.Kind, LocalIDs: e.LocalIDs}

	switch e.Type {
	case model.EventRowsAboutToBeInserted, model.EventRowsInserted,
		model.EventRowsAboutToBeRemoved, model.EventRowsRemoved:
		data.Parent, data.First, data.Last = &e.Parent, &e.First, &e.Last
	case model.EventRowsAboutToBeMoved, model.EventRowsMoved:
		data.Parent, data.First, data.Last = &e.Parent, &e.First, &e.Last
		data.DestParent, data.DestRow = &e.DestParent, &e.DestRow
	case model.EventDataChanged:
		data.TopLeft, data.BottomRight = &e.TopLeft, &e.BottomRight
	case model.EventNotifyError:
		if e.Err != nil {
			data.Error = e.Err.Error()
			data.ErrorCode = domainerrors.CodeOf(e.Err)
		}
	}

	return Event{
		Type:      ModelEventType(e.Kind, e.Type),
		Kind:      e.Kind,
		Data:      data,
		Timestamp: time.Now(),
	}
}
