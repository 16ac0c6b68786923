// Package modeltest provides recording fakes for driving tree models in tests.
// The fakes never answer; tests feed results back through HandleEvent.
package modeltest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/d1vanov/quentier-sub007/internal/backend"
	"github.com/d1vanov/quentier-sub007/internal/model"
)

// Request is one recorded backend call.
type Request[E any] struct {
	Op        backend.Op
	RequestID string
	Entity    E
	LocalID   string
	Options   backend.ListOptions
}

// Backend records the requests of a model.
type Backend[E any] struct {
	mu       sync.Mutex
	requests []Request[E]
}

var _ backend.Backend[struct{}] = (*Backend[struct{}])(nil)

func (b *Backend[E]) record(r Request[E]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r)
}

func (b *Backend[E]) List(requestID string, opts backend.ListOptions) {
	b.record(Request[E]{Op: backend.OpList, RequestID: requestID, Options: opts})
}

func (b *Backend[E]) Add(requestID string, entity E) {
	b.record(Request[E]{Op: backend.OpAdd, RequestID: requestID, Entity: entity})
}

func (b *Backend[E]) Update(requestID string, entity E) {
	b.record(Request[E]{Op: backend.OpUpdate, RequestID: requestID, Entity: entity})
}

func (b *Backend[E]) Find(requestID, localID string) {
	b.record(Request[E]{Op: backend.OpFind, RequestID: requestID, LocalID: localID})
}

func (b *Backend[E]) Expunge(requestID, localID string) {
	b.record(Request[E]{Op: backend.OpExpunge, RequestID: requestID, LocalID: localID})
}

func (b *Backend[E]) NoteCount(requestID, localID string) {
	b.record(Request[E]{Op: backend.OpNoteCount, RequestID: requestID, LocalID: localID})
}

func (b *Backend[E]) NoteCounts(requestID string) {
	b.record(Request[E]{Op: backend.OpNoteCounts, RequestID: requestID})
}

// Requests returns the recorded requests of op, oldest first. An empty op
// returns every request.
func (b *Backend[E]) Requests(op backend.Op) []Request[E] {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Request[E]
	for _, r := range b.requests {
		if op == "" || r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the most recent request of op.
func (b *Backend[E]) Last(op backend.Op) (Request[E], bool) {
	reqs := b.Requests(op)
	if len(reqs) == 0 {
		return Request[E]{}, false
	}
	return reqs[len(reqs)-1], true
}

// Count returns the number of requests of op.
func (b *Backend[E]) Count(op backend.Op) int {
	return len(b.Requests(op))
}

// Reset forgets every recorded request.
func (b *Backend[E]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = nil
}

// LinkedNotebooks records linked notebook listings and restriction lookups.
type LinkedNotebooks struct {
	mu           sync.Mutex
	listings     []Request[struct{}]
	restrictions map[string]string
}

var (
	_ backend.LinkedNotebooks    = (*LinkedNotebooks)(nil)
	_ backend.RestrictionsFinder = (*LinkedNotebooks)(nil)
)

func (l *LinkedNotebooks) ListLinkedNotebooks(requestID string, opts backend.ListOptions) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listings = append(l.listings, Request[struct{}]{RequestID: requestID, Options: opts})
}

func (l *LinkedNotebooks) FindRestrictions(requestID, linkedNotebookGUID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.restrictions == nil {
		l.restrictions = make(map[string]string)
	}
	l.restrictions[linkedNotebookGUID] = requestID
}

// Listings returns the recorded linked notebook listings.
func (l *LinkedNotebooks) Listings() []Request[struct{}] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.listings)
}

// RestrictionsRequest returns the id of the latest restrictions lookup for guid.
func (l *LinkedNotebooks) RestrictionsRequest(guid string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	requestID, ok := l.restrictions[guid]
	return requestID, ok
}

// Emitter records every notification of a model.
type Emitter struct {
	mu     sync.Mutex
	events []model.Event
}

var _ model.Emitter = (*Emitter)(nil)

// Emit implements model.Emitter.
func (e *Emitter) Emit(ev model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

// Events returns the recorded notifications.
func (e *Emitter) Events() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

// Types returns the types of the recorded notifications.
func (e *Emitter) Types() []model.EventType {
	events := e.Events()
	types := make([]model.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// Count returns how many notifications of t were recorded.
func (e *Emitter) Count(t model.EventType) int {
	n := 0
	for _, ev := range e.Events() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// Errors returns the errors of the recorded error notifications.
func (e *Emitter) Errors() []error {
	var errs []error
	for _, ev := range e.Events() {
		if ev.Type == model.EventNotifyError {
			errs = append(errs, ev.Err)
		}
	}
	return errs
}

// Structural returns the recorded row and layout notifications.
func (e *Emitter) Structural() []model.Event {
	var out []model.Event
	for _, ev := range e.Events() {
		if _, opens := closing[ev.Type]; opens || closes[ev.Type] != 0 {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets every recorded notification.
func (e *Emitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

var closing = map[model.EventType]model.EventType{
	model.EventRowsAboutToBeInserted:  model.EventRowsInserted,
	model.EventRowsAboutToBeRemoved:   model.EventRowsRemoved,
	model.EventRowsAboutToBeMoved:     model.EventRowsMoved,
	model.EventLayoutAboutToBeChanged: model.EventLayoutChanged,
}

var closes = map[model.EventType]model.EventType{
	model.EventRowsInserted:  model.EventRowsAboutToBeInserted,
	model.EventRowsRemoved:   model.EventRowsAboutToBeRemoved,
	model.EventRowsMoved:     model.EventRowsAboutToBeMoved,
	model.EventLayoutChanged: model.EventLayoutAboutToBeChanged,
}

// CheckBrackets verifies that every structural notification opened is closed
// by its matching notification before any other one opens.
func (e *Emitter) CheckBrackets() error {
	var open model.EventType
	for i, ev := range e.Events() {
		if _, opens := closing[ev.Type]; opens {
			if open != 0 {
				return fmt.Errorf("event %d: %s opened while %s is open", i, ev.Type, open)
			}
			open = ev.Type
			continue
		}
		if opener, ok := closes[ev.Type]; ok {
			if open != opener {
				return fmt.Errorf("event %d: %s closes nothing (open: %s)", i, ev.Type, open)
			}
			open = 0
		}
	}
	if open != 0 {
		return fmt.Errorf("%s never closed", open)
	}
	return nil
}
