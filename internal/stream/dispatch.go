// Package stream sends a chat message and consumes the streamed reply.
package stream

import (
	"encoding/json"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/sse"
)

// Wire event names written by the backend.
const (
	wireUserMessage  = "user_message"
	wireContentDelta = "content_delta"
	wireDone         = "done"
	wireError        = "error"
)

// EventType tags the variant carried by an Event.
type EventType int

const (
	EventUserMessage EventType = iota
	EventContentDelta
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventUserMessage:
		return wireUserMessage
	case EventContentDelta:
		return wireContentDelta
	case EventDone:
		return wireDone
	case EventError:
		return wireError
	default:
		return "unknown"
	}
}

// Event is a decoded stream event. Message is set for EventUserMessage and
// EventDone, Chunk for EventContentDelta and Detail for EventError.
type Event struct {
	Type    EventType
	Message *api.Message
	Chunk   string
	Detail  string
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// UserMessageEvent returns the server echo of the sent message.
func UserMessageEvent(msg api.Message) Event {
	return Event{Type: EventUserMessage, Message: &msg}
}

// DeltaEvent returns a content delta.
func DeltaEvent(chunk string) Event {
	return Event{Type: EventContentDelta, Chunk: chunk}
}

// DoneEvent returns the successful terminal event.
func DoneEvent(msg api.Message) Event {
	return Event{Type: EventDone, Message: &msg}
}

// ErrorEvent returns the failed terminal event.
func ErrorEvent(detail string) Event {
	return Event{Type: EventError, Detail: detail}
}

type deltaPayload struct {
	Chunk *string `json:"chunk"`
}

type donePayload struct {
	Message *api.Message `json:"message"`
}

type errorPayload struct {
	Detail *string `json:"detail"`
}

// Decode maps a frame to an event. Unknown event types, and payloads that
// do not have the shape their event type requires, report false.
func Decode(f sse.Frame) (Event, bool) {
	data := []byte(f.Data)
	switch f.Event {
	case wireUserMessage:
		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return Event{}, false
		}
		return UserMessageEvent(msg), true
	case wireContentDelta:
		var p deltaPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Chunk == nil {
			return Event{}, false
		}
		return DeltaEvent(*p.Chunk), true
	case wireDone:
		var p donePayload
		if err := json.Unmarshal(data, &p); err != nil || p.Message == nil {
			return Event{}, false
		}
		return DoneEvent(*p.Message), true
	case wireError:
		var p errorPayload
		if err := json.Unmarshal(data, &p); err != nil || p.Detail == nil {
			return Event{}, false
		}
		return ErrorEvent(*p.Detail), true
	default:
		return Event{}, false
	}
}

// Callbacks receives dispatched events. Nil callbacks are skipped.
type Callbacks struct {
	OnUserMessage  func(api.Message)
	OnContentDelta func(string)
	OnDone         func(api.Message)
	OnError        func(string)
}

// Dispatcher invokes callbacks for events in order. After the first
// terminal event it latches and drops everything else.
type Dispatcher struct {
	cb         Callbacks
	terminated bool
}

// NewDispatcher returns a dispatcher for cb.
func NewDispatcher(cb Callbacks) *Dispatcher {
	return &Dispatcher{cb: cb}
}

// Terminated reports whether a terminal callback has fired.
func (d *Dispatcher) Terminated() bool {
	return d.terminated
}

// HandleFrame decodes f and dispatches it. It reports whether the frame was
// dispatched.
func (d *Dispatcher) HandleFrame(f sse.Frame) bool {
	ev, ok := Decode(f)
	if !ok {
		return false
	}
	return d.Dispatch(ev)
}

// Dispatch invokes the callback for ev. It reports whether ev was delivered.
func (d *Dispatcher) Dispatch(ev Event) bool {
	if d.terminated {
		return false
	}
	if ev.Terminal() {
		d.terminated = true
	}

	switch ev.Type {
	case EventUserMessage:
		if d.cb.OnUserMessage != nil && ev.Message != nil {
			d.cb.OnUserMessage(*ev.Message)
		}
	case EventContentDelta:
		if d.cb.OnContentDelta != nil {
			d.cb.OnContentDelta(ev.Chunk)
		}
	case EventDone:
		if d.cb.OnDone != nil && ev.Message != nil {
			d.cb.OnDone(*ev.Message)
		}
	case EventError:
		if d.cb.OnError != nil {
			d.cb.OnError(ev.Detail)
		}
	}
	return true
}
