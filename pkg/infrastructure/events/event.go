package events

import (
	"time"
)

// Event is one audit fact about a transfer-in session. Streams are keyed by
// session id and versions count from 1 within a stream.
type Event interface {
	Type() string
	SessionID() string
	Data() any
	OccurredAt() time.Time
	Version() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

type EventStore interface {
	AppendEvent(sessionID string, event Event) error
	ReadEvents(sessionID string, fromVersion int) ([]Event, error)
	ReadAllEvents(fromPosition int) ([]Event, error)
	Subscribe(eventTypes []string, handler EventHandler) error
	Unsubscribe(handler EventHandler) error
}

// Record is the stored form of an Event
type Record struct {
	EventType string    `json:"type"`
	Session   string    `json:"session_id"`
	Payload   any       `json:"data"`
	At        time.Time `json:"occurred_at"`
	Seq       int       `json:"version"`
}

func (r Record) Type() string          { return r.EventType }
func (r Record) SessionID() string     { return r.Session }
func (r Record) Data() any             { return r.Payload }
func (r Record) OccurredAt() time.Time { return r.At }
func (r Record) Version() int          { return r.Seq }

// NewEvent builds an unversioned event; the store assigns the version
func NewEvent(eventType, sessionID string, data any) Event {
	return Record{
		EventType: eventType,
		Session:   sessionID,
		Payload:   data,
		At:        time.Now().UTC(),
	}
}
