package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessageInserted delivers a newly persisted message.
	EventMessageInserted EventKind = iota
	// EventTyping delivers a typing signal.
	EventTyping
	// EventSubscribed acknowledges a subscribe command.
	EventSubscribed
	// EventUnsubscribed acknowledges an unsubscribe command.
	EventUnsubscribed
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMessageInserted:
		return "message_inserted"
	case EventTyping:
		return "typing"
	case EventSubscribed:
		return "subscribed"
	case EventUnsubscribed:
		return "unsubscribed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	RoomID  int64
	Topic   string
	Message *Message
	Typing  *Typing
	Error   *CoreError
}
