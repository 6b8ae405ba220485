package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSubscribe starts delivery of one topic of a room.
	CommandSubscribe CommandKind = iota
	// CommandUnsubscribe stops it.
	CommandUnsubscribe
)

// Command represents an action requested by a client.
type Command struct {
	Kind   CommandKind
	RoomID int64
	Topic  string
}
