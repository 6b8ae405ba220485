package chat

import (
	"context"
	"time"
)

// UnknownSender is shown when the author of a message cannot be resolved.
const UnknownSender = "Unknown"

// Room is a joinable room as listed by the directory.
type Room struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Message is a persisted chat message. SenderName is resolved at read time
// and never written back to the store.
type Message struct {
	ID         int64
	RoomID     int64
	SenderID   int64
	Body       string
	CreatedAt  time.Time
	SenderName string
}

// NewMessage is a send request. The store assigns ID and CreatedAt.
type NewMessage struct {
	RoomID   int64
	SenderID int64
	Body     string
}

// TypingSignal is an ephemeral "user is composing" broadcast.
type TypingSignal struct {
	RoomID      int64
	UserID      int64
	DisplayName string
	ObservedAt  time.Time
}

// TypingUser is a live entry of the presence tracker.
type TypingUser struct {
	UserID      int64
	DisplayName string
}

// Identity is the acting user.
type Identity struct {
	UserID      int64
	DisplayName string
}

// IdentityProvider supplies the acting user, if any.
type IdentityProvider interface {
	Identity() (Identity, bool)
}

// RoomDirectory lists joinable rooms.
type RoomDirectory interface {
	ListRooms(ctx context.Context) ([]Room, error)
}

// MessageStore is durable, created-at ordered message persistence.
type MessageStore interface {
	// RecentMessages returns up to limit most recent messages of a room,
	// ordered ascending by CreatedAt.
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]Message, error)

	// AppendMessage persists a message. Confirmation reaches clients only
	// through the insert stream.
	AppendMessage(ctx context.Context, msg NewMessage) error
}

// ProfileLookup resolves display names. Implementations return
// ErrProfileNotFound for unknown users.
type ProfileLookup interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Stream is a live, room-scoped feed. Events is closed when the stream ends,
// either through Close or because the underlying connection dropped.
type Stream[T any] interface {
	Events() <-chan T
	Close() error
}

// Transport opens the two live streams of a room and publishes typing
// broadcasts.
type Transport interface {
	SubscribeInserts(ctx context.Context, roomID int64) (Stream[Message], error)
	SubscribeTyping(ctx context.Context, roomID int64) (Stream[TypingSignal], error)
	PublishTyping(ctx context.Context, sig TypingSignal) error
}
