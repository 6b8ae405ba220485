package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("already exists")
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a chat room.
type Room struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Message represents a persisted chat message. SenderName is filled by
// queries that join users and is never written.
type Message struct {
	ID         int64
	RoomID     int64
	UserID     int64
	Body       string
	CreatedAt  time.Time
	SenderName string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// EnsureRoom returns the room with name, creating it when missing.
	EnsureRoom(ctx context.Context, name, description string) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id int64) (*Room, error)

	// ListRooms lists every joinable room, oldest first.
	ListRooms(ctx context.Context) ([]*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// RecentMessages returns up to limit most recent messages of a room in
	// ascending creation order, with SenderName joined from users.
	RecentMessages(ctx context.Context, roomID int64, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
