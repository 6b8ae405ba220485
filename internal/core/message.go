package core

import "time"

// Topics a client can subscribe to within a room.
const (
	TopicMessages = "messages"
	TopicTyping   = "typing"
)

// ValidTopic reports whether topic is known.
func ValidTopic(topic string) bool {
	return topic == TopicMessages || topic == TopicTyping
}

// Message is the domain model for a persisted chat message.
type Message struct {
	ID         int64     `json:"id"`
	RoomID     int64     `json:"room_id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Typing is an ephemeral "user is composing" signal.
type Typing struct {
	RoomID      int64     `json:"room_id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Envelope is what travels through a Broker. Exactly one of Message and
// Typing is set, matching Topic.
type Envelope struct {
	Topic   string   `json:"topic"`
	RoomID  int64    `json:"room_id"`
	Message *Message `json:"message,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`
}

// MessageEnvelope wraps an inserted message.
func MessageEnvelope(msg Message) Envelope {
	return Envelope{Topic: TopicMessages, RoomID: msg.RoomID, Message: &msg}
}

// TypingEnvelope wraps a typing signal.
func TypingEnvelope(sig Typing) Envelope {
	return Envelope{Topic: TopicTyping, RoomID: sig.RoomID, Typing: &sig}
}
