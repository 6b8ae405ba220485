package proto

import "time"

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=32"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name" binding:"max=64"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the token and the identity it belongs to.
type AuthResponse struct {
	Token       string `json:"token"`
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// RoomResponse is a room in API responses.
type RoomResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserResponse is a public profile.
type UserResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// SendMessageRequest is the body of POST /api/rooms/:id/messages.
type SendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// SendMessageResponse acknowledges persistence. Delivery to the sender still
// happens through the insert stream.
type SendMessageResponse struct {
	ID int64 `json:"id"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}
