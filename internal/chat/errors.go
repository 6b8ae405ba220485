package chat

import (
	"errors"
	"fmt"
)

// Validation error codes.
const (
	ErrCodeEmptyDraft       = "empty_draft"
	ErrCodeNoActiveRoom     = "no_active_room"
	ErrCodeNotAuthenticated = "not_authenticated"
)

// ValidationError rejects a user action before any network call is made.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyDraft       = &ValidationError{Code: ErrCodeEmptyDraft, Message: "message is empty"}
	ErrNoActiveRoom     = &ValidationError{Code: ErrCodeNoActiveRoom, Message: "no room selected"}
	ErrNotAuthenticated = &ValidationError{Code: ErrCodeNotAuthenticated, Message: "not signed in"}
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrUnknownRoom      = errors.New("unknown room")
	ErrSubscriptionBusy = errors.New("subscription open for another room")
	ErrLogNotFresh      = errors.New("message log is not freshly reset")
)

// TransportError wraps a subscribe, fetch or send failure. The core never
// retries these; re-selecting the room is the recovery path.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
