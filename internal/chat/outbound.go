package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Draft is the text the user is composing. It is shared between the input
// widget and Outbound, which clears it optimistically on send.
type Draft struct {
	mu   sync.Mutex
	text string
}

// Text returns the current draft.
func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Set replaces the draft.
func (d *Draft) Set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

// clearIf empties the draft only while it still holds text.
func (d *Draft) clearIf(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text == text {
		d.text = ""
	}
}

// restore puts text back unless the user already started a new draft.
func (d *Draft) restore(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text == "" {
		d.text = text
	}
}

// ActiveRoom reports the currently selected room.
type ActiveRoom interface {
	ActiveRoom() (int64, bool)
}

// Outbound validates and dispatches user-initiated writes. It never touches
// the View: a sent message shows up only once the insert stream delivers it.
type Outbound struct {
	store     MessageStore
	transport Transport
	identity  IdentityProvider
	rooms     ActiveRoom
	draft     *Draft
	opts      Options
	log       *zerolog.Logger
}

// NewOutbound builds an Outbound bound to draft.
func NewOutbound(store MessageStore, transport Transport, identity IdentityProvider, rooms ActiveRoom, draft *Draft, opts Options, logger *zerolog.Logger) *Outbound {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Outbound{
		store:     store,
		transport: transport,
		identity:  identity,
		rooms:     rooms,
		draft:     draft,
		opts:      opts.withDefaults(),
		log:       logger,
	}
}

// Draft returns the draft this Outbound sends from.
func (o *Outbound) Draft() *Draft {
	return o.draft
}

// SendMessage sends the trimmed text to the active room. A draft still
// holding text is cleared before the request is issued, and text is restored
// into an empty draft if the request fails.
func (o *Outbound) SendMessage(ctx context.Context, text string) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return ErrEmptyDraft
	}
	roomID, ok := o.activeRoom()
	if !ok {
		return ErrNoActiveRoom
	}
	id, ok := o.self()
	if !ok {
		return ErrNotAuthenticated
	}

	o.draft.clearIf(text)

	sendCtx, cancel := context.WithTimeout(ctx, o.opts.SendTimeout)
	defer cancel()

	err := o.store.AppendMessage(sendCtx, NewMessage{
		RoomID:   roomID,
		SenderID: id.UserID,
		Body:     body,
	})
	if err != nil {
		o.draft.restore(text)
		o.log.Warn().Err(err).Int64("room_id", roomID).Msg("send message failed")
		return transportError("send message", err)
	}
	return nil
}

// BroadcastTyping tells the room the user is composing. Without a room or an
// identity it silently does nothing. Callers are expected to throttle.
func (o *Outbound) BroadcastTyping(ctx context.Context) error {
	roomID, ok := o.activeRoom()
	if !ok {
		return nil
	}
	id, ok := o.self()
	if !ok {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.opts.SendTimeout)
	defer cancel()

	if err := o.transport.PublishTyping(sendCtx, TypingSignal{
		RoomID:      roomID,
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
	}); err != nil {
		o.log.Debug().Err(err).Int64("room_id", roomID).Msg("typing broadcast failed")
		return transportError("broadcast typing", err)
	}
	return nil
}

func (o *Outbound) activeRoom() (int64, bool) {
	if o.rooms == nil {
		return 0, false
	}
	return o.rooms.ActiveRoom()
}

func (o *Outbound) self() (Identity, bool) {
	if o.identity == nil {
		return Identity{}, false
	}
	return o.identity.Identity()
}
