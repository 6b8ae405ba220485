package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// RoomLookup resolves room ids. store.RoomStore satisfies it.
type RoomLookup interface {
	GetRoomByID(ctx context.Context, id int64) (*store.Room, error)
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub routes broker deliveries to the clients subscribed to each room topic.
// All subscription state is owned by the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	done       chan struct{}

	clients map[*Client]context.CancelFunc
	rooms   map[roomKey]*Room

	broker Broker
	lookup RoomLookup
	log    *zerolog.Logger
}

// NewHub creates a new chat hub instance. lookup may be nil to accept any
// room id.
func NewHub(broker Broker, lookup RoomLookup, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		commands:   make(chan clientCommand, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]context.CancelFunc),
		rooms:      make(map[roomKey]*Room),
		broker:     broker,
		lookup:     lookup,
		log:        logger,
	}
}

// Run processes registrations, commands and deliveries until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.shutdown()

	deliveries := h.broker.Deliveries()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case env, ok := <-deliveries:
			if !ok {
				h.log.Warn().Msg("broker deliveries closed")
				return
			}
			h.deliver(env)
		}
	}
}

// RegisterClient attaches a client; its Commands are consumed until it is
// unregistered.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient drops every subscription of c and closes c.Events. The
// hub also closes c.Events on its own when c falls too far behind.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish hands an envelope to the broker for fan-out on every instance.
func (h *Hub) Publish(ctx context.Context, env Envelope) error {
	if !ValidTopic(env.Topic) {
		return fmt.Errorf("publish: unknown topic %q", env.Topic)
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	if err := h.broker.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish %s: %w", env.Topic, err)
	}
	return nil
}

// PublishMessage announces a persisted message.
func (h *Hub) PublishMessage(ctx context.Context, msg Message) error {
	return h.Publish(ctx, MessageEnvelope(msg))
}

// PublishTyping announces a typing signal.
func (h *Hub) PublishTyping(ctx context.Context, sig Typing) error {
	return h.Publish(ctx, TypingEnvelope(sig))
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; ok {
		return
	}
	pumpCtx, cancel := context.WithCancel(ctx)
	h.clients[c] = cancel
	go h.pump(pumpCtx, c)
	h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID).Msg("client registered")
}

// pump forwards client commands into the hub loop.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	cancel, ok := h.clients[c]
	if !ok {
		return
	}
	cancel()
	delete(h.clients, c)
	for key, room := range h.rooms {
		if room.RemoveClient(c) && room.Empty() {
			delete(h.rooms, key)
		}
	}
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		h.removeClient(c)
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	if _, ok := h.clients[c]; !ok || cmd == nil {
		return
	}
	if !ValidTopic(cmd.Topic) {
		h.sendError(c, cmd, ErrCodeBadRequest, fmt.Sprintf("unknown topic %q", cmd.Topic))
		return
	}

	key := roomKey{roomID: cmd.RoomID, topic: cmd.Topic}
	switch cmd.Kind {
	case CommandSubscribe:
		if err := h.checkRoom(ctx, cmd.RoomID); err != nil {
			var coreErr *CoreError
			if errors.As(err, &coreErr) {
				h.sendError(c, cmd, coreErr.Code, coreErr.Message)
			} else {
				h.log.Error().Err(err).Int64("room_id", cmd.RoomID).Msg("room lookup failed")
				h.sendError(c, cmd, ErrCodeInternal, "room lookup failed")
			}
			return
		}
		room, ok := h.rooms[key]
		if !ok {
			room = NewRoom(cmd.RoomID, cmd.Topic)
			h.rooms[room.key()] = room
		}
		if !room.AddClient(c) {
			h.sendError(c, cmd, ErrCodeAlreadySubscribed, "already subscribed")
			return
		}
		h.send(c, &Event{Kind: EventSubscribed, RoomID: cmd.RoomID, Topic: cmd.Topic})
		h.log.Debug().Str("client_id", c.ID).Int64("room_id", cmd.RoomID).Str("topic", cmd.Topic).Msg("subscribed")

	case CommandUnsubscribe:
		room, ok := h.rooms[key]
		if !ok || !room.RemoveClient(c) {
			h.sendError(c, cmd, ErrCodeNotSubscribed, "not subscribed")
			return
		}
		if room.Empty() {
			delete(h.rooms, key)
		}
		h.send(c, &Event{Kind: EventUnsubscribed, RoomID: cmd.RoomID, Topic: cmd.Topic})

	default:
		h.sendError(c, cmd, ErrCodeBadRequest, "unknown command")
	}
}

func (h *Hub) checkRoom(ctx context.Context, roomID int64) error {
	if h.lookup == nil {
		return nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := h.lookup.GetRoomByID(lookupCtx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return coreError(ErrCodeRoomNotFound, "room not found")
		}
		return err
	}
	return nil
}

func (h *Hub) deliver(env Envelope) {
	room, ok := h.rooms[roomKey{roomID: env.RoomID, topic: env.Topic}]
	if !ok {
		return
	}

	event := &Event{RoomID: env.RoomID, Topic: env.Topic}
	switch {
	case env.Topic == TopicMessages && env.Message != nil:
		event.Kind = EventMessageInserted
		event.Message = env.Message
	case env.Topic == TopicTyping && env.Typing != nil:
		event.Kind = EventTyping
		event.Typing = env.Typing
	default:
		h.log.Warn().Str("topic", env.Topic).Int64("room_id", env.RoomID).Msg("malformed envelope")
		return
	}

	for _, c := range room.Broadcast(event) {
		h.log.Warn().Str("client_id", c.ID).Int64("room_id", env.RoomID).Str("topic", env.Topic).Msg("evicting slow client")
		h.removeClient(c)
	}
}

// send delivers a control event. A client that cannot take it has fallen
// behind and is evicted so its stream ends instead of silently missing events.
func (h *Hub) send(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		h.log.Warn().Str("client_id", c.ID).Msg("evicting slow client")
		h.removeClient(c)
	}
}

func (h *Hub) sendError(c *Client, cmd *Command, code, msg string) {
	h.send(c, &Event{
		Kind:   EventError,
		RoomID: cmd.RoomID,
		Topic:  cmd.Topic,
		Error:  coreError(code, msg),
	})
}
