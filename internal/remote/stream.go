package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

const streamBuffer = 64

// stream is one authenticated WebSocket subscribed to a single room topic.
type stream[T any] struct {
	conn   *websocket.Conn
	events chan T
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	log    *zerolog.Logger
}

func (s *stream[T]) Events() <-chan T {
	return s.events
}

// Close ends the connection and waits for the reader to exit. Events is
// closed afterwards. Teardown problems are logged, not returned.
func (s *stream[T]) Close() error {
	s.once.Do(func() {
		// Cancelling the read context tears the connection down, so Close
		// below usually reports it as already closed.
		s.cancel()
		<-s.done
		if err := s.conn.Close(websocket.StatusNormalClosure, "bye"); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug().Err(err).Msg("stream close")
		}
	})
	return nil
}

// SubscribeInserts opens the insert stream of a room.
func (c *Client) SubscribeInserts(ctx context.Context, roomID int64) (chat.Stream[chat.Message], error) {
	return openStream(ctx, c, roomID, core.TopicMessages, proto.EventMessageInserted, messageFromData)
}

// SubscribeTyping opens the typing stream of a room.
func (c *Client) SubscribeTyping(ctx context.Context, roomID int64) (chat.Stream[chat.TypingSignal], error) {
	return openStream(ctx, c, roomID, core.TopicTyping, proto.EventTyping, typingFromData)
}

// openStream dials, authenticates and subscribes within ctx. The returned
// stream outlives ctx and runs until Close or until the connection drops.
func openStream[D, T any](ctx context.Context, c *Client, roomID int64, topic, event string, convert func(D) T) (chat.Stream[T], error) {
	token, ok := c.token()
	if !ok {
		return nil, ErrNoSession
	}

	conn, _, err := websocket.Dial(ctx, c.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s stream: %w", topic, err)
	}

	if err := handshake(ctx, conn, token, roomID, topic); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "handshake failed")
		return nil, err
	}

	log := c.log.With().Int64("room_id", roomID).Str("topic", topic).Logger()
	readCtx, cancel := context.WithCancel(context.Background())
	s := &stream[T]{
		conn:   conn,
		events: make(chan T, streamBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
		log:    &log,
	}
	go readStream(readCtx, s, event, convert)
	return s, nil
}

// handshake sends hello and subscribe, waiting for each acknowledgement.
func handshake(ctx context.Context, conn *websocket.Conn, token string, roomID int64, topic string) error {
	if err := writeInbound(ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := expectEvent(ctx, conn, proto.EventReady); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	if err := writeInbound(ctx, conn, proto.InboundTypeSubscribe, proto.SubscribeData{RoomID: roomID, Topic: topic}); err != nil {
		return err
	}
	if err := expectEvent(ctx, conn, proto.EventSubscribed); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func writeInbound(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// expectEvent reads one frame and requires it to be event. Error frames are
// returned as *proto.Error.
func expectEvent(ctx context.Context, conn *websocket.Conn, event string) error {
	var out proto.Outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		return err
	}
	if out.Type == proto.OutboundTypeError && out.Error != nil {
		return out.Error
	}
	if out.Event != event {
		return fmt.Errorf("expected %s, got %s", event, out.Event)
	}
	return nil
}

func readStream[D, T any](ctx context.Context, s *stream[T], event string, convert func(D) T) {
	log := s.log
	defer close(s.done)
	defer close(s.events)

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, s.conn, &out); err != nil {
			if ctx.Err() == nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Debug().Msg("stream closed by server")
				default:
					log.Warn().Err(err).Msg("stream dropped")
				}
			}
			return
		}

		if out.Type == proto.OutboundTypeError {
			log.Warn().Interface("error", out.Error).Msg("stream error frame")
			continue
		}
		if out.Event != event {
			continue
		}

		var data D
		if err := json.Unmarshal(out.Data, &data); err != nil {
			log.Warn().Err(err).Msg("undecodable stream event")
			continue
		}
		select {
		case s.events <- convert(data):
		case <-ctx.Done():
			return
		}
	}
}
