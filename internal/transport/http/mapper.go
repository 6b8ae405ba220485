package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// Protocol error codes that never reach the core.
const (
	errCodeInvalidMessage     = "invalid_message"
	errCodeUnsupportedVersion = "unsupported_version"
	errCodeHelloRequired      = "hello_required"
	errCodeRateLimited        = "rate_limited"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	var kind core.CommandKind
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		kind = core.CommandSubscribe
	case proto.InboundTypeUnsubscribe:
		kind = core.CommandUnsubscribe
	case proto.InboundTypeHello:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "already authenticated"}
	default:
		return nil, &proto.Error{Code: errCodeInvalidMessage, Msg: "unknown message type"}
	}

	var data proto.SubscribeData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid data"}
	}
	if data.RoomID <= 0 {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room_id is required"}
	}
	if !core.ValidTopic(data.Topic) {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown topic"}
	}
	return &core.Command{Kind: kind, RoomID: data.RoomID, Topic: data.Topic}, nil
}

func outboundFromEvent(event *core.Event) (proto.Outbound, error) {
	switch event.Kind {
	case core.EventMessageInserted:
		m := event.Message
		return proto.NewEvent(proto.EventMessageInserted, proto.MessageData{
			ID:         m.ID,
			RoomID:     m.RoomID,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
		})
	case core.EventTyping:
		t := event.Typing
		return proto.NewEvent(proto.EventTyping, proto.TypingData{
			RoomID:      t.RoomID,
			UserID:      t.UserID,
			DisplayName: t.DisplayName,
			ObservedAt:  t.ObservedAt,
		})
	case core.EventSubscribed:
		return proto.NewEvent(proto.EventSubscribed, proto.SubscribeData{RoomID: event.RoomID, Topic: event.Topic})
	case core.EventUnsubscribed:
		return proto.NewEvent(proto.EventUnsubscribed, proto.SubscribeData{RoomID: event.RoomID, Topic: event.Topic})
	case core.EventError:
		if event.Error == nil {
			return proto.NewError(core.ErrCodeInternal, "unknown error"), nil
		}
		return proto.NewError(event.Error.Code, event.Error.Message), nil
	default:
		return proto.NewError(core.ErrCodeInternal, "unknown event"), nil
	}
}
