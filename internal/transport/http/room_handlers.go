package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// Publisher announces inserts and typing signals to live subscribers.
// *core.Hub satisfies it.
type Publisher interface {
	PublishMessage(ctx context.Context, msg core.Message) error
	PublishTyping(ctx context.Context, sig core.Typing) error
}

// RoomHandlers provides HTTP handlers for rooms, their history and the
// write side of the live streams.
type RoomHandlers struct {
	store           store.Store
	hub             Publisher
	maxMessageBytes int
	maxHistory      int
	log             *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, hub Publisher, maxMessageBytes, maxHistory int, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store:           st,
		hub:             hub,
		maxMessageBytes: maxMessageBytes,
		maxHistory:      maxHistory,
		log:             logger,
	}
}

// ListRooms returns every joinable room.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]proto.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, proto.RoomResponse{
			ID:          room.ID,
			Name:        room.Name,
			Description: room.Description,
			CreatedAt:   room.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// ListMessages returns the most recent messages of a room, oldest first.
// GET /api/rooms/:id/messages?limit=N
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}

	limit := h.maxHistory
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, h.maxHistory)
	}

	msgs, err := h.store.RecentMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]proto.MessageData, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, proto.MessageData{
			ID:         m.ID,
			RoomID:     m.RoomID,
			SenderID:   m.UserID,
			SenderName: m.SenderName,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// SendMessage persists a message and announces it on the insert stream.
// The sender sees its own message only through that stream.
// POST /api/rooms/:id/messages
func (h *RoomHandlers) SendMessage(c *gin.Context) {
	userID, displayName, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}

	var req proto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message body is empty"})
		return
	}
	if h.maxMessageBytes > 0 && len(body) > h.maxMessageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "message too large"})
		return
	}

	msg := &store.Message{RoomID: roomID, UserID: userID, Body: body}
	if err := h.store.SaveMessage(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", userID).Msg("failed to save message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// Already persisted, so a failed fan-out is only logged.
	if err := h.hub.PublishMessage(c.Request.Context(), core.Message{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.UserID,
		SenderName: displayName,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt,
	}); err != nil {
		h.log.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to publish message")
	}

	h.log.Debug().Int64("room_id", roomID).Int64("message_id", msg.ID).Msg("message stored")
	c.JSON(http.StatusCreated, proto.SendMessageResponse{ID: msg.ID})
}

// Typing broadcasts a typing signal of the caller. Senders receive their own
// signal back; filtering is up to clients.
// POST /api/rooms/:id/typing
func (h *RoomHandlers) Typing(c *gin.Context) {
	userID, displayName, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}

	if err := h.hub.PublishTyping(c.Request.Context(), core.Typing{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		ObservedAt:  time.Now().UTC(),
	}); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to publish typing")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "typing unavailable"})
		return
	}
	c.Status(http.StatusAccepted)
}

// roomParam parses :id and checks that the room exists. It writes the error
// response itself and reports false on failure.
func (h *RoomHandlers) roomParam(c *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return 0, false
	}
	if _, err := h.store.GetRoomByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return 0, false
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, false
	}
	return roomID, true
}
