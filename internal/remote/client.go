// Package remote implements the chat core's collaborators against a
// wirechat server: REST for rooms, history, sends and profiles, one
// WebSocket per live stream.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

// ErrNoSession is returned by calls that need a token before Login or
// Register succeeded.
var ErrNoSession = errors.New("no session")

// StatusError is a non-2xx response of the REST API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to one server on behalf of one user.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *zerolog.Logger

	mu      sync.RWMutex
	session *proto.AuthResponse
}

var (
	_ chat.RoomDirectory    = (*Client)(nil)
	_ chat.MessageStore     = (*Client)(nil)
	_ chat.ProfileLookup    = (*Client)(nil)
	_ chat.Transport        = (*Client)(nil)
	_ chat.IdentityProvider = (*Client)(nil)
)

// New creates a client for the server at baseURL (http or https).
// httpClient may be nil.
func New(baseURL string, httpClient *http.Client, logger *zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{baseURL: u, http: httpClient, log: logger}, nil
}

// Register creates an account and keeps its session.
func (c *Client) Register(ctx context.Context, username, password, displayName string) error {
	var resp proto.AuthResponse
	req := proto.RegisterRequest{Username: username, Password: password, DisplayName: displayName}
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &resp); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	c.setSession(&resp)
	return nil
}

// Login authenticates and keeps the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp proto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", proto.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.setSession(&resp)
	return nil
}

// Identity reports the signed-in user.
func (c *Client) Identity() (chat.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return chat.Identity{}, false
	}
	return chat.Identity{UserID: c.session.UserID, DisplayName: c.session.DisplayName}, true
}

// ListRooms lists every joinable room.
func (c *Client) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var resp []proto.RoomResponse
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &resp); err != nil {
		return nil, err
	}
	rooms := make([]chat.Room, 0, len(resp))
	for _, r := range resp {
		rooms = append(rooms, chat.Room{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt})
	}
	return rooms, nil
}

// RecentMessages fetches up to limit most recent messages, oldest first.
func (c *Client) RecentMessages(ctx context.Context, roomID int64, limit int) ([]chat.Message, error) {
	path := "/api/rooms/" + strconv.FormatInt(roomID, 10) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp []proto.MessageData
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(resp))
	for _, m := range resp {
		msgs = append(msgs, messageFromData(m))
	}
	return msgs, nil
}

// AppendMessage persists a message. The server takes the sender from the
// session token, so msg.SenderID is informational.
func (c *Client) AppendMessage(ctx context.Context, msg chat.NewMessage) error {
	path := "/api/rooms/" + strconv.FormatInt(msg.RoomID, 10) + "/messages"
	var resp proto.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, path, proto.SendMessageRequest{Body: msg.Body}, &resp); err != nil {
		return err
	}
	c.log.Debug().Int64("room_id", msg.RoomID).Int64("message_id", resp.ID).Msg("message accepted")
	return nil
}

// DisplayName resolves a user's display name.
func (c *Client) DisplayName(ctx context.Context, userID int64) (string, error) {
	var resp proto.UserResponse
	err := c.do(ctx, http.MethodGet, "/api/users/"+strconv.FormatInt(userID, 10), nil, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return "", chat.ErrProfileNotFound
		}
		return "", err
	}
	return resp.DisplayName, nil
}

// PublishTyping announces that the signed-in user is composing in
// sig.RoomID. The server stamps identity and time itself.
func (c *Client) PublishTyping(ctx context.Context, sig chat.TypingSignal) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+strconv.FormatInt(sig.RoomID, 10)+"/typing", nil, nil)
}

func (c *Client) setSession(s *proto.AuthResponse) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return "", false
	}
	return c.session.Token, true
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Routes other than register and login carry the session token.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if path != "/api/register" && path != "/api/login" {
		token, ok := c.token()
		if !ok {
			return ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp proto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &StatusError{Status: resp.StatusCode, Message: errResp.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wsURL maps the base URL onto the /ws endpoint.
func (c *Client) wsURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func messageFromData(m proto.MessageData) chat.Message {
	return chat.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		SenderName: m.SenderName,
	}
}

func typingFromData(t proto.TypingData) chat.TypingSignal {
	return chat.TypingSignal{
		RoomID:      t.RoomID,
		UserID:      t.UserID,
		DisplayName: t.DisplayName,
		ObservedAt:  t.ObservedAt,
	}
}
