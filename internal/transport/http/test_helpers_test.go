package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/broker/memory"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

const (
	testSecret   = "test-secret"
	generalRoom  = int64(1)
	randomRoom   = int64(2)
	readDeadline = 3 * time.Second
)

type testEnv struct {
	cfg    config.Config
	store  store.Store
	auth   *auth.Service
	server *http.Server
	ts     *httptest.Server
}

// createTestStore creates an in-memory SQLite store with the "general" and
// "random" rooms seeded.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	for _, name := range []string{"general", "random"} {
		if _, err := st.EnsureRoom(context.Background(), name, ""); err != nil {
			t.Fatalf("seed room %s: %v", name, err)
		}
	}
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, cfg config.Config) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	return auth.NewService(st, jwtConfig)
}

// newTestEnv starts a full server stack on a loopback broker. mutate may
// adjust the configuration before anything is built.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = testSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	if mutate != nil {
		mutate(&cfg)
	}

	st := createTestStore(t)
	authService := createTestAuthService(t, st, cfg)
	broker := memory.New(64)

	disabledLogger := zerolog.New(nil)
	hub := core.NewHub(broker, st, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		cancel()
		ts.Close()
		_ = broker.Close()
		_ = st.Close()
	})

	return &testEnv{cfg: cfg, store: st, auth: authService, server: server, ts: ts}
}

func (e *testEnv) register(t *testing.T, username, displayName string) *auth.Session {
	t.Helper()

	session, err := e.auth.Register(context.Background(), username, "password123", displayName)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return session
}

// do runs a request against the router without a network round trip.
func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// connect dials, says hello with token and waits for ready.
func (e *testEnv) connect(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn := e.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})
	out := readOutbound(t, ctx, conn)
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventReady {
		t.Fatalf("expected ready, got %+v", out)
	}
	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Outbound {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, readDeadline)
	defer cancel()

	var out proto.Outbound
	if err := wsjson.Read(readCtx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

// subscribe sends a subscribe command and expects its acknowledgement.
func subscribe(t *testing.T, ctx context.Context, conn *websocket.Conn, roomID int64, topic string) {
	t.Helper()

	sendInbound(t, ctx, conn, proto.InboundTypeSubscribe, proto.SubscribeData{RoomID: roomID, Topic: topic})
	out := readOutbound(t, ctx, conn)
	if out.Event != proto.EventSubscribed {
		t.Fatalf("expected subscribed, got %+v", out)
	}
}

func decodeData[T any](t *testing.T, out proto.Outbound) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(out.Data, &v); err != nil {
		t.Fatalf("unmarshal %s data: %v", out.Event, err)
	}
	return v
}
