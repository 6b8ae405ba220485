package http

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func makeJWT(secret, aud, iss string, userID int64, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":      userID,
		"display_name": name,
		"exp":          time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestWebSocketJWTSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	token, err := makeJWT(testSecret, "test", "test", 42, "Zed", time.Hour)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.dial(t, ctx)
	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token})

	out := readOutbound(t, ctx, conn)
	if out.Event != proto.EventReady {
		t.Fatalf("expected ready, got %+v", out)
	}
	ready := decodeData[proto.ReadyData](t, out)
	if ready.UserID != 42 || ready.DisplayName != "Zed" || ready.Protocol != proto.ProtocolVersion {
		t.Fatalf("unexpected ready payload: %+v", ready)
	}
}

func TestWebSocketJWTRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		secret string
		aud    string
		iss    string
		ttl    time.Duration
	}{
		{name: "wrong secret", secret: "other", aud: "test", iss: "test", ttl: time.Hour},
		{name: "expired", secret: testSecret, aud: "test", iss: "test", ttl: -time.Minute},
		{name: "wrong audience", secret: testSecret, aud: "someone-else", iss: "test", ttl: time.Hour},
		{name: "wrong issuer", secret: testSecret, aud: "test", iss: "mallory", ttl: time.Hour},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token, err := makeJWT(tc.secret, tc.aud, tc.iss, 7, "eve", tc.ttl)
			if err != nil {
				t.Fatalf("make jwt: %v", err)
			}

			ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCtx()

			conn := env.dial(t, ctx)
			sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token})

			out := readOutbound(t, ctx, conn)
			if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeUnauthorized {
				t.Fatalf("expected unauthorized, got %+v", out)
			}
		})
	}
}
