package http

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func TestProtocolVersionMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice", "")

	cctx, closeCtx := context.WithTimeout(context.Background(), 3*time.Second)
	defer closeCtx()

	conn := env.dial(t, cctx)
	sendInbound(t, cctx, conn, proto.InboundTypeHello, proto.HelloData{Token: alice.Token, Protocol: proto.ProtocolVersion + 1})

	outbound := readOutbound(t, cctx, conn)
	if outbound.Type != proto.OutboundTypeError || outbound.Error == nil || outbound.Error.Code != "unsupported_version" {
		t.Fatalf("expected unsupported_version error, got %+v", outbound)
	}
}
