package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// setupTestBroker connects to REDIS_ADDR (default localhost:6379) on a
// throwaway channel and skips when Redis is not reachable.
func setupTestBroker(t *testing.T) (*Broker, *redis.Client, string) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	channel := "wirechat:test:" + uuid.NewString()
	b, err := New(context.Background(), client, channel, nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("new broker: %v", err)
	}
	t.Cleanup(func() {
		_ = b.Close()
		_ = client.Close()
	})
	return b, client, channel
}

func TestPublishFansOutToEveryInstance(t *testing.T) {
	first, client, channel := setupTestBroker(t)

	second, err := New(context.Background(), client, channel, nil)
	if err != nil {
		t.Fatalf("second broker: %v", err)
	}
	defer second.Close()

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	env := core.MessageEnvelope(core.Message{ID: 5, RoomID: 2, SenderID: 3, Body: "hello", CreatedAt: created})
	if err := first.Publish(context.Background(), env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, b := range map[string]*Broker{"first": first, "second": second} {
		select {
		case got := <-b.Deliveries():
			if got.Message == nil || got.Message.ID != 5 || !got.Message.CreatedAt.Equal(created) {
				t.Fatalf("%s: unexpected envelope %+v", name, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: expected delivery", name)
		}
	}
}

func TestUndecodablePayloadIsSkipped(t *testing.T) {
	b, client, channel := setupTestBroker(t)
	ctx := context.Background()

	if err := client.Publish(ctx, channel, "not json").Err(); err != nil {
		t.Fatalf("raw publish: %v", err)
	}
	if err := b.Publish(ctx, core.TypingEnvelope(core.Typing{RoomID: 1, UserID: 9, DisplayName: "zed"})); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-b.Deliveries():
		if got.Typing == nil || got.Typing.DisplayName != "zed" {
			t.Fatalf("unexpected envelope %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected delivery")
	}
}

func TestCloseEndsDeliveries(t *testing.T) {
	b, _, _ := setupTestBroker(t)

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-b.Deliveries():
		if ok {
			t.Fatalf("expected closed deliveries")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deliveries not closed")
	}
}
