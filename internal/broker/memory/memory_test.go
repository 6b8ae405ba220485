package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

func TestPublishLoopsBack(t *testing.T) {
	b := New(4)
	defer b.Close()

	want := core.MessageEnvelope(core.Message{ID: 1, RoomID: 7, Body: "hi"})
	if err := b.Publish(context.Background(), want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-b.Deliveries():
		if got.Topic != core.TopicMessages || got.Message == nil || got.Message.Body != "hi" {
			t.Fatalf("unexpected envelope: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected delivery")
	}
}

func TestPublishRespectsContextWhenFull(t *testing.T) {
	b := New(1)
	defer b.Close()

	env := core.TypingEnvelope(core.Typing{RoomID: 1, UserID: 2})
	if err := b.Publish(context.Background(), env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Publish(ctx, env); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New(1)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := b.Publish(context.Background(), core.Envelope{Topic: core.TopicTyping}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-b.Deliveries(); ok {
		t.Fatalf("expected deliveries to be closed")
	}
}
