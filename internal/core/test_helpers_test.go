package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		if ev != nil {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(wait):
	}
}

// loopback is a minimal in-package broker so the core tests do not depend
// on a broker implementation.
type loopback struct {
	mu  sync.Mutex
	ch  chan Envelope
	err error
}

func newLoopback() *loopback {
	return &loopback{ch: make(chan Envelope, 64)}
}

func (l *loopback) Publish(_ context.Context, env Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.ch <- env
	return nil
}

func (l *loopback) Deliveries() <-chan Envelope { return l.ch }

func (l *loopback) Close() error { return nil }

type roomSet map[int64]bool

func (r roomSet) GetRoomByID(_ context.Context, id int64) (*store.Room, error) {
	if !r[id] {
		return nil, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
	}
	return &store.Room{ID: id}, nil
}

func startHub(t *testing.T, lookup RoomLookup) (*Hub, *loopback) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	b := newLoopback()
	hub := NewHub(b, lookup, nil)
	go hub.Run(ctx)
	return hub, b
}

func subscribe(t *testing.T, c *Client, roomID int64, topic string) {
	t.Helper()
	c.Commands <- &Command{Kind: CommandSubscribe, RoomID: roomID, Topic: topic}
	ev := mustEvent(t, c.Events, EventSubscribed)
	if ev.RoomID != roomID || ev.Topic != topic {
		t.Fatalf("unexpected ack: %+v", ev)
	}
}
