package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
	"github.com/vovakirdan/wirechat-rooms/internal/remote"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run registers a throwaway user, subscribes to a room's insert stream,
// sends one message and waits until it comes back on the stream.
func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := remote.New(*server, nil, nil)
	if err != nil {
		return err
	}
	username := "smoke-" + uuid.NewString()[:8]
	if err := client.Register(ctx, username, uuid.NewString(), ""); err != nil {
		return err
	}
	fmt.Printf("Registered %s\n", username)

	rooms, err := client.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	roomID, err := findRoom(rooms, *room)
	if err != nil {
		return err
	}

	stream, err := client.SubscribeInserts(ctx, roomID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer stream.Close()

	if err := client.AppendMessage(ctx, chat.NewMessage{RoomID: roomID, Body: *text}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	self, _ := client.Identity()
	for {
		select {
		case msg, ok := <-stream.Events():
			if !ok {
				return errors.New("stream closed before the message arrived")
			}
			fmt.Printf("Insert: room=%d id=%d sender=%d body=%q\n", msg.RoomID, msg.ID, msg.SenderID, msg.Body)
			if msg.SenderID == self.UserID && msg.Body == *text {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for insert: %w", ctx.Err())
		}
	}
}

func findRoom(rooms []chat.Room, name string) (int64, error) {
	for _, r := range rooms {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("room %q not found", name)
}
