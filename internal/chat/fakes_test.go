package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

type fakeStream[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

func newFakeStream[T any]() *fakeStream[T] {
	return &fakeStream[T]{ch: make(chan T, 16)}
}

func (s *fakeStream[T]) Events() <-chan T { return s.ch }

func (s *fakeStream[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// push delivers v unless the stream was closed.
func (s *fakeStream[T]) push(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- v
	return true
}

func (s *fakeStream[T]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeTransport struct {
	mu         sync.Mutex
	inserts    map[int64][]*fakeStream[Message]
	typing     map[int64][]*fakeStream[TypingSignal]
	published  []TypingSignal
	insertErr  error
	typingErr  error
	publishErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inserts: make(map[int64][]*fakeStream[Message]),
		typing:  make(map[int64][]*fakeStream[TypingSignal]),
	}
}

func (f *fakeTransport) SubscribeInserts(_ context.Context, roomID int64) (Stream[Message], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	s := newFakeStream[Message]()
	f.inserts[roomID] = append(f.inserts[roomID], s)
	return s, nil
}

func (f *fakeTransport) SubscribeTyping(_ context.Context, roomID int64) (Stream[TypingSignal], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.typingErr != nil {
		return nil, f.typingErr
	}
	s := newFakeStream[TypingSignal]()
	f.typing[roomID] = append(f.typing[roomID], s)
	return s, nil
}

func (f *fakeTransport) PublishTyping(_ context.Context, sig TypingSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, sig)
	return nil
}

func (f *fakeTransport) lastInserts(roomID int64) *fakeStream[Message] {
	f.mu.Lock()
	defer f.mu.Unlock()
	streams := f.inserts[roomID]
	if len(streams) == 0 {
		return nil
	}
	return streams[len(streams)-1]
}

func (f *fakeTransport) lastTyping(roomID int64) *fakeStream[TypingSignal] {
	f.mu.Lock()
	defer f.mu.Unlock()
	streams := f.typing[roomID]
	if len(streams) == 0 {
		return nil
	}
	return streams[len(streams)-1]
}

func (f *fakeTransport) publishedSignals() []TypingSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TypingSignal(nil), f.published...)
}

type fakeStore struct {
	mu         sync.Mutex
	history    map[int64][]Message
	historyErr error
	appendErr  error
	appended   []NewMessage
	fetches    int
	appends    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{history: make(map[int64][]Message)}
}

func (f *fakeStore) RecentMessages(_ context.Context, roomID int64, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	msgs := f.history[roomID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]Message(nil), msgs...), nil
}

func (f *fakeStore) AppendMessage(_ context.Context, msg NewMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeStore) appendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

type fakeProfiles struct {
	mu    sync.Mutex
	names map[int64]string
	err   error
	calls int
}

func (f *fakeProfiles) DisplayName(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	name, ok := f.names[userID]
	if !ok {
		return "", ErrProfileNotFound
	}
	return name, nil
}

func (f *fakeProfiles) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIdentity struct {
	id Identity
	ok bool
}

func (f fakeIdentity) Identity() (Identity, bool) { return f.id, f.ok }

type fakeDirectory struct {
	rooms []Room
	err   error
}

func (f fakeDirectory) ListRooms(context.Context) ([]Room, error) {
	return append([]Room(nil), f.rooms...), f.err
}

type fixedRoom struct {
	id int64
	ok bool
}

func (f fixedRoom) ActiveRoom() (int64, bool) { return f.id, f.ok }

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func msgAt(id, roomID, senderID int64, body string, sec int) Message {
	return Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Unix(int64(sec), 0).UTC(),
	}
}

func ids(msgs []Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

type harness struct {
	mock      *clock.Mock
	transport *fakeTransport
	store     *fakeStore
	profiles  *fakeProfiles
	identity  fakeIdentity
	directory fakeDirectory
}

func newHarness() *harness {
	return &harness{
		mock:      clock.NewMock(),
		transport: newFakeTransport(),
		store:     newFakeStore(),
		profiles:  &fakeProfiles{names: map[int64]string{1: "alice", 2: "bob", 3: "carol"}},
		identity:  fakeIdentity{id: Identity{UserID: 1, DisplayName: "alice"}, ok: true},
		directory: fakeDirectory{rooms: []Room{{ID: 10, Name: "general"}, {ID: 20, Name: "random"}}},
	}
}

func (h *harness) controller() *Controller {
	return NewController(Deps{
		Directory: h.directory,
		Store:     h.store,
		Profiles:  h.profiles,
		Transport: h.transport,
		Identity:  h.identity,
	}, Options{Clock: h.mock}, nopLogger())
}
