package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
)

var errBoom = errors.New("boom")

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fakeCore struct {
	mu       sync.Mutex
	rooms    []chat.Room
	active   int64
	selected []int64
	outbound *chat.Outbound
	updates  chan struct{}
}

func (f *fakeCore) Snapshot() chat.Snapshot { return chat.Snapshot{Active: true, Status: chat.LogReady} }
func (f *fakeCore) Rooms() []chat.Room      { return f.rooms }
func (f *fakeCore) Outbound() *chat.Outbound {
	return f.outbound
}
func (f *fakeCore) Updates() <-chan struct{} { return f.updates }

func (f *fakeCore) ActiveRoom() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.active != 0
}

func (f *fakeCore) SelectRoom(_ context.Context, roomID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, roomID)
	f.active = roomID
	return nil
}

// fakeBackend is the store, transport and identity behind the outbound.
type fakeBackend struct {
	mu        sync.Mutex
	appendErr error
	appended  []chat.NewMessage
	typing    int
}

func (b *fakeBackend) RecentMessages(context.Context, int64, int) ([]chat.Message, error) {
	return nil, nil
}

func (b *fakeBackend) AppendMessage(_ context.Context, msg chat.NewMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.appendErr != nil {
		return b.appendErr
	}
	b.appended = append(b.appended, msg)
	return nil
}

func (b *fakeBackend) SubscribeInserts(context.Context, int64) (chat.Stream[chat.Message], error) {
	return nil, errBoom
}

func (b *fakeBackend) SubscribeTyping(context.Context, int64) (chat.Stream[chat.TypingSignal], error) {
	return nil, errBoom
}

func (b *fakeBackend) PublishTyping(context.Context, chat.TypingSignal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typing++
	return nil
}

func (b *fakeBackend) Identity() (chat.Identity, bool) {
	return chat.Identity{UserID: 1, DisplayName: "alice"}, true
}

func (b *fakeBackend) sent() []chat.NewMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]chat.NewMessage(nil), b.appended...)
}

func (b *fakeBackend) typingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typing
}

func newTestModel(t *testing.T, backend *fakeBackend) (model, *fakeCore) {
	t.Helper()

	core := &fakeCore{
		rooms:   []chat.Room{{ID: 10, Name: "general"}, {ID: 20, Name: "random"}},
		active:  10,
		updates: make(chan struct{}),
	}
	core.outbound = chat.NewOutbound(backend, backend, backend, core, &chat.Draft{}, chat.Options{}, nil)
	return newModel(context.Background(), core, chat.Identity{UserID: 1, DisplayName: "alice"}, time.Hour, time.Second), core
}

// runCmd executes cmd and returns every message produced within a short
// window. Timer-driven commands such as cursor blinks are left behind.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(100 * time.Millisecond):
		return nil
	}

	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func press(m model, msg tea.KeyMsg) (model, []tea.Msg) {
	next, cmd := m.Update(msg)
	return next.(model), runCmd(cmd)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTypingBroadcastIsThrottled(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend)

	m, _ = press(m, runes("h"))
	m, _ = press(m, runes("i"))

	require.Eventually(t, func() bool { return backend.typingCount() == 1 }, waitFor, tick)
	require.Never(t, func() bool { return backend.typingCount() > 1 }, 50*time.Millisecond, tick)
	require.Equal(t, "hi", m.input.Value())
}

func TestWhitespaceDoesNotBroadcastTyping(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend)

	m, _ = press(m, runes(" "))

	require.Never(t, func() bool { return backend.typingCount() > 0 }, 50*time.Millisecond, tick)
	require.Equal(t, " ", m.input.Value())
}

func TestEnterSendsDraftAndClearsInput(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := newTestModel(t, backend)

	m, _ = press(m, runes("hello"))
	m, msgs := press(m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, "", m.input.Value())
	require.Contains(t, msgs, tea.Msg(actionDoneMsg{op: "send"}))
	require.Equal(t, []chat.NewMessage{{RoomID: 10, SenderID: 1, Body: "hello"}}, backend.sent())
}

func TestKeystrokeBeforeSendRunsKeepsBothTexts(t *testing.T) {
	backend := &fakeBackend{}
	m, core := newTestModel(t, backend)

	m, _ = press(m, runes("hello"))
	next, send := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	// The user keeps typing before the send command gets to run.
	m, _ = press(m, runes("x"))
	msgs := runCmd(send)

	require.Contains(t, msgs, tea.Msg(actionDoneMsg{op: "send"}))
	require.Equal(t, []chat.NewMessage{{RoomID: 10, SenderID: 1, Body: "hello"}}, backend.sent())
	require.Equal(t, "x", m.input.Value())
	require.Equal(t, "x", core.outbound.Draft().Text())
}

func TestFailedSendRestoresInput(t *testing.T) {
	backend := &fakeBackend{appendErr: errBoom}
	m, _ := newTestModel(t, backend)

	m, _ = press(m, runes("hello"))
	m, msgs := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, msgs, 1)

	next, _ := m.Update(msgs[0])
	m = next.(model)

	require.Equal(t, "hello", m.input.Value())
	require.Contains(t, m.status, "send")
	require.Contains(t, m.View(), "boom")
}

func TestTabCyclesRooms(t *testing.T) {
	m, core := newTestModel(t, &fakeBackend{})

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	_, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})

	require.Equal(t, []int64{20, 10}, core.selected)
}
