package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
)

// roomCore is the part of chat.Controller the UI drives.
type roomCore interface {
	Snapshot() chat.Snapshot
	Rooms() []chat.Room
	ActiveRoom() (int64, bool)
	SelectRoom(ctx context.Context, roomID int64) error
	Outbound() *chat.Outbound
	Updates() <-chan struct{}
}

type keyMap struct {
	Send     key.Binding
	NextRoom key.Binding
	PrevRoom key.Binding
	Quit     key.Binding
}

var defaultKeys = keyMap{
	Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	NextRoom: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next room")),
	PrevRoom: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous room")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

type (
	// coreChangedMsg is sent when the controller reports a change.
	coreChangedMsg struct{}
	// actionDoneMsg reports the outcome of a background action.
	actionDoneMsg struct {
		op  string
		err error
	}
)

type model struct {
	ctx    context.Context
	core   roomCore
	self   chat.Identity
	keys   keyMap
	typing *rate.Sometimes

	input    textinput.Model
	log      viewport.Model
	snap     chat.Snapshot
	status   string
	width    int
	height   int
	sendTime time.Duration
}

func newModel(ctx context.Context, core roomCore, self chat.Identity, typingEvery, sendTimeout time.Duration) model {
	input := textinput.New()
	input.Placeholder = "Write a message…"
	input.CharLimit = 4096
	input.Focus()

	return model{
		ctx:      ctx,
		core:     core,
		self:     self,
		keys:     defaultKeys,
		typing:   &rate.Sometimes{Interval: typingEvery},
		input:    input,
		log:      viewport.New(80, 20),
		snap:     core.Snapshot(),
		sendTime: sendTimeout,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForUpdates(m.core.Updates()))
}

// listenForUpdates blocks until the controller signals a change.
func listenForUpdates(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return coreChangedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.log.Width = msg.Width
		m.log.Height = max(msg.Height-5, 1)
		m.refreshLog()

	case coreChangedMsg:
		m.snap = m.core.Snapshot()
		m.refreshLog()
		cmds = append(cmds, listenForUpdates(m.core.Updates()))

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.op + ": " + msg.err.Error()
			// A failed send puts the text back into the draft.
			if msg.op == "send" && m.input.Value() == "" {
				m.input.SetValue(m.core.Outbound().Draft().Text())
				m.input.CursorEnd()
			}
		} else {
			m.status = ""
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextRoom):
			return m, m.cycleRoom(1)
		case key.Matches(msg, m.keys.PrevRoom):
			return m, m.cycleRoom(-1)
		case key.Matches(msg, m.keys.Send):
			return m, m.send()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.core.Outbound().Draft().Set(m.input.Value())
		if strings.TrimSpace(m.input.Value()) != "" {
			m.typing.Do(func() { cmds = append(cmds, m.broadcastTyping()) })
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.log, cmd = m.log.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) refreshLog() {
	m.log.SetContent(renderLog(m.snap, m.self.UserID, m.log.Width))
	m.log.GotoBottom()
}

// send captures the input and hands it to the core. The input and draft
// clear immediately; the message itself shows up once the insert stream
// delivers it.
func (m *model) send() tea.Cmd {
	out := m.core.Outbound()
	text := m.input.Value()
	m.input.Reset()
	out.Draft().Set("")

	ctx, timeout := m.ctx, m.sendTime
	return func() tea.Msg {
		sendCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return actionDoneMsg{op: "send", err: out.SendMessage(sendCtx, text)}
	}
}

// broadcastTyping is best effort; failures are logged by the core.
func (m model) broadcastTyping() tea.Cmd {
	out, ctx := m.core.Outbound(), m.ctx
	return func() tea.Msg {
		_ = out.BroadcastTyping(ctx)
		return nil
	}
}

func (m model) cycleRoom(step int) tea.Cmd {
	rooms := m.core.Rooms()
	if len(rooms) == 0 {
		return nil
	}
	next := 0
	if active, ok := m.core.ActiveRoom(); ok {
		for i, r := range rooms {
			if r.ID == active {
				next = (i + step + len(rooms)) % len(rooms)
				break
			}
		}
	}
	core, ctx, roomID := m.core, m.ctx, rooms[next].ID
	return func() tea.Msg {
		return actionDoneMsg{op: "select room", err: core.SelectRoom(ctx, roomID)}
	}
}

func (m model) View() string {
	active, hasActive := m.core.ActiveRoom()
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		roomTabs(m.core.Rooms(), active, hasActive), "  ", liveBadge(m.snap.Live))

	footer := typingStyle.Render(typingLine(m.snap.Typing))
	if m.status != "" {
		footer = errorStyle.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.log.View(),
		footer,
		m.input.View(),
	)
}
