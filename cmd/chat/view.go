package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
)

var (
	activeRoomStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true)
	inactiveRoomStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ownMessageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	senderStyle       = lipgloss.NewStyle().Bold(true)
	timeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	typingStyle       = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	degradedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// typingLine renders "X is typing…" or "X, Y are typing…".
func typingLine(users []chat.TypingUser) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0].DisplayName + " is typing…"
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.DisplayName
	}
	return strings.Join(names, ", ") + " are typing…"
}

// roomTabs renders the room directory with the active room highlighted.
func roomTabs(rooms []chat.Room, active int64, hasActive bool) string {
	if len(rooms) == 0 {
		return inactiveRoomStyle.Render("no rooms")
	}
	tabs := make([]string, len(rooms))
	for i, r := range rooms {
		label := "#" + r.Name
		if hasActive && r.ID == active {
			tabs[i] = activeRoomStyle.Render(label)
		} else {
			tabs[i] = inactiveRoomStyle.Render(label)
		}
	}
	return strings.Join(tabs, "  ")
}

// renderMessage right-aligns the user's own messages and left-aligns the
// rest within width.
func renderMessage(msg chat.Message, self int64, width int) string {
	stamp := timeStyle.Render(msg.CreatedAt.Local().Format("15:04"))
	if msg.SenderID == self {
		line := fmt.Sprintf("%s %s", ownMessageStyle.Render(msg.Body), stamp)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, line)
	}
	return fmt.Sprintf("%s %s: %s", stamp, senderStyle.Render(msg.SenderName), msg.Body)
}

// renderLog renders the message area for a snapshot.
func renderLog(snap chat.Snapshot, self int64, width int) string {
	if !snap.Active {
		return inactiveRoomStyle.Render("select a room with tab")
	}
	switch snap.Status {
	case chat.LogLoading:
		return inactiveRoomStyle.Render("loading…")
	case chat.LogFailed:
		msg := "history unavailable"
		if snap.Err != nil {
			msg += ": " + snap.Err.Error()
		}
		return errorStyle.Render(msg)
	}
	if len(snap.Messages) == 0 {
		return inactiveRoomStyle.Render("no messages yet")
	}
	lines := make([]string, len(snap.Messages))
	for i, m := range snap.Messages {
		lines[i] = renderMessage(m, self, width)
	}
	return strings.Join(lines, "\n")
}

func liveBadge(state chat.LiveState) string {
	switch state {
	case chat.LiveConnected:
		return ""
	case chat.LiveDegraded:
		return degradedStyle.Render("● live updates unavailable")
	default:
		return inactiveRoomStyle.Render("○ offline")
	}
}
