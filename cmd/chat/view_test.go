package main

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-rooms/internal/chat"
)

func TestTypingLine(t *testing.T) {
	require.Equal(t, "", typingLine(nil))
	require.Equal(t, "alice is typing…", typingLine([]chat.TypingUser{{UserID: 1, DisplayName: "alice"}}))
	require.Equal(t, "alice, bob are typing…", typingLine([]chat.TypingUser{
		{UserID: 1, DisplayName: "alice"},
		{UserID: 2, DisplayName: "bob"},
	}))
}

func TestRenderMessageAlignment(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 0, 0, time.Local)

	own := renderMessage(chat.Message{SenderID: 1, SenderName: "me", Body: "mine", CreatedAt: at}, 1, 40)
	require.Equal(t, 40, lipgloss.Width(own))
	require.True(t, strings.HasPrefix(own, " "), "own messages are right-aligned: %q", own)

	other := renderMessage(chat.Message{SenderID: 2, SenderName: "bob", Body: "theirs", CreatedAt: at}, 1, 40)
	require.False(t, strings.HasPrefix(other, " "))
	require.Contains(t, other, "theirs")
	require.Contains(t, other, "bob")
}

func TestRenderLogStates(t *testing.T) {
	require.Contains(t, renderLog(chat.Snapshot{}, 1, 40), "select a room")
	require.Contains(t, renderLog(chat.Snapshot{Active: true, Status: chat.LogLoading}, 1, 40), "loading")
	require.Contains(t, renderLog(chat.Snapshot{Active: true, Status: chat.LogFailed, Err: errBoom}, 1, 40), "boom")
	require.Contains(t, renderLog(chat.Snapshot{Active: true, Status: chat.LogReady}, 1, 40), "no messages yet")
}
