package ui

import (
	"strings"
	"testing"

	"github.com/merritt/lanchat/internal/client"
)

func TestApplyEventTracksSessionState(t *testing.T) {
	m := ChatModel{}

	m.applyEvent(&client.Event{Type: "username_set", Username: "alice"})
	if m.username != "alice" {
		t.Errorf("username = %q, want alice", m.username)
	}

	m.applyEvent(&client.Event{Type: "room_created", RoomID: "R_abc123"})
	if m.roomID != "R_abc123" {
		t.Errorf("roomID = %q, want R_abc123", m.roomID)
	}

	m.applyEvent(&client.Event{Type: "room_joined", RoomID: "R_other1"})
	if m.roomID != "R_other1" {
		t.Errorf("roomID = %q, want R_other1", m.roomID)
	}
}

func TestApplyEventRendersChatLines(t *testing.T) {
	tests := []struct {
		name     string
		event    *client.Event
		contains string
	}{
		{
			name:     "chat message shows username and text",
			event:    &client.Event{Type: "message", Username: "bob", Text: "hi there", Timestamp: 1700000000000},
			contains: "hi there",
		},
		{
			name:     "join notice",
			event:    &client.Event{Type: "user_joined", Username: "carol"},
			contains: "carol joined",
		},
		{
			name:     "leave notice",
			event:    &client.Event{Type: "user_left", Username: "carol"},
			contains: "carol left",
		},
		{
			name:     "server error",
			event:    &client.Event{Type: "error", Message: "Room not found"},
			contains: "Room not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ChatModel{}
			m.applyEvent(tt.event)
			if len(m.lines) != 1 {
				t.Fatalf("line count = %d, want 1", len(m.lines))
			}
			if !strings.Contains(m.lines[0], tt.contains) {
				t.Errorf("line %q does not contain %q", m.lines[0], tt.contains)
			}
		})
	}
}
