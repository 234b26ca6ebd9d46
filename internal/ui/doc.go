// Package ui implements the terminal chat interface for the lanchat
// client using Bubble Tea.
//
// The chat screen is a scrollback viewport above a single input line.
// Plain input becomes a chat message; slash commands map onto the wire
// protocol: /name sets the display name, /create opens a room, /join
// enters one by id, /quit leaves. Server events stream into the model
// through a receive command that re-arms itself after every event.
package ui
