package wire

import (
	"encoding/json"
	"fmt"
)

// Inbound message types a client may send.
const (
	TypeSetUsername = "set_username"
	TypeCreateRoom  = "create_room"
	TypeJoinRoom    = "join_room"
	TypeMessage     = "message"
)

// Inbound is the envelope for client-to-server control messages:
// {"type": "...", "payload": {...}}. Payload fields not used by a given
// type are ignored.
type Inbound struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the union of all inbound payload fields.
type Payload struct {
	Username string `json:"username,omitempty"`
	IP       string `json:"ip,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ParseInbound decodes a client control message. Malformed JSON is the
// caller's cue to answer with an error message, not to drop the connection.
func ParseInbound(raw []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid message body: %w", err)
	}
	return &msg, nil
}

// Server-to-client messages. Each constructor returns a struct whose JSON
// shape is part of the client contract; the structs marshal flat, with the
// discriminating "type" field first.

// Connected is sent once, immediately after registration.
type Connected struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// UsernameSet echoes a set_username request back to its sender.
type UsernameSet struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IP       string `json:"ip"`
}

// RoomCreated is sent to the creator of a new room.
type RoomCreated struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// RoomJoined is sent to a client that joined an existing room.
type RoomJoined struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// UserJoined is broadcast to a room when a new member arrives.
type UserJoined struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// UserLeft is broadcast to a room when a member leaves or disconnects.
type UserLeft struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// ChatMessage is broadcast to every member of a room, sender included.
// Timestamp is relay-assigned Unix milliseconds; the client's clock is
// never trusted.
type ChatMessage struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Error reports a rejected operation to the offending session only.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewConnected(userID string) Connected {
	return Connected{Type: "connected", UserID: userID}
}

func NewUsernameSet(username, ip string) UsernameSet {
	return UsernameSet{Type: "username_set", Username: username, IP: ip}
}

func NewRoomCreated(roomID string) RoomCreated {
	return RoomCreated{Type: "room_created", RoomID: roomID}
}

func NewRoomJoined(roomID string) RoomJoined {
	return RoomJoined{Type: "room_joined", RoomID: roomID}
}

func NewUserJoined(username string) UserJoined {
	return UserJoined{Type: "user_joined", Username: username}
}

func NewUserLeft(username string) UserLeft {
	return UserLeft{Type: "user_left", Username: username}
}

func NewChatMessage(username, text string, timestamp int64) ChatMessage {
	return ChatMessage{Type: "message", Username: username, Text: text, Timestamp: timestamp}
}

func NewError(message string) Error {
	return Error{Type: "error", Message: message}
}
