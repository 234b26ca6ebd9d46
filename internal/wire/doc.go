// Package wire defines the JSON control messages exchanged over lanchat
// WebSocket text frames.
//
// Inbound (client to server) messages use a tagged envelope:
//
//	{"type": "join_room", "payload": {"room_id": "R_x81kq2"}}
//
// Known types are set_username, create_room, join_room, and message. The
// relay validates the tag against this closed set and answers anything else
// with an error message.
//
// Outbound (server to client) messages marshal flat, one struct per type:
// connected, username_set, room_created, room_joined, user_joined,
// user_left, message, and error. Field names and shapes are a client
// contract and must not change.
package wire
