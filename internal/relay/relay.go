package relay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/merritt/lanchat/internal/logging"
	"github.com/merritt/lanchat/internal/wire"
)

// Sender is the relay's only channel back to a connected client. Send must
// be fire-and-forget: it never blocks and silently drops when the peer's
// stream is no longer open. The server session satisfies this with a
// buffered outbound queue.
type Sender interface {
	Send(v any)
}

// client is the per-session conversational state the relay owns.
type client struct {
	sender   Sender
	username string
	ip       string
	roomID   string // empty when not in a room
}

// PeerInfo is a read-only snapshot of one connected session, served by the
// HTTP /peers endpoint.
type PeerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id,omitempty"`
	IP       string `json:"ip"`
}

// Relay owns the session registry and the room registry and routes control
// messages between sessions. The two registries are independent mappings
// keyed by opaque ids; consistency between a client's roomID and the room's
// member set is maintained under a single mutex, so every read-then-write
// sequence (check room exists, then add member) is atomic with respect to
// concurrent joins, leaves, and disconnects.
type Relay struct {
	mu      sync.Mutex
	clients map[string]*client
	rooms   map[string]map[string]struct{}
}

// New creates an empty relay.
func New() *Relay {
	return &Relay{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Register adds a newly connected session and returns its id. The session
// immediately receives a connected message carrying that id.
func (r *Relay) Register(sender Sender) string {
	r.mu.Lock()
	id := newSessionID()
	for _, taken := r.clients[id]; taken; _, taken = r.clients[id] {
		id = newSessionID()
	}
	r.clients[id] = &client{
		sender:   sender,
		username: "Anonymous",
		ip:       "0.0.0.0",
	}
	r.mu.Unlock()

	logging.Info("Peer connected", zap.String("session_id", id))
	sender.Send(wire.NewConnected(id))
	return id
}

// Handle parses one inbound text payload from the given session and
// dispatches it. Malformed JSON and unknown types are answered with an
// error message to the same session; the connection stays open.
func (r *Relay) Handle(id string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		// Already cleaned up; a frame raced the disconnect.
		return
	}

	msg, err := wire.ParseInbound(raw)
	if err != nil {
		c.sender.Send(wire.NewError("Invalid JSON"))
		return
	}

	switch msg.Type {
	case wire.TypeSetUsername:
		r.setUsername(c, msg.Payload)
	case wire.TypeCreateRoom:
		r.createRoom(id, c)
	case wire.TypeJoinRoom:
		r.joinRoom(id, c, msg.Payload.RoomID)
	case wire.TypeMessage:
		r.chatMessage(c, msg.Payload.Text)
	default:
		c.sender.Send(wire.NewError("Unknown type"))
	}
}

// setUsername updates the session's display name and ip, falling back to
// the defaults when the payload omits them, and echoes the result back.
func (r *Relay) setUsername(c *client, p wire.Payload) {
	c.username = p.Username
	if c.username == "" {
		c.username = "Anonymous"
	}
	c.ip = p.IP
	if c.ip == "" {
		c.ip = "0.0.0.0"
	}
	c.sender.Send(wire.NewUsernameSet(c.username, c.ip))
}

// createRoom allocates a room with the creator as sole member. Creating a
// room while in another one moves the creator out of it first, so no
// member set ever silently loses its back-reference.
func (r *Relay) createRoom(id string, c *client) {
	r.leaveCurrentRoom(id, c)

	roomID := newRoomID()
	for _, taken := r.rooms[roomID]; taken; _, taken = r.rooms[roomID] {
		roomID = newRoomID()
	}
	r.rooms[roomID] = map[string]struct{}{id: {}}
	c.roomID = roomID

	logging.Info("Room created",
		zap.String("room_id", roomID),
		zap.String("session_id", id),
	)
	c.sender.Send(wire.NewRoomCreated(roomID))
}

// joinRoom moves the session into an existing room, leaving its prior room
// (with cascading empty-room deletion) on the way.
func (r *Relay) joinRoom(id string, c *client, roomID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		c.sender.Send(wire.NewError("Room not found"))
		return
	}

	if c.roomID == roomID {
		// Rejoining the current room; membership is already right, and
		// leaving first would cascade-delete a sole-member room out from
		// under the rejoin.
		c.sender.Send(wire.NewRoomJoined(roomID))
		return
	}

	r.leaveCurrentRoom(id, c)

	members[id] = struct{}{}
	c.roomID = roomID

	c.sender.Send(wire.NewRoomJoined(roomID))
	r.broadcast(roomID, wire.NewUserJoined(c.username), id)
}

// chatMessage fans a chat line out to the whole room, sender included. The
// timestamp is assigned here, not taken from the client, so a skewed or
// hostile clock cannot spoof message ordering.
func (r *Relay) chatMessage(c *client, text string) {
	if c.roomID == "" {
		c.sender.Send(wire.NewError("Not in a room"))
		return
	}
	r.broadcast(c.roomID, wire.NewChatMessage(c.username, text, time.Now().UnixMilli()), "")
}

// Disconnect removes a session from its room and from the registry, and
// tells the remaining room members. Safe to call for an unknown id, so the
// close and error paths of a session can both funnel here.
func (r *Relay) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return
	}

	username := c.username
	roomID := c.roomID
	r.leaveCurrentRoom(id, c)
	delete(r.clients, id)

	if roomID != "" {
		r.broadcast(roomID, wire.NewUserLeft(username), "")
	}
	logging.Info("Peer disconnected", zap.String("session_id", id))
}

// leaveCurrentRoom detaches the session from its room, deleting the room
// when it empties. Caller holds r.mu.
func (r *Relay) leaveCurrentRoom(id string, c *client) {
	if c.roomID == "" {
		return
	}
	if members, ok := r.rooms[c.roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			logging.Debug("Room deleted", zap.String("room_id", c.roomID))
			delete(r.rooms, c.roomID)
		}
	}
	c.roomID = ""
}

// broadcast sends a message to every member of a room except excludeID.
// A vanished room is a silent no-op: it means a concurrent cleanup already
// resolved the race, not a caller fault. Caller holds r.mu; Sender.Send is
// non-blocking, so fan-out under the lock cannot stall on a slow peer.
func (r *Relay) broadcast(roomID string, v any, excludeID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	for memberID := range members {
		if memberID == excludeID {
			continue
		}
		if member, ok := r.clients[memberID]; ok {
			member.sender.Send(v)
		}
	}
}

// Peers returns a snapshot of all connected sessions.
func (r *Relay) Peers() []PeerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]PeerInfo, 0, len(r.clients))
	for id, c := range r.clients {
		peers = append(peers, PeerInfo{
			ID:       id,
			Username: c.username,
			RoomID:   c.roomID,
			IP:       c.ip,
		})
	}
	return peers
}
