package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/merritt/lanchat/internal/config"
	"github.com/merritt/lanchat/internal/protocol"
)

// startServer brings up a relay server on an ephemeral port and tears it
// down with the test.
func startServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Discovery = false

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go func() { _ = s.Serve() }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// dialWS connects an independent WebSocket implementation (gorilla) to the
// hand-rolled server. A successful dial means gorilla accepted our
// Sec-WebSocket-Accept derivation and 101 response.
func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	url := "ws://" + s.Addr().String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("gorilla dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return msg
}

func sendMessage(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("writing message: %v", err)
	}
}

func TestWebSocketChatFlow(t *testing.T) {
	s := startServer(t)

	alice := dialWS(t, s)
	connected := readMessage(t, alice)
	if connected["type"] != "connected" {
		t.Fatalf("first message type = %v, want connected", connected["type"])
	}
	if id, _ := connected["userId"].(string); !strings.HasPrefix(id, "P_") {
		t.Fatalf("userId = %v, want P_ prefix", connected["userId"])
	}

	sendMessage(t, alice, `{"type":"set_username","payload":{"username":"alice"}}`)
	if set := readMessage(t, alice); set["username"] != "alice" {
		t.Fatalf("username_set = %v", set)
	}

	sendMessage(t, alice, `{"type":"create_room"}`)
	created := readMessage(t, alice)
	roomID, _ := created["room_id"].(string)
	if created["type"] != "room_created" || !strings.HasPrefix(roomID, "R_") {
		t.Fatalf("room_created = %v", created)
	}

	bob := dialWS(t, s)
	readMessage(t, bob) // connected
	sendMessage(t, bob, fmt.Sprintf(`{"type":"join_room","payload":{"room_id":"%s"}}`, roomID))
	if joined := readMessage(t, bob); joined["type"] != "room_joined" {
		t.Fatalf("room_joined = %v", joined)
	}
	if userJoined := readMessage(t, alice); userJoined["type"] != "user_joined" {
		t.Fatalf("alice expected user_joined, got %v", userJoined)
	}

	before := time.Now().UnixMilli()
	sendMessage(t, alice, `{"type":"message","payload":{"text":"hello lan"}}`)

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		msg := readMessage(t, conn)
		if msg["type"] != "message" || msg["text"] != "hello lan" || msg["username"] != "alice" {
			t.Errorf("%s received %v", name, msg)
		}
		ts, ok := msg["timestamp"].(float64)
		if !ok || int64(ts) < before {
			t.Errorf("%s received bad timestamp %v", name, msg["timestamp"])
		}
	}
}

func TestDisconnectBroadcastsUserLeft(t *testing.T) {
	s := startServer(t)

	alice := dialWS(t, s)
	readMessage(t, alice) // connected
	sendMessage(t, alice, `{"type":"create_room"}`)
	roomID, _ := readMessage(t, alice)["room_id"].(string)

	bob := dialWS(t, s)
	readMessage(t, bob) // connected
	sendMessage(t, bob, `{"type":"set_username","payload":{"username":"bob"}}`)
	readMessage(t, bob) // username_set
	sendMessage(t, bob, fmt.Sprintf(`{"type":"join_room","payload":{"room_id":"%s"}}`, roomID))
	readMessage(t, bob)   // room_joined
	readMessage(t, alice) // user_joined

	_ = bob.Close()

	left := readMessage(t, alice)
	if left["type"] != "user_left" || left["username"] != "bob" {
		t.Fatalf("expected user_left for bob, got %v", left)
	}
}

func TestJoinErrorsStayOnOpenConnection(t *testing.T) {
	s := startServer(t)

	conn := dialWS(t, s)
	readMessage(t, conn) // connected

	sendMessage(t, conn, `{"type":"join_room","payload":{"room_id":"R_nosuch"}}`)
	if errMsg := readMessage(t, conn); errMsg["message"] != "Room not found" {
		t.Fatalf("expected Room not found, got %v", errMsg)
	}

	// The connection survived the error
	sendMessage(t, conn, `{"type":"create_room"}`)
	if created := readMessage(t, conn); created["type"] != "room_created" {
		t.Fatalf("expected room_created after error, got %v", created)
	}
}

// rawUpgrade performs the opening handshake by hand and returns the still
// open connection positioned just past the 101 response.
func rawUpgrade(t *testing.T, s *Server) (net.Conn, *bufio.Reader) {
	t.Helper()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	clientKey := "dGhlIHNhbXBsZSBub25jZQ=="
	request := "GET / HTTP/1.1\r\n" +
		"Host: lanchat.local\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + clientKey + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"
	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("writing upgrade request: %v", err)
	}

	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading status line: %v", err)
	}
	if !strings.Contains(status, "101") {
		t.Fatalf("status line = %q, want 101", status)
	}

	sawAccept := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading headers: %v", err)
		}
		if strings.HasPrefix(line, "Sec-WebSocket-Accept:") {
			got := strings.TrimSpace(strings.TrimPrefix(line, "Sec-WebSocket-Accept:"))
			if got != protocol.AcceptKey(clientKey) {
				t.Fatalf("accept token = %q, want %q", got, protocol.AcceptKey(clientKey))
			}
			sawAccept = true
		}
		if line == "\r\n" {
			break
		}
	}
	if !sawAccept {
		t.Fatal("101 response missing Sec-WebSocket-Accept")
	}
	return conn, reader
}

func readWireMessage(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	frame, err := protocol.ReadFrame(r)
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(frame.Payload, &msg); err != nil {
		t.Fatalf("decoding frame payload %q: %v", frame.Payload, err)
	}
	return msg
}

func TestUnmaskedClientFrameRejectedButConnectionSurvives(t *testing.T) {
	s := startServer(t)
	conn, reader := rawUpgrade(t, s)

	if msg := readWireMessage(t, reader); msg["type"] != "connected" {
		t.Fatalf("expected connected, got %v", msg)
	}

	// An unmasked client frame violates the protocol
	if _, err := conn.Write(protocol.EncodeText(`{"type":"create_room"}`)); err != nil {
		t.Fatalf("writing unmasked frame: %v", err)
	}
	if msg := readWireMessage(t, reader); msg["type"] != "error" {
		t.Fatalf("expected error for unmasked frame, got %v", msg)
	}

	// A properly masked frame on the same connection still works
	masked, err := protocol.EncodeMaskedText(`{"type":"create_room"}`)
	if err != nil {
		t.Fatalf("EncodeMaskedText() error = %v", err)
	}
	if _, err := conn.Write(masked); err != nil {
		t.Fatalf("writing masked frame: %v", err)
	}
	if msg := readWireMessage(t, reader); msg["type"] != "room_created" {
		t.Fatalf("expected room_created, got %v", msg)
	}
}

func TestCloseFrameIsAcknowledged(t *testing.T) {
	s := startServer(t)
	conn, reader := rawUpgrade(t, s)

	readWireMessage(t, reader) // connected

	if _, err := conn.Write(protocol.EncodeClose()); err != nil {
		t.Fatalf("writing close frame: %v", err)
	}
	frame, err := protocol.ReadFrame(reader)
	if err != nil {
		t.Fatalf("reading close ack: %v", err)
	}
	if frame.Opcode != protocol.OpcodeClose {
		t.Fatalf("ack opcode = %s, want close", frame.OpcodeString())
	}
}

func TestPlainHTTPEndpoints(t *testing.T) {
	s := startServer(t)
	base := "http://" + s.Addr().String()

	t.Run("info", func(t *testing.T) {
		var body struct {
			Data struct {
				ServerURL     string `json:"server_url"`
				WebSocketURL  string `json:"web_socket_url"`
				ChatClientURL string `json:"chat_client_url"`
			} `json:"data"`
		}
		getJSON(t, base+"/info", &body)
		if !strings.HasPrefix(body.Data.WebSocketURL, "ws://") {
			t.Errorf("web_socket_url = %q", body.Data.WebSocketURL)
		}

		// The advertised client URL must resolve to a path this server
		// actually serves.
		u, err := url.Parse(body.Data.ChatClientURL)
		if err != nil {
			t.Fatalf("chat_client_url %q: %v", body.Data.ChatClientURL, err)
		}
		resp, err := http.Get(base + u.Path)
		if err != nil {
			t.Fatalf("GET %s: %v", base+u.Path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", u.Path, resp.StatusCode)
		}
	})

	t.Run("me", func(t *testing.T) {
		var body struct {
			Data struct {
				IP string `json:"ip"`
			} `json:"data"`
		}
		getJSON(t, base+"/me", &body)
		if net.ParseIP(body.Data.IP) == nil {
			t.Errorf("ip = %q, not an IP", body.Data.IP)
		}
	})

	t.Run("peers lists connected sessions", func(t *testing.T) {
		ws := dialWS(t, s)
		readMessage(t, ws) // connected

		var body struct {
			Data struct {
				ConnectedPeers      []map[string]any `json:"connected_peers"`
				ConnectedPeersCount int              `json:"connected_peers_count"`
			} `json:"data"`
		}
		getJSON(t, base+"/peers", &body)
		if body.Data.ConnectedPeersCount != 1 || len(body.Data.ConnectedPeers) != 1 {
			t.Fatalf("connected peers = %+v", body.Data)
		}
		if body.Data.ConnectedPeers[0]["username"] != "Anonymous" {
			t.Errorf("default username = %v", body.Data.ConnectedPeers[0]["username"])
		}
	})

	t.Run("unknown path is 404", func(t *testing.T) {
		resp, err := http.Get(base + "/nope")
		if err != nil {
			t.Fatalf("GET /nope: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
}
