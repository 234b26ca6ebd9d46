package client

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/merritt/lanchat/internal/protocol"
)

// ErrServerClosed is returned by Receive after the server sends a close
// frame or ends the stream.
var ErrServerClosed = errors.New("server closed the connection")

const dialTimeout = 5 * time.Second

// Event is the union of every server-to-client message, decoded from one
// text frame. Type discriminates which of the remaining fields are set.
type Event struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	IP        string `json:"ip,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Conn is a client-side lanchat connection. It performs the opening
// handshake itself and speaks masked single-frame text messages, the
// mirror image of the server's session.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to a lanchat server at host:port and completes the
// WebSocket opening handshake, verifying the server's accept token
// against our key.
func Dial(addr string) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	key, err := newSecKey()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	request := "GET / HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"
	if _, err := conn.Write([]byte(request)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send upgrade request: %w", err)
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read upgrade response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		_ = conn.Close()
		return nil, fmt.Errorf("server refused upgrade: %s", resp.Status)
	}
	if got := resp.Header.Get("Sec-WebSocket-Accept"); got != protocol.AcceptKey(key) {
		_ = conn.Close()
		return nil, fmt.Errorf("server accept token %q does not match key", got)
	}

	return &Conn{conn: conn, r: reader}, nil
}

// newSecKey returns a fresh base64-encoded 16-byte Sec-WebSocket-Key.
func newSecKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate websocket key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Send marshals v and writes it as a masked text frame, as the protocol
// requires of everything a client sends.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	frame, err := protocol.EncodeMaskedText(string(data))
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// SendCommand sends the standard inbound envelope {"type": ..., "payload": {...}}.
func (c *Conn) SendCommand(msgType string, payload any) error {
	return c.Send(map[string]any{"type": msgType, "payload": payload})
}

// Receive blocks for the next server event. Non-text frames are skipped;
// a close frame or transport error surfaces as ErrServerClosed.
func (c *Conn) Receive() (*Event, error) {
	for {
		frame, err := protocol.ReadFrame(c.r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServerClosed, err)
		}
		switch frame.Opcode {
		case protocol.OpcodeText:
			var ev Event
			if err := json.Unmarshal(frame.Payload, &ev); err != nil {
				return nil, fmt.Errorf("failed to decode server event: %w", err)
			}
			return &ev, nil
		case protocol.OpcodeClose:
			return nil, ErrServerClosed
		default:
			// ping/pong/binary: not part of the lanchat contract
		}
	}
}

// Close sends a close frame on a best-effort basis and releases the
// connection.
func (c *Conn) Close() error {
	_, _ = c.conn.Write(protocol.EncodeClose())
	return c.conn.Close()
}
