package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/merritt/lanchat/internal/discovery"
	"github.com/merritt/lanchat/internal/logging"
	"github.com/merritt/lanchat/internal/protocol"
)

// ReadHTTPRequest reads an HTTP request from a raw connection. This runs
// before any upgrade, so the request arrives on the bare byte stream. The
// returned reader must be used for all subsequent reads: a pipelined frame
// sent right behind the upgrade request may already sit in its buffer.
func ReadHTTPRequest(conn net.Conn) (*http.Request, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read HTTP request: %w", err)
	}
	return req, reader, nil
}

// IsWebSocketUpgrade reports whether the request asks for a WebSocket
// upgrade. Requests that merely mention "upgrade" without the websocket
// token go down the plain HTTP path.
func IsWebSocketUpgrade(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

// ValidateWebSocketUpgradeRequest checks if the incoming HTTP request is a
// valid WebSocket upgrade
func ValidateWebSocketUpgradeRequest(req *http.Request) error {
	// Check method
	if req.Method != "GET" {
		return fmt.Errorf("invalid method: %s (expected GET)", req.Method)
	}

	// Check Upgrade header
	upgrade := strings.ToLower(req.Header.Get("Upgrade"))
	if upgrade != "websocket" {
		return fmt.Errorf("invalid Upgrade header: %s (expected websocket)", upgrade)
	}

	// Check Connection header
	connection := strings.ToLower(req.Header.Get("Connection"))
	if !strings.Contains(connection, "upgrade") {
		return fmt.Errorf("invalid Connection header: %s (expected upgrade)", connection)
	}

	// Check Sec-WebSocket-Version
	version := req.Header.Get("Sec-WebSocket-Version")
	if version != "13" {
		return fmt.Errorf("invalid Sec-WebSocket-Version: %s (expected 13)", version)
	}

	if req.Header.Get("Sec-WebSocket-Key") == "" {
		return fmt.Errorf("missing Sec-WebSocket-Key header")
	}

	return nil
}

// WriteUpgradeResponse answers a validated upgrade request with the 101
// response, deriving Sec-WebSocket-Accept from the client key. After this
// write the connection speaks frames, not HTTP.
func WriteUpgradeResponse(conn net.Conn, clientKey string) error {
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + protocol.AcceptKey(clientKey) + "\r\n" +
		"\r\n"

	if _, err := conn.Write([]byte(response)); err != nil {
		return fmt.Errorf("failed to write 101 response: %w", err)
	}
	return nil
}

// Plain HTTP responses are written by hand: the request was already read
// off the raw conn, so net/http's server machinery never owns it.

func writeResponse(conn net.Conn, status int, contentType string, body []byte) {
	statusText := http.StatusText(status)
	header := fmt.Sprintf("HTTP/1.1 %d %s\r\n"+
		"Access-Control-Allow-Origin: *\r\n"+
		"Access-Control-Allow-Methods: GET, OPTIONS\r\n"+
		"Access-Control-Allow-Headers: Content-Type\r\n"+
		"Content-Type: %s\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n",
		status, statusText, contentType, len(body))
	if _, err := conn.Write(append([]byte(header), body...)); err != nil {
		logging.Debug("Failed to write HTTP response", zap.Error(err))
	}
}

func writeJSON(conn net.Conn, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeResponse(conn, http.StatusInternalServerError, "application/json",
			[]byte(`{"error":"internal error"}`))
		return
	}
	writeResponse(conn, status, "application/json", body)
}

// infoResponse is the body of GET /info.
type infoResponse struct {
	ServerURL     string `json:"server_url"`
	WebSocketURL  string `json:"web_socket_url"`
	ChatClientURL string `json:"chat_client_url"`
}

// peersResponse is the body of GET /peers: relay sessions plus other
// lanchat servers found over mDNS.
type peersResponse struct {
	NetworkPeers        []discovery.Peer `json:"network_peers"`
	ConnectedPeers      []peerEntry      `json:"connected_peers"`
	PeersCount          int              `json:"peers_count"`
	ConnectedPeersCount int              `json:"connected_peers_count"`
}

type peerEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id,omitempty"`
	Type     string `json:"type"`
	IP       string `json:"ip"`
}

// handleHTTP serves the plain (non-upgrade) endpoints.
func (s *Server) handleHTTP(conn net.Conn, req *http.Request, remoteAddr string) {
	logging.LogHTTPRequest(remoteAddr, req.Method, req.URL.Path)

	if req.Method == "OPTIONS" {
		writeResponse(conn, http.StatusOK, "text/plain", nil)
		return
	}
	if req.Method != "GET" {
		writeResponse(conn, http.StatusNotFound, "text/plain", []byte("not found"))
		return
	}

	switch req.URL.Path {
	case "/":
		writeResponse(conn, http.StatusOK, "text/html; charset=utf-8", []byte(statusPage))

	case "/info":
		base := fmt.Sprintf("%s:%d", discovery.LocalIP(), s.config.Port)
		// The chat client is the lanchat terminal binary; the root page
		// says how to connect, so that is where we send browsers.
		writeJSON(conn, http.StatusOK, map[string]any{"data": infoResponse{
			ServerURL:     "http://" + base,
			WebSocketURL:  "ws://" + base,
			ChatClientURL: "http://" + base + "/",
		}})

	case "/me":
		writeJSON(conn, http.StatusOK, map[string]any{"data": map[string]string{
			"ip": clientIP(req, remoteAddr),
		}})

	case "/peers":
		writeJSON(conn, http.StatusOK, map[string]any{"data": s.peersSnapshot(req.Context())})

	default:
		writeResponse(conn, http.StatusNotFound, "text/plain", []byte("not found"))
	}
}

// peersSnapshot combines the relay registry with a short mDNS scan. The
// scan only runs when discovery is enabled; it is bounded by the scanner
// timeout so the endpoint stays responsive.
func (s *Server) peersSnapshot(ctx context.Context) peersResponse {
	connected := make([]peerEntry, 0)
	for _, p := range s.relay.Peers() {
		connected = append(connected, peerEntry{
			ID:       p.ID,
			Username: p.Username,
			RoomID:   p.RoomID,
			Type:     "websocket",
			IP:       p.IP,
		})
	}

	network := make([]discovery.Peer, 0)
	if s.config.Discovery {
		if found, err := discovery.NewScanner().ScanForPeers(ctx); err == nil {
			network = found
		} else {
			logging.Warn("Peer scan failed", zap.Error(err))
		}
	}

	return peersResponse{
		NetworkPeers:        network,
		ConnectedPeers:      connected,
		PeersCount:          len(network),
		ConnectedPeersCount: len(connected),
	}
}

// clientIP resolves the requester's address, honoring X-Forwarded-For for
// deployments behind a LAN proxy.
func clientIP(req *http.Request, remoteAddr string) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return strings.TrimPrefix(host, "::ffff:")
}

const statusPage = `<!DOCTYPE html>
<html>
<head><title>lanchat</title></head>
<body>
<h1>lanchat relay</h1>
<p>This server relays chat rooms over WebSocket. Connect with the
<code>lanchat</code> terminal client, or query <code>/info</code> and
<code>/peers</code> for machine-readable state.</p>
</body>
</html>
`
