// Package server runs the lanchat listener: a raw TCP accept loop that
// upgrades WebSocket requests by hand and serves a few plain HTTP
// endpoints on the same port.
//
// # Connection Lifecycle
//
// Each accepted connection reads one HTTP request off the bare stream.
// Upgrade requests are validated (method, Upgrade/Connection headers,
// Sec-WebSocket-Version 13, presence of Sec-WebSocket-Key), answered with
// a hand-written 101 response whose Sec-WebSocket-Accept comes from
// protocol.AcceptKey, and handed to a session. Anything else is routed to
// the plain endpoints:
//
//	GET /        minimal HTML status page
//	GET /info    server, websocket, and chat client URLs
//	GET /me      the requester's address as the server sees it
//	GET /peers   connected sessions plus mDNS-discovered lanchat servers
//
// # Sessions
//
// A session owns its connection exclusively: the run loop is the only
// reader, a writer goroutine draining a buffered queue is the only writer.
// Outbound sends are fire-and-forget; a slow or dead peer drops frames
// rather than stalling room broadcasts. Disconnect cleanup in the relay
// runs exactly once per session regardless of whether a peer close frame,
// a protocol violation, or a transport error ended the connection.
//
// The server does not terminate TLS; lanchat serves plain ws:// on a
// trusted local network.
package server
