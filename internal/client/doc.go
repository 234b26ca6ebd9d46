// Package client implements the client side of the lanchat protocol: the
// opening handshake with accept-token verification and masked single-frame
// text messages over a raw TCP connection.
//
// The terminal client in cmd/lanchat builds on this package; it is also
// the in-repo counterpart that exercises the protocol codec in the
// direction the server never speaks (masked frames out, unmasked in).
package client
