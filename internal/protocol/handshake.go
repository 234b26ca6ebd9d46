package protocol

import (
	"crypto/sha1"
	"encoding/base64"
)

// keyGUID is the fixed magic GUID from RFC 6455 section 1.3. Every
// conforming server concatenates it to the client key before hashing.
const keyGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey derives the Sec-WebSocket-Accept header value from the
// client-supplied Sec-WebSocket-Key: SHA-1 over key+GUID, base64 encoded
// with padding. Pure function with no failure modes.
func AcceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey))
	h.Write([]byte(keyGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
