package relay

import (
	"crypto/rand"
	"fmt"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newUID returns a 6-character base36 identifier. The space (36^6, about
// 2.1 billion) is large enough that collisions among live entities are
// handled by a registry-side retry rather than a heavier id scheme.
func newUID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// nothing sensible to do at a chat relay level.
		panic(fmt.Sprintf("relay: reading random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

// newSessionID returns a peer id of the form P_xxxxxx.
func newSessionID() string {
	return "P_" + newUID()
}

// newRoomID returns a room id of the form R_xxxxxx.
func newRoomID() string {
	return "R_" + newUID()
}
