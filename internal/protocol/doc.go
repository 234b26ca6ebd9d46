// Package protocol implements the WebSocket wire protocol used by the
// lanchat relay: the opening-handshake accept-token derivation and a frame
// codec for single-frame text messages.
//
// # Frame Format
//
// Frames follow RFC 6455:
//   - Byte 0: FIN bit, three reserved bits, 4-bit opcode
//   - Byte 1: mask bit, 7-bit length code
//   - Length code 126: next 2 bytes are a big-endian 16-bit length
//   - Length code 127: next 8 bytes are a big-endian 64-bit length
//   - If masked: 4-byte mask key, payload XORed with key[i%4]
//
// # Decode Policy
//
// The codec makes three deliberate policy choices, enforced by the session
// loop in internal/server:
//
//   - Client data frames without the mask bit are rejected
//     (ErrUnmaskedFrame) rather than decoded permissively. The payload is
//     still consumed so the stream stays in sync and the connection can
//     keep serving the peer.
//   - Text payloads that are not valid UTF-8 are rejected, not replaced.
//     The UTF-8 check lives in the session, which owns the text contract.
//   - Declared payload lengths above MaxPayloadBytes are refused
//     (ErrFrameTooLarge). The 64-bit length tier is fully supported on both
//     encode and decode for inputs below the cap.
//
// # Scope
//
// The relay's contract is text-only, single-frame messages. Continuation,
// binary, ping, and pong frames decode structurally but the relay does not
// act on them; there is no fragment reassembly and no extension support.
//
// # Usage
//
//	frame, err := protocol.ReadFrame(conn)
//	if err != nil {
//	    return err
//	}
//	if frame.Opcode == protocol.OpcodeText {
//	    handle(frame.Payload)
//	}
//
//	_, err = conn.Write(protocol.EncodeText(`{"type":"connected"}`))
//
// All functions are stateless and safe for concurrent use.
package protocol
