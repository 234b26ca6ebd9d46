package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WebSocket frame opcodes
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

// MaxPayloadBytes caps the payload length the decoder will accept. The wire
// format allows 64-bit lengths, but a chat relay never legitimately carries
// frames anywhere near this size.
const MaxPayloadBytes = 1 << 20

// Sentinel decode errors, checked with errors.Is by the session loop.
var (
	// ErrIncompleteFrame indicates the stream ended before the declared
	// header+payload length. The caller should wait for more bytes rather
	// than treat the connection as corrupted.
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrFrameTooLarge indicates a declared payload length above MaxPayloadBytes.
	ErrFrameTooLarge = errors.New("frame payload exceeds limit")

	// ErrUnmaskedFrame indicates a client data frame without the mask bit.
	// Client-to-server frames must be masked; the decoder keeps the stream
	// in sync (the payload is still consumed) so the caller can recover.
	ErrUnmaskedFrame = errors.New("client frame is not masked")
)

// Frame represents a single WebSocket frame
type Frame struct {
	FIN     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  byte
	Masked  bool
	Length  uint64
	MaskKey [4]byte
	Payload []byte
}

// ReadFrame reads one WebSocket frame from the reader.
//
// The reader is expected to deliver whole frames (the session loop reads
// directly from the connection, so io.ReadFull blocks until the declared
// bytes arrive). A stream that ends mid-frame surfaces as ErrIncompleteFrame.
func ReadFrame(r io.Reader) (*Frame, error) {
	frame := &Frame{}

	// Read first two bytes
	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, wrapReadErr("frame header", err)
	}

	// Parse first byte: FIN, RSV1-3, Opcode
	frame.FIN = (header[0] & 0x80) != 0
	frame.RSV1 = (header[0] & 0x40) != 0
	frame.RSV2 = (header[0] & 0x20) != 0
	frame.RSV3 = (header[0] & 0x10) != 0
	frame.Opcode = header[0] & 0x0F

	// Parse second byte: Mask, Payload length
	frame.Masked = (header[1] & 0x80) != 0
	payloadLen := uint64(header[1] & 0x7F)

	// Extended payload length
	if payloadLen == 126 {
		extLen := make([]byte, 2)
		if _, err := io.ReadFull(r, extLen); err != nil {
			return nil, wrapReadErr("extended length", err)
		}
		frame.Length = uint64(binary.BigEndian.Uint16(extLen))
	} else if payloadLen == 127 {
		extLen := make([]byte, 8)
		if _, err := io.ReadFull(r, extLen); err != nil {
			return nil, wrapReadErr("extended length", err)
		}
		frame.Length = binary.BigEndian.Uint64(extLen)
	} else {
		frame.Length = payloadLen
	}

	if frame.Length > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, frame.Length)
	}

	// Read mask key if present (client-to-server frames must be masked)
	if frame.Masked {
		if _, err := io.ReadFull(r, frame.MaskKey[:]); err != nil {
			return nil, wrapReadErr("mask key", err)
		}
	}

	// Read payload
	if frame.Length > 0 {
		payload := make([]byte, frame.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, wrapReadErr("payload", err)
		}

		// Unmask payload if masked
		if frame.Masked {
			frame.Payload = unmaskPayload(payload, frame.MaskKey)
		} else {
			frame.Payload = payload
		}
	}

	return frame, nil
}

// CheckClientData enforces the masking rule on a decoded client data
// frame. ReadFrame accepts unmasked frames so the stream stays in sync;
// servers call this afterwards and answer ErrUnmaskedFrame without
// dropping the connection.
func (f *Frame) CheckClientData() error {
	if !f.Masked {
		return ErrUnmaskedFrame
	}
	return nil
}

// wrapReadErr maps short reads onto ErrIncompleteFrame. A clean EOF on the
// first header byte is returned as-is so callers see a normal close.
func wrapReadErr(section string, err error) error {
	if err == io.EOF && section == "frame header" {
		return io.EOF
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: short read of %s", ErrIncompleteFrame, section)
	}
	return fmt.Errorf("failed to read %s: %w", section, err)
}

// unmaskPayload applies XOR mask to payload (WebSocket masking algorithm,
// symmetric for mask and unmask)
func unmaskPayload(payload []byte, maskKey [4]byte) []byte {
	unmasked := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		unmasked[i] = payload[i] ^ maskKey[i%4]
	}
	return unmasked
}

// EncodeText builds a server-to-client text frame: FIN set, opcode 0x1,
// unmasked, with the three-tier length encoding over the UTF-8 byte length.
// Deterministic: the same input always produces the same bytes.
func EncodeText(text string) []byte {
	return encodeFrame(0x80|OpcodeText, []byte(text), nil)
}

// EncodeMaskedText builds a client-to-server text frame with a random mask
// key, as required of everything a client sends.
func EncodeMaskedText(text string) ([]byte, error) {
	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate mask key: %w", err)
	}
	payload := unmaskPayload([]byte(text), key)
	return encodeFrame(0x80|OpcodeText, payload, key[:]), nil
}

// EncodeClose builds a bare close frame with no status code, used to
// acknowledge a peer-initiated close.
func EncodeClose() []byte {
	return encodeFrame(0x80|OpcodeClose, nil, nil)
}

// encodeFrame assembles header + optional mask key + payload. The payload
// must already be masked when maskKey is non-nil.
func encodeFrame(headerByte byte, payload []byte, maskKey []byte) []byte {
	payloadLen := len(payload)

	maskBit := byte(0)
	if maskKey != nil {
		maskBit = 0x80
	}

	frame := make([]byte, 0, 10+len(maskKey)+payloadLen)
	frame = append(frame, headerByte)

	if payloadLen < 126 {
		frame = append(frame, maskBit|byte(payloadLen))
	} else if payloadLen < 65536 {
		frame = append(frame, maskBit|126)
		frame = append(frame, byte(payloadLen>>8), byte(payloadLen&0xFF))
	} else {
		frame = append(frame, maskBit|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(payloadLen))
		frame = append(frame, ext[:]...)
	}

	frame = append(frame, maskKey...)
	frame = append(frame, payload...)

	return frame
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	switch f.Opcode {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", f.Opcode)
	}
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, f.Length)
}
