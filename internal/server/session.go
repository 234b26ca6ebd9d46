package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/merritt/lanchat/internal/logging"
	"github.com/merritt/lanchat/internal/protocol"
	"github.com/merritt/lanchat/internal/relay"
	"github.com/merritt/lanchat/internal/wire"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Outbound frames queued per session before broadcasts to this peer
	// start being dropped
	sendQueueSize = 32
)

// session bridges one upgraded connection to the relay. It is the sole
// reader and writer of its conn: the run loop reads frames, a writer
// goroutine drains the outbound queue. All cross-session effects go
// through the relay.
type session struct {
	conn       net.Conn
	r          io.Reader // buffered reader carried over from the upgrade
	remoteAddr string
	relay      *relay.Relay

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newSession(conn net.Conn, r io.Reader, remoteAddr string, rl *relay.Relay) *session {
	return &session{
		conn:       conn,
		r:          r,
		remoteAddr: remoteAddr,
		relay:      rl,
		out:        make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
	}
}

// Send satisfies relay.Sender: marshal, encode, enqueue. Never blocks and
// never fails loudly -- a closed or saturated peer just stops receiving,
// which must not stall broadcast to the rest of the room.
func (s *session) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error("Failed to marshal outbound message",
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
		return
	}
	s.enqueue(protocol.EncodeText(string(data)))
}

func (s *session) enqueue(frame []byte) {
	select {
	case <-s.done:
	case s.out <- frame:
	default:
		logging.Warn("Send queue full, dropping frame",
			zap.String("remote_addr", s.remoteAddr),
		)
	}
}

// writeFrame writes one frame under a deadline. The mutex serializes the
// queue drain with the synchronous close acknowledgement, so two writers
// can never interleave bytes on the conn.
func (s *session) writeFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := s.conn.Write(frame)
	return err
}

// writeLoop drains the outbound queue. It exits when the session closes;
// a write error closes the session, which in turn unblocks the read loop.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			if err := s.writeFrame(frame); err != nil {
				logging.Debug("Write failed, closing session",
					zap.String("remote_addr", s.remoteAddr),
					zap.Error(err),
				)
				s.close()
				return
			}
		}
	}
}

// close releases the stream. Idempotent; both the close and error paths
// funnel here.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// run is the session's read loop. It registers with the relay, translates
// frames into relay calls, and guarantees the disconnect cleanup runs
// exactly once no matter which signal (peer close, protocol violation,
// transport error) ended the connection.
func (s *session) run() {
	go s.writeLoop()

	id := s.relay.Register(s)
	logging.LogConnection(s.remoteAddr, "websocket_session_started")

	defer func() {
		s.relay.Disconnect(id)
		s.close()
		logging.LogConnection(s.remoteAddr, "websocket_session_ended")
	}()

	for {
		frame, err := protocol.ReadFrame(s.r)
		if err != nil {
			if err != io.EOF {
				logging.Debug("Frame read ended",
					zap.String("remote_addr", s.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		logging.LogFrame(s.remoteAddr, "received", frame.OpcodeString(), len(frame.Payload))

		switch frame.Opcode {
		case protocol.OpcodeText:
			if msg, ok := s.checkTextFrame(frame); ok {
				s.relay.Handle(id, msg)
			}

		case protocol.OpcodeClose:
			// Acknowledge synchronously; an enqueued ack could still be
			// sitting in the queue when teardown closes the conn.
			if err := s.writeFrame(protocol.EncodeClose()); err != nil {
				logging.Debug("Close ack write failed",
					zap.String("remote_addr", s.remoteAddr),
					zap.Error(err),
				)
			}
			return

		default:
			// Binary, ping, pong, and continuation frames decode
			// structurally but the relay's contract is text-only single
			// frames; nothing to act on.
			logging.Debug("Ignoring frame",
				zap.String("remote_addr", s.remoteAddr),
				zap.String("opcode", frame.OpcodeString()),
			)
		}
	}
}

// checkTextFrame enforces the codec's documented decode policies on a text
// frame: client data frames must be masked and payloads must be valid
// UTF-8. Violations are reported to the offending session only; the frame
// was fully consumed, so the stream stays in sync and the connection stays
// open.
func (s *session) checkTextFrame(frame *protocol.Frame) ([]byte, bool) {
	if err := frame.CheckClientData(); errors.Is(err, protocol.ErrUnmaskedFrame) {
		logging.Warn("Rejecting unmasked client frame",
			zap.String("remote_addr", s.remoteAddr),
		)
		s.Send(wire.NewError("Client frames must be masked"))
		return nil, false
	}
	if !utf8.Valid(frame.Payload) {
		s.Send(wire.NewError("Payload is not valid UTF-8"))
		return nil, false
	}
	return frame.Payload, true
}
