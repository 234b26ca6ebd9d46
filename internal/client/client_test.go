package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/merritt/lanchat/internal/config"
	"github.com/merritt/lanchat/internal/server"
	"github.com/merritt/lanchat/internal/wire"
)

func startServer(t *testing.T) string {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Discovery = false

	s, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
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
	return s.Addr().String()
}

func TestDialAndChat(t *testing.T) {
	addr := startServer(t)

	alice, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer alice.Close()

	ev, err := alice.Receive()
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if ev.Type != "connected" || ev.UserID == "" {
		t.Fatalf("expected connected event, got %+v", ev)
	}

	if err := alice.SendCommand(wire.TypeSetUsername, map[string]string{"username": "alice"}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if ev, err = alice.Receive(); err != nil || ev.Type != "username_set" || ev.Username != "alice" {
		t.Fatalf("username_set = %+v, err = %v", ev, err)
	}

	if err := alice.SendCommand(wire.TypeCreateRoom, nil); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if ev, err = alice.Receive(); err != nil || ev.Type != "room_created" {
		t.Fatalf("room_created = %+v, err = %v", ev, err)
	}
	roomID := ev.RoomID

	bob, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer bob.Close()
	if _, err := bob.Receive(); err != nil { // connected
		t.Fatalf("Receive() error = %v", err)
	}
	if err := bob.SendCommand(wire.TypeJoinRoom, map[string]string{"room_id": roomID}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if ev, err = bob.Receive(); err != nil || ev.Type != "room_joined" || ev.RoomID != roomID {
		t.Fatalf("room_joined = %+v, err = %v", ev, err)
	}
	if ev, err = alice.Receive(); err != nil || ev.Type != "user_joined" {
		t.Fatalf("user_joined = %+v, err = %v", ev, err)
	}

	if err := alice.SendCommand(wire.TypeMessage, map[string]string{"text": "ahoy"}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	for _, c := range []*Conn{alice, bob} {
		ev, err := c.Receive()
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if ev.Type != "message" || ev.Text != "ahoy" || ev.Username != "alice" || ev.Timestamp == 0 {
			t.Errorf("chat event = %+v", ev)
		}
	}
}

func TestReceiveAfterClose(t *testing.T) {
	addr := startServer(t)

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if _, err := c.Receive(); err != nil { // connected
		t.Fatalf("Receive() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := c.Receive(); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Receive() after close = %v, want ErrServerClosed", err)
	}
}

func TestDialRejectsNonWebSocketServer(t *testing.T) {
	// A server that answers 200 instead of 101 must fail the dial, not hang.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	if _, err := Dial(addr); err == nil {
		t.Fatal("Dial() against a plain HTTP server should fail")
	}
}
