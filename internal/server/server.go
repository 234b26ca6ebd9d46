package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/merritt/lanchat/internal/config"
	"github.com/merritt/lanchat/internal/discovery"
	"github.com/merritt/lanchat/internal/logging"
	"github.com/merritt/lanchat/internal/relay"
)

// Server accepts raw TCP connections, performs the WebSocket upgrade, and
// hands upgraded streams to per-connection sessions backed by one shared
// relay. Non-upgrade requests are served as plain HTTP (status page and
// the info endpoints).
type Server struct {
	config      *config.Config
	relay       *relay.Relay
	listener    net.Listener
	announcer   *discovery.Announcer
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]net.Conn
}

// New creates a new Server instance
func New(cfg *config.Config) (*Server, error) {
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return &Server{
		config:      cfg,
		relay:       relay.New(),
		activeConns: make(map[string]net.Conn),
	}, nil
}

// Listen binds the TCP listener and, when enabled, announces the service
// over mDNS. Split from Serve so tests and callers can learn the bound
// address before accepting.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	localIP := discovery.LocalIP()
	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.String("local_ip", localIP),
		zap.String("chat_url", fmt.Sprintf("ws://%s:%d", localIP, s.config.Port)),
	)

	if s.config.Discovery {
		announcer, err := discovery.Announce(s.config.Name, s.config.Port)
		if err != nil {
			// Discovery is a convenience; the relay works without it
			logging.Warn("Failed to announce over mDNS", zap.Error(err))
		} else {
			s.announcer = announcer
			logging.Info("Announced over mDNS",
				zap.String("instance", s.config.Name),
				zap.String("service", discovery.ServiceType),
			)
		}
	}

	return nil
}

// Addr returns the bound listener address, valid after Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and blocks until a shutdown signal or an
// accept-loop failure.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Serve accepts and handles incoming connections until the listener closes.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed during shutdown
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection reads the initial HTTP request off a raw connection and
// routes it: WebSocket upgrades become relay sessions, everything else is
// answered as plain HTTP and closed.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	req, reader, err := ReadHTTPRequest(conn)
	if err != nil {
		logging.Debug("Failed to read HTTP request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	if !IsWebSocketUpgrade(req) {
		s.handleHTTP(conn, req, remoteAddr)
		return
	}

	if err := ValidateWebSocketUpgradeRequest(req); err != nil {
		logging.Warn("Invalid WebSocket upgrade request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		writeResponse(conn, 400, "text/plain", []byte(err.Error()))
		return
	}

	if err := WriteUpgradeResponse(conn, req.Header.Get("Sec-WebSocket-Key")); err != nil {
		logging.Error("Failed to send 101 response",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}
	logging.LogConnection(remoteAddr, "websocket_upgraded")

	newSession(conn, reader, remoteAddr, s.relay).run()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.announcer != nil {
		s.announcer.Shutdown()
	}

	// Close listener to stop accepting new connections
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	// Close all active connections; each session's cleanup path runs as
	// its read loop unblocks.
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	// Wait for all connection goroutines with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// ActiveConnections returns the number of currently tracked connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
