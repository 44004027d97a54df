// Package server implements the TCP accept loop and the start/stop/join
// lifecycle that coordinates every connected client.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/linechat/internal/protocol"
	"github.com/Tyrowin/linechat/internal/room"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyStarted is returned by Start on a server that was started before.
	ErrAlreadyStarted = errors.New("server has already started")
	// ErrNotStarted is returned by Stop and Join before Start.
	ErrNotStarted = errors.New("server has not started")
	// ErrNotAccepting is returned when a connection arrives while the server
	// is not in the started state.
	ErrNotAccepting = errors.New("server is not accepting clients")
	// ErrServerFull is returned when MaxClients clients are already connected.
	ErrServerFull = errors.New("server is full")
)

const maxAcceptDelay = time.Second

// Server owns the listening socket, the room registry and the set of live
// clients.
type Server struct {
	cfg    Config
	logger *zap.Logger
	log    *zap.SugaredLogger
	rooms  *room.Registry

	status atomic.Int32

	// mu serializes Start and Stop.
	mu         sync.Mutex
	listener   net.Listener
	quit       chan struct{}
	acceptDone chan struct{}

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
	nextID    uint64
}

// Stats is a point-in-time view of the server.
type Stats struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Rooms   int    `json:"rooms"`
}

// New creates a server that has not started yet. A nil logger disables
// logging.
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg.sanitize(),
		logger:     logger,
		log:        logger.Named("server").Sugar(),
		rooms:      room.NewRegistry(logger),
		quit:       make(chan struct{}),
		acceptDone: make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Status returns the current lifecycle state.
func (s *Server) Status() Status {
	return Status(s.status.Load())
}

func (s *Server) setStatus(status Status) {
	s.status.Store(int32(status))
	s.log.Debugw("status changed", "status", status.String())
}

// Start opens the listener and launches the accept loop. It can be called at
// most once; a listen failure leaves the server ended.
func (s *Server) Start(address string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.CompareAndSwap(int32(StatusNotStarted), int32(StatusStarting)) {
		return ErrAlreadyStarted
	}
	s.log.Info("starting")

	addr := net.JoinHostPort(address, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.setStatus(StatusEnded)
		close(s.acceptDone)
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.setStatus(StatusStarted)
	go s.acceptLoop(ln)

	s.log.Infow("listening", "addr", ln.Addr().String())
	return nil
}

// Stop closes the listener, which ends the accept loop and then every client.
// Calling Stop again is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Status() {
	case StatusNotStarted:
		s.log.Error("stop requested but server has not started")
		return ErrNotStarted
	case StatusEnding, StatusEnded:
		return nil
	}

	s.log.Info("changing server status and stopping the listener")
	s.setStatus(StatusEnding)
	close(s.quit)

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close listener: %w", err)
	}
	s.log.Info("listener stopped")
	return nil
}

// Join blocks until the accept loop and every client it was serving have
// stopped.
func (s *Server) Join() error {
	if s.Status() == StatusNotStarted {
		s.log.Error("join requested but server has not started")
		return ErrNotStarted
	}
	<-s.acceptDone
	return nil
}

// Shutdown stops the server and waits for it to end or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}

	select {
	case <-s.acceptDone:
		s.log.Info("shutdown completed")
		return nil
	case <-ctx.Done():
		s.log.Warn("shutdown deadline reached, some clients may still be running")
		return ctx.Err()
	}
}

// Addr returns the listener address, or nil before a successful Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats reports the status, live client count and room count.
func (s *Server) Stats() Stats {
	s.clientsMu.Lock()
	clients := len(s.clients)
	s.clientsMu.Unlock()

	return Stats{
		Status:  s.Status().String(),
		Clients: clients,
		Rooms:   s.rooms.Len(),
	}
}

// Attach serves a connection accepted outside the TCP listener, such as a
// WebSocket. A rejected connection is notified and closed.
func (s *Server) Attach(conn LineConn) error {
	if err := s.admit(conn); err != nil {
		s.reject(conn, err)
		return err
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)
	s.log.Info("accept loop started")

	var delay time.Duration
	for s.Status() == StatusStarted {
		conn, err := ln.Accept()
		if err != nil {
			if s.Status() != StatusStarted {
				s.log.Debugw("accept interrupted by stop", "error", err)
				break
			}
			delay = nextAcceptDelay(delay)
			s.log.Warnw("accept failed, retrying", "error", err, "delay", delay)
			s.pause(delay)
			continue
		}
		delay = 0

		lc := newTCPLineConn(conn, s.cfg.MaxLineLength, s.cfg.WriteTimeout)
		if err := s.admit(lc); err != nil {
			s.reject(lc, err)
		}
	}

	s.log.Info("waiting for clients to end before ending accept loop")
	s.drainClients()
	s.setStatus(StatusEnded)
	s.log.Infow("accept loop ended", "rooms", s.rooms.Names())
}

func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}
	delay *= 2
	if delay > maxAcceptDelay {
		delay = maxAcceptDelay
	}
	return delay
}

func (s *Server) pause(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.quit:
	}
}

// admit registers and starts a client for conn. The status is checked under
// the live-set lock, so a client is either refused or seen by drainClients.
func (s *Server) admit(conn LineConn) error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.Status() != StatusStarted {
		return ErrNotAccepting
	}
	if s.cfg.MaxClients > 0 && len(s.clients) >= s.cfg.MaxClients {
		return ErrServerFull
	}

	name := fmt.Sprintf("client-%d", s.nextID)
	s.nextID++

	c := newClient(name, conn, s.rooms, s.logger, s.removeClient)
	s.clients[c] = struct{}{}
	c.start()

	s.log.Infow("new client accepted", "client", name, "remote", conn.RemoteAddr(), "clients", len(s.clients))
	return nil
}

func (s *Server) reject(conn LineConn, reason error) {
	notice := protocol.ReasonServerExiting
	if errors.Is(reason, ErrServerFull) {
		notice = protocol.ReasonServerFull
	}
	s.log.Warnw("rejecting connection", "remote", conn.RemoteAddr(), "reason", reason)

	if err := conn.WriteLine(protocol.FormatError(notice)); err != nil && !isExpectedCloseError(err) {
		s.log.Debugw("could not notify rejected connection", "error", err)
	}
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Debugw("error closing rejected connection", "error", err)
	}
}

func (s *Server) removeClient(c *Client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	remaining := len(s.clients)
	s.clientsMu.Unlock()

	s.log.Debugw("client removed", "client", c.Name(), "clients", remaining)
}

// drainClients asks every live client to exit, then waits for all of them.
func (s *Server) drainClients() {
	s.clientsMu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		c.RequestExit()
	}
	for _, c := range clients {
		c.AwaitTermination()
	}
	s.log.Infow("all clients ended", "count", len(clients))
}
