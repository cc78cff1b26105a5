package tcpserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulsegrid/biometric_replay_server/internal/broker"
	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/models"
	"github.com/pulsegrid/biometric_replay_server/internal/registry"
)

const writeTimeout = 10 * time.Second

// Server is the stream-socket transport: newline-delimited JSON over TCP.
// One goroutine accepts connections; each connection gets its own handler
// goroutine that blocks on reads for inbound commands.
type Server struct {
	addr     string
	reg      *registry.Registry
	broker   *broker.Broker
	logStore *logging.LogStore

	mu sync.Mutex
	ln net.Listener
}

// New creates a TCP server bound to addr once Start is called
func New(addr string, reg *registry.Registry, b *broker.Broker, logStore *logging.LogStore) *Server {
	return &Server{
		addr:     addr,
		reg:      reg,
		broker:   b,
		logStore: logStore,
	}
}

// Start begins listening and accepting connections in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logStore.LogAndStore("info", "TCP server listening on %s", ln.Addr())
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listen address, useful when started on port 0
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting connections
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed during shutdown
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn owns one client connection for its lifetime: register, greet,
// then block on reads for commands until the peer disconnects.
func (s *Server) handleConn(conn net.Conn) {
	id := uuid.NewString()
	sc := &streamConn{id: id, conn: conn}

	// Greet before registering so the welcome line can never interleave
	// with fan-out from a running scenario.
	if err := sc.Send(s.broker.Welcome()); err != nil {
		s.logStore.LogAndStore("warning", "Failed to greet TCP client %s: %v", id, err)
		conn.Close()
		return
	}

	s.reg.Register(registry.KindStream, sc)
	s.logStore.LogAndStore("info", "New TCP client connected: %s (%s)", conn.RemoteAddr(), id)

	defer func() {
		s.reg.Unregister(registry.KindStream, id)
		conn.Close()
		s.logStore.LogAndStore("info", "TCP client disconnected: %s", id)
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.broker.HandleCommand(line, id)
	}
}

// streamConn adapts a net.Conn to the registry. A mutex serializes writes so
// fan-out and the welcome message never interleave bytes on the wire.
type streamConn struct {
	id   string
	conn net.Conn
	mu   sync.Mutex
}

func (c *streamConn) ID() string {
	return c.id
}

// Send writes one event as a single JSON line.
func (c *streamConn) Send(ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err = c.conn.Write(data)
	return err
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}
