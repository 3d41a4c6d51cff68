// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtuovertcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/rtu-slave/transport"
)

// Default bounded wait for Accept and Read
const pollTimeout = 5 * time.Millisecond

// Server carries the RTU byte stream of one TCP client at a time, the way
// a serial device server does. Frame boundaries still come from silence on
// the stream, so the engine's frame timer applies unchanged.
type Server struct {
	Address     string
	PollTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	stream   *transport.Stream
	closed   bool
}

// NewServer creates a new RTU over TCP Server.
func NewServer(address string) *Server {
	return &Server{
		Address:     address,
		PollTimeout: pollTimeout,
	}
}

// Listen binds the listening socket. Poll calls it on first use.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listen()
}

func (s *Server) listen() error {
	if s.closed {
		return transport.ErrClosed
	}
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.listener = listener
	slog.Info("RTU over TCP server listening", "addr", listener.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Poll() (byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.listen(); err != nil {
		return 0, false, err
	}
	if s.stream == nil {
		if err := s.accept(); err != nil {
			return 0, false, err
		}
		if s.stream == nil {
			return 0, false, nil
		}
	}

	b, ok, err := s.stream.Poll()
	if err != nil {
		addr := s.conn.RemoteAddr()
		s.hangup()
		if errors.Is(err, transport.ErrClosed) {
			slog.Info("RTU over TCP client disconnected", "addr", addr)
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("connection read error from %s: %w", addr, err)
	}
	return b, ok, nil
}

// accept waits a bounded time for the next client. Caller must hold the mutex.
func (s *Server) accept() error {
	if d, ok := s.listener.(interface{ SetDeadline(time.Time) error }); ok {
		if err := d.SetDeadline(time.Now().Add(s.PollTimeout)); err != nil {
			return err
		}
	}
	conn, err := s.listener.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		if errors.Is(err, net.ErrClosed) {
			return transport.ErrClosed
		}
		return fmt.Errorf("failed to accept connection: %w", err)
	}
	slog.Info("New RTU over TCP client connected", "addr", conn.RemoteAddr())
	s.conn = conn
	s.stream = transport.NewStream(&deadlineConn{Conn: conn, wait: s.PollTimeout}, nil)
	return nil
}

func (s *Server) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return errors.New("rtuovertcp: no client connected")
	}
	if err := s.stream.Send(frame); err != nil {
		addr := s.conn.RemoteAddr()
		s.hangup()
		return fmt.Errorf("failed to write response to %s: %w", addr, err)
	}
	return nil
}

// Close closes the client connection and the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.hangup()
	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil
		return err
	}
	return nil
}

// hangup drops the current client. Caller must hold the mutex.
func (s *Server) hangup() {
	if s.stream != nil {
		s.stream.Close()
	}
	s.stream = nil
	s.conn = nil
}

// deadlineConn bounds every Read so Poll never blocks on a quiet client.
type deadlineConn struct {
	net.Conn
	wait time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.wait)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
