// Package netserver accepts TCP connections and UDP datagrams in polling
// loops that observe cancellation between polls.
package netserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

// DefaultPollInterval is how long one accept or read waits before the loop
// checks for shutdown.
const DefaultPollInterval = 100 * time.Millisecond

// Handler serves accepted TCP connections.
type Handler interface {
	// Handle runs the protocol on conn. id is a diagnostic connection number.
	Handle(conn net.Conn, id uint32) error
	// Shutdown is called once when the accept loop stops.
	Shutdown()
}

// Executor runs connection jobs, typically a bounded worker pool.
type Executor interface {
	Submit(job func()) error
}

type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Server wraps the TCP accept loop lifecycle.
type Server struct {
	Addr         string
	PollInterval time.Duration

	handler Handler
	exec    Executor
	logger  *log.Logger

	nextID uint32
}

// New creates a Server that submits one job per connection to exec.
func New(addr string, handler Handler, exec Executor, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		Addr:         addr,
		PollInterval: DefaultPollInterval,
		handler:      handler,
		exec:         exec,
		logger:       logger,
	}
}

// ListenAndServe binds Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("netserver: listen %q: %w", s.Addr, err)
	}
	defer listener.Close()

	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled. Between
// accepts it waits at most PollInterval, so cancellation is seen within one
// interval once no connection is pending. On cancellation the handler's
// Shutdown is called and ctx.Err() returned. Connection jobs already
// submitted keep running; the caller owns the executor's teardown.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.handler == nil || s.exec == nil {
		return errors.New("netserver: handler and executor required")
	}

	dl, ok := listener.(deadlineListener)
	if !ok {
		return fmt.Errorf("netserver: listener %T does not support deadlines", listener)
	}

	s.logger.Printf("netserver: listening on tcp %s", listener.Addr())

	for {
		if err := dl.SetDeadline(time.Now().Add(s.pollInterval())); err != nil {
			return fmt.Errorf("netserver: set accept deadline: %w", err)
		}

		conn, err := dl.Accept()
		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					s.handler.Shutdown()
					return ctx.Err()
				}
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("netserver: accept: %w", err)
			}
			s.logger.Printf("netserver: accept error: %v", err)
			continue
		}

		s.dispatch(conn)
	}
}

func (s *Server) dispatch(conn net.Conn) {
	s.nextID++
	id := s.nextID
	s.logger.Printf("netserver: (%d) client connected: %s", id, conn.RemoteAddr())

	err := s.exec.Submit(func() {
		defer conn.Close()

		if err := s.handler.Handle(conn, id); err != nil {
			s.logger.Printf("netserver: (%d) %v", id, err)
		}
		s.logger.Printf("netserver: (%d) closed", id)
	})
	if err != nil {
		s.logger.Printf("netserver: (%d) rejected: %v", id, err)
		_ = conn.Close()
	}
}

func (s *Server) pollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return s.PollInterval
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
