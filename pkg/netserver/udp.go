package netserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

// PacketHandler serves datagrams received on a shared socket.
type PacketHandler interface {
	HandlePacket(data []byte, conn net.PacketConn, addr net.Addr) error
	Shutdown()
}

// PacketServer wraps the UDP read loop lifecycle. Datagrams are handled
// inline, one at a time, in arrival order.
type PacketServer struct {
	Addr         string
	PollInterval time.Duration
	BufferSize   int

	handler PacketHandler
	logger  *log.Logger
}

// NewPacketServer creates a PacketServer for handler.
func NewPacketServer(addr string, handler PacketHandler, logger *log.Logger) *PacketServer {
	if logger == nil {
		logger = log.Default()
	}

	return &PacketServer{
		Addr:         addr,
		PollInterval: DefaultPollInterval,
		BufferSize:   1024,
		handler:      handler,
		logger:       logger,
	}
}

// ListenAndServe binds Addr and serves until ctx is cancelled.
func (s *PacketServer) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("netserver: listen %q: %w", s.Addr, err)
	}
	defer conn.Close()

	return s.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is cancelled, then calls the
// handler's Shutdown and returns ctx.Err(). Handler errors are logged.
func (s *PacketServer) Serve(ctx context.Context, conn net.PacketConn) error {
	if s.handler == nil {
		return errors.New("netserver: packet handler required")
	}

	s.logger.Printf("netserver: listening on udp %s", conn.LocalAddr())

	size := s.BufferSize
	if size <= 0 {
		size = 1024
	}
	buf := make([]byte, size)

	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return fmt.Errorf("netserver: set read deadline: %w", err)
		}

		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				if ctx.Err() != nil {
					s.handler.Shutdown()
					return ctx.Err()
				}
				continue
			}
			return fmt.Errorf("netserver: read: %w", err)
		}

		data := append([]byte(nil), buf[:n]...)
		s.logger.Printf("netserver: (%s) data: % X", addr, data)

		if err := s.handler.HandlePacket(data, conn, addr); err != nil {
			s.logger.Printf("netserver: (%s) %v", addr, err)
		}
	}
}
