// Package app wires a configured protocol to its listener, worker pool and
// accept loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/ledzpl/protosrv/internal/config"
	"github.com/ledzpl/protosrv/internal/pool"
	"github.com/ledzpl/protosrv/pkg/netserver"
)

// ErrUnknownProtocol is returned when the configured protocol is not registered
// for the configured transport.
var ErrUnknownProtocol = errors.New("app: unknown protocol")

// Run binds cfg.Addr() and serves until ctx is cancelled. A bind failure is
// returned immediately; a cooperative shutdown returns ctx.Err().
func Run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	switch cfg.Transport {
	case config.TransportTCP:
		if _, ok := tcpProtocols[cfg.Protocol]; !ok {
			return unknownProtocol(cfg)
		}
		listener, err := net.Listen("tcp", cfg.Addr())
		if err != nil {
			return fmt.Errorf("app: listen tcp %s: %w", cfg.Addr(), err)
		}
		defer listener.Close()
		return ServeTCP(ctx, cfg, listener, logger)

	case config.TransportUDP:
		if _, ok := udpProtocols[cfg.Protocol]; !ok {
			return unknownProtocol(cfg)
		}
		conn, err := net.ListenPacket("udp", cfg.Addr())
		if err != nil {
			return fmt.Errorf("app: listen udp %s: %w", cfg.Addr(), err)
		}
		defer conn.Close()
		return ServeUDP(ctx, cfg, conn, logger)

	default:
		return fmt.Errorf("app: unknown transport %q", cfg.Transport)
	}
}

// ServeTCP runs the configured TCP protocol on listener. Each accepted
// connection becomes one job on a pool of cfg.Workers workers. Once the
// accept loop stops, the pool is closed and ServeTCP waits for outstanding
// connection jobs to finish.
func ServeTCP(ctx context.Context, cfg config.Config, listener net.Listener, logger *log.Logger) error {
	newHandler, ok := tcpProtocols[cfg.Protocol]
	if !ok {
		return unknownProtocol(cfg)
	}

	p, err := pool.New(cfg.Workers, pool.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	handler := newHandler(deps{cfg: cfg, pool: p, logger: logger})
	srv := netserver.New(cfg.Addr(), handler, p, logger)
	srv.PollInterval = cfg.PollInterval

	logger.Printf("app: serving %s with %d workers", cfg.Protocol, cfg.Workers)
	err = srv.Serve(ctx, listener)

	logger.Printf("app: waiting for %d queued connections and running handlers", p.Pending())
	p.Close()
	logger.Printf("app: %s stopped", cfg.Protocol)

	return err
}

// ServeUDP runs the configured UDP protocol on conn.
func ServeUDP(ctx context.Context, cfg config.Config, conn net.PacketConn, logger *log.Logger) error {
	newHandler, ok := udpProtocols[cfg.Protocol]
	if !ok {
		return unknownProtocol(cfg)
	}

	handler, err := newHandler(ctx, deps{cfg: cfg, logger: logger})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	srv := netserver.NewPacketServer(cfg.Addr(), handler, logger)
	srv.PollInterval = cfg.PollInterval

	logger.Printf("app: serving %s", cfg.Protocol)
	return srv.Serve(ctx, conn)
}

func unknownProtocol(cfg config.Config) error {
	return fmt.Errorf("%w %q for %s, available: %s",
		ErrUnknownProtocol, cfg.Protocol, cfg.Transport, strings.Join(Protocols(cfg.Transport), ", "))
}
