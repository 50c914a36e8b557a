// Package echo implements the TCP echo service.
package echo

import (
	"fmt"
	"io"
	"log"
	"net"
)

// Handler echoes every byte it receives until the peer closes its side.
type Handler struct {
	logger *log.Logger
}

// NewHandler creates an echo handler. A nil logger uses log.Default.
func NewHandler(logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{logger: logger}
}

func (h *Handler) Handle(conn net.Conn, id uint32) error {
	n, err := io.Copy(conn, conn)
	if err != nil {
		return fmt.Errorf("echo: (%d) copy: %w", id, err)
	}
	h.logger.Printf("echo: (%d) echoed %d bytes", id, n)

	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	return nil
}

func (h *Handler) Shutdown() {}
