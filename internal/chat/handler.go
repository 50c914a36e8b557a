package chat

import (
	"log"
	"net"

	"github.com/ledzpl/protosrv/internal/linebuf"
)

// Lane runs a user's writer task concurrently with its reader.
type Lane func(task func()) error

// DedicatedLane runs every writer on its own goroutine, outside any bounded
// pool.
func DedicatedLane(task func()) error {
	go task()
	return nil
}

// Option customises a Handler.
type Option func(*Handler)

// WithRoom shares an existing room instead of creating one.
func WithRoom(room *Room) Option {
	return func(h *Handler) {
		if room != nil {
			h.room = room
		}
	}
}

// WithLogger sets the handler's logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLane sets where writer tasks run. Scheduling writers on the same
// bounded pool as readers needs at least two slots per connected user.
func WithLane(lane Lane) Option {
	return func(h *Handler) {
		if lane != nil {
			h.lane = lane
		}
	}
}

// WithMaxLineLength bounds how many unterminated bytes a connection may buffer.
func WithMaxLineLength(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxLine = n
		}
	}
}

// Handler serves the budget chat protocol on accepted connections.
type Handler struct {
	room    *Room
	lane    Lane
	logger  *log.Logger
	maxLine int
}

// NewHandler creates a chat handler with its own room unless WithRoom is given.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		room:    NewRoom(),
		lane:    DedicatedLane,
		logger:  log.Default(),
		maxLine: linebuf.DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Room returns the handler's room.
func (h *Handler) Room() *Room {
	return h.room
}

// Handle runs the chat protocol on conn until the peer goes away. It returns
// once the connection's writer has stopped too.
func (h *Handler) Handle(conn net.Conn, id uint32) error {
	return newSession(h, conn, id).run()
}

// Shutdown stops every writer task. Readers finish when their peers disconnect.
func (h *Handler) Shutdown() {
	h.logger.Printf("chat: shutting down, %d users connected", h.room.Len())
	h.room.Shutdown()
}
