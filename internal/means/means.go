// Package means implements the asset price session protocol: clients insert
// timestamped prices and query the mean over a time range.
package means

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"time"
)

const (
	messageSize = 9

	opInsert = 'I'
	opQuery  = 'Q'

	// DefaultReadTimeout bounds how long a connection may stay idle.
	DefaultReadTimeout = 60 * time.Second
)

type price struct {
	timestamp int32
	amount    int32
}

// Session holds the prices inserted on one connection.
type Session struct {
	prices []price
}

// Insert records amount at timestamp.
func (s *Session) Insert(timestamp, amount int32) {
	s.prices = append(s.prices, price{timestamp: timestamp, amount: amount})
}

// Query returns the rounded mean of prices with mintime <= timestamp <= maxtime,
// or 0 when nothing matches.
func (s *Session) Query(mintime, maxtime int32) int32 {
	if mintime > maxtime {
		return 0
	}

	var sum, count int64
	for _, p := range s.prices {
		if p.timestamp >= mintime && p.timestamp <= maxtime {
			sum += int64(p.amount)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return int32(math.Round(float64(sum) / float64(count)))
}

// Handler serves one Session per connection.
type Handler struct {
	logger      *log.Logger
	readTimeout time.Duration
}

// NewHandler creates a handler. A non-positive timeout uses DefaultReadTimeout.
func NewHandler(logger *log.Logger, readTimeout time.Duration) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Handler{logger: logger, readTimeout: readTimeout}
}

func (h *Handler) Handle(conn net.Conn, id uint32) error {
	var (
		session Session
		msg     [messageSize]byte
		reply   [4]byte
	)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			return fmt.Errorf("means: (%d) set deadline: %w", id, err)
		}

		if _, err := io.ReadFull(conn, msg[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				h.logger.Printf("means: (%d) idle timeout", id)
				return nil
			}
			return fmt.Errorf("means: (%d) read: %w", id, err)
		}

		a := int32(binary.BigEndian.Uint32(msg[1:5]))
		b := int32(binary.BigEndian.Uint32(msg[5:9]))

		switch msg[0] {
		case opInsert:
			session.Insert(a, b)
		case opQuery:
			mean := session.Query(a, b)
			binary.BigEndian.PutUint32(reply[:], uint32(mean))
			if _, err := conn.Write(reply[:]); err != nil {
				return fmt.Errorf("means: (%d) write: %w", id, err)
			}
		default:
			h.logger.Printf("means: (%d) unknown op %q, closing", id, msg[0])
			return nil
		}
	}
}

func (h *Handler) Shutdown() {}
