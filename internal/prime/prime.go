// Package prime implements the line-delimited JSON primality service.
package prime

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"time"

	"github.com/goccy/go-json"

	"github.com/ledzpl/protosrv/internal/linebuf"
)

const (
	methodIsPrime = "isPrime"

	// DefaultReadTimeout bounds how long a connection may stay idle.
	DefaultReadTimeout = 5 * time.Second
)

// ErrMalformed reports a request that does not follow the protocol.
var ErrMalformed = errors.New("prime: malformed request")

type request struct {
	Method *string          `json:"method"`
	Number json.RawMessage `json:"number"`
}

type response struct {
	Method string `json:"method"`
	Prime  bool   `json:"prime"`
}

type malformedResponse struct {
	Error string `json:"error"`
}

// Respond answers one request line. The returned response is newline
// terminated. Errors wrap ErrMalformed.
func Respond(line []byte) ([]byte, error) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if req.Method == nil || *req.Method != methodIsPrime {
		return nil, fmt.Errorf("%w: method must be %q", ErrMalformed, methodIsPrime)
	}

	number := bytes.TrimSpace(req.Number)
	if len(number) == 0 || (number[0] != '-' && (number[0] < '0' || number[0] > '9')) {
		return nil, fmt.Errorf("%w: number must be a JSON number", ErrMalformed)
	}

	out, err := json.Marshal(response{Method: methodIsPrime, Prime: IsPrime(string(number))})
	if err != nil {
		return nil, fmt.Errorf("prime: encode response: %w", err)
	}
	return append(out, '\n'), nil
}

// IsPrime reports whether the JSON number literal is a prime integer. Any
// literal with a fraction or exponent is treated as a non-integer.
func IsPrime(number string) bool {
	n, ok := new(big.Int).SetString(number, 10)
	if !ok {
		return false
	}
	if n.Cmp(big.NewInt(2)) < 0 {
		return false
	}
	return n.ProbablyPrime(20)
}

// Handler serves primality requests until the peer disconnects or sends a
// malformed request.
type Handler struct {
	logger      *log.Logger
	readTimeout time.Duration
	maxLine     int
}

// NewHandler creates a handler. Non-positive values select the defaults.
func NewHandler(logger *log.Logger, readTimeout time.Duration, maxLine int) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Handler{logger: logger, readTimeout: readTimeout, maxLine: maxLine}
}

func (h *Handler) Handle(conn net.Conn, id uint32) error {
	lines := linebuf.New(h.maxLine)
	buf := make([]byte, 4096)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			return fmt.Errorf("prime: (%d) set deadline: %w", id, err)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			complete, lineErr := lines.Append(buf[:n])
			for _, line := range complete {
				out, respErr := Respond([]byte(line))
				if respErr != nil {
					h.logger.Printf("prime: (%d) %v", id, respErr)
					return h.reject(conn, id)
				}
				if _, err := conn.Write(out); err != nil {
					return fmt.Errorf("prime: (%d) write: %w", id, err)
				}
			}
			if lineErr != nil {
				h.logger.Printf("prime: (%d) %v", id, lineErr)
				return h.reject(conn, id)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				h.logger.Printf("prime: (%d) idle timeout", id)
				return nil
			}
			return fmt.Errorf("prime: (%d) read: %w", id, err)
		}
	}
}

func (h *Handler) reject(conn net.Conn, id uint32) error {
	out, err := json.Marshal(malformedResponse{Error: "malformed request"})
	if err != nil {
		return fmt.Errorf("prime: (%d) encode rejection: %w", id, err)
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("prime: (%d) write rejection: %w", id, err)
	}
	return nil
}

func (h *Handler) Shutdown() {}
