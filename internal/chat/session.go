package chat

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"unicode"

	"github.com/ledzpl/protosrv/internal/linebuf"
)

const readChunk = 512

// session is the state machine of one chat connection: Unnamed until the
// first complete line, Named once joined, Closed when run returns.
type session struct {
	id     uint32
	room   *Room
	conn   net.Conn
	lane   Lane
	logger *log.Logger

	lines *linebuf.Buffer
	out   *sessionWriter
	ui    *wireUI

	user    *User
	writers sync.WaitGroup
}

func newSession(h *Handler, conn net.Conn, id uint32) *session {
	out := newSessionWriter(conn)
	return &session{
		id:     id,
		room:   h.room,
		conn:   conn,
		lane:   h.lane,
		logger: h.logger,
		lines:  linebuf.New(h.maxLine),
		out:    out,
		ui:     newWireUI(out),
	}
}

func (s *session) run() error {
	defer s.close()

	if err := s.ui.Greet(); err != nil {
		return fmt.Errorf("chat: (%d) send greeting: %w", s.id, err)
	}

	return s.readLoop()
}

func (s *session) readLoop() error {
	buf := make([]byte, readChunk)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			lines, lineErr := s.lines.Append(buf[:n])
			for _, line := range lines {
				closed, err := s.handleLine(line)
				if err != nil {
					return err
				}
				if closed {
					return nil
				}
			}
			if lineErr != nil {
				return fmt.Errorf("chat: (%d) %w", s.id, lineErr)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("chat: (%d) read: %w", s.id, err)
		}
	}
}

// handleLine advances the state machine by one line and reports whether the
// connection reached Closed.
func (s *session) handleLine(line string) (closed bool, err error) {
	if s.user == nil {
		return s.handleName(line)
	}

	s.handleChat(line)
	return false, nil
}

func (s *session) handleName(line string) (bool, error) {
	name := strings.TrimSpace(line)
	if !ValidName(name) {
		s.logger.Printf("chat: (%d) rejected name %q", s.id, name)
		if err := s.ui.RejectName(); err != nil {
			return true, fmt.Errorf("chat: (%d) send rejection: %w", s.id, err)
		}
		return true, nil
	}

	user, roster := s.room.Join(name)
	s.user = user
	s.logger.Printf("chat: (%d) joined %s as user %d, room: %s", s.id, name, user.ID, strings.Join(roster, ", "))

	if err := s.ui.Roster(roster); err != nil {
		return true, fmt.Errorf("chat: (%d) send roster: %w", s.id, err)
	}

	s.startWriter(user)
	return false, nil
}

func (s *session) handleChat(line string) {
	// lines starting with '*' would look like system announcements
	if strings.HasPrefix(line, "*") {
		return
	}
	s.room.Broadcast(MessageEvent(s.user.ID, s.user.Name, line))
}

func (s *session) startWriter(user *User) {
	s.writers.Add(1)
	task := func() {
		defer s.writers.Done()
		s.writeLoop(user)
	}

	if err := s.lane(task); err != nil {
		s.logger.Printf("chat: (%d) writer lane unavailable, using a goroutine: %v", s.id, err)
		go task()
	}
}

// writeLoop drains user's mailbox onto the connection until the user's own
// leave, a shutdown, or a failed write.
func (s *session) writeLoop(user *User) {
	for {
		ev, ok := user.Next()
		if !ok {
			return
		}

		line, stop := render(user.ID, ev)
		if stop {
			return
		}
		if line == "" {
			continue
		}

		if err := s.out.writeString(line); err != nil {
			s.logger.Printf("chat: (%d) write to %s failed: %v", s.id, user.Name, err)
			return
		}
	}
}

// close leaves the room if joined, waits for the writer and half-closes the
// read side.
func (s *session) close() {
	if s.user != nil && s.room.Leave(s.user.ID) {
		s.logger.Printf("chat: (%d) %s left (user %d)", s.id, s.user.Name, s.user.ID)
	}

	s.writers.Wait()

	if cr, ok := s.conn.(interface{ CloseRead() error }); ok {
		_ = cr.CloseRead()
	}
}

// ValidName reports whether name is non-empty and entirely letters or digits.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

type sessionWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSessionWriter(w io.Writer) *sessionWriter {
	return &sessionWriter{w: w}
}

func (w *sessionWriter) writeString(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := io.WriteString(w.w, s)
	return err
}
