// Package linebuf splits a byte stream into newline-terminated lines.
package linebuf

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength bounds a buffered line when none is configured.
const DefaultMaxLength = 4096

// ErrLineTooLong reports a line that grew past the configured maximum before
// its terminator arrived.
var ErrLineTooLong = errors.New("linebuf: line exceeds maximum length")

// Buffer holds a partial trailing line between reads. It is not safe for
// concurrent use; each connection owns one.
type Buffer struct {
	data []byte
	max  int
}

// New creates a Buffer that rejects lines longer than max bytes, excluding
// the terminator.
func New(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxLength
	}
	return &Buffer{
		data: make([]byte, 0, 128),
		max:  max,
	}
}

// Append adds p to the buffer and returns every line it completed, in order,
// without terminators. A trailing "\r" is dropped and invalid UTF-8 is
// replaced with U+FFFD. Lines completed before an oversized remainder are
// still returned alongside ErrLineTooLong.
func (b *Buffer) Append(p []byte) ([]string, error) {
	b.data = append(b.data, p...)

	var lines []string
	for {
		i := bytes.IndexByte(b.data, '\n')
		if i < 0 {
			break
		}
		if i > b.max {
			return lines, ErrLineTooLong
		}
		lines = append(lines, decode(b.data[:i]))
		b.data = b.data[i+1:]
	}

	if len(b.data) > b.max {
		return lines, ErrLineTooLong
	}

	// compact so the backing array does not grow with consumed lines
	if len(b.data) == 0 {
		b.data = b.data[:0:cap(b.data)]
	} else if cap(b.data) > 4*b.max {
		b.data = append([]byte(nil), b.data...)
	}

	return lines, nil
}

// Pending returns the number of buffered bytes not yet terminated.
func (b *Buffer) Pending() int {
	return len(b.data)
}

// Drain returns the unterminated remainder and empties the buffer.
func (b *Buffer) Drain() string {
	text := decode(b.data)
	b.data = b.data[:0]
	return text
}

// Reset discards any buffered bytes.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

func decode(line []byte) string {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if utf8.Valid(line) {
		return string(line)
	}
	return strings.ToValidUTF8(string(line), "�")
}
