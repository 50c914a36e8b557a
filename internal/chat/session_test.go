package chat

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ledzpl/protosrv/internal/pool"
)

const ioTimeout = 2 * time.Second

func TestSessionRosterAndJoinAnnouncements(t *testing.T) {
	addr, _ := startChat(t)

	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	require.Equal(t, "* bob has entered the room", alice.readLine())

	carol := join(t, addr, "carol", "alice, bob")
	require.Equal(t, "* carol has entered the room", alice.readLine())
	require.Equal(t, "* carol has entered the room", bob.readLine())

	carol.expectSilence()
}

func TestSessionRelaysMessagesToOthersOnly(t *testing.T) {
	addr, _ := startChat(t)

	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	require.Equal(t, "* bob has entered the room", alice.readLine())

	alice.send("hello bob\n")
	require.Equal(t, "[alice] hello bob", bob.readLine())
	alice.expectSilence()
}

func TestSessionRejectsInvalidNames(t *testing.T) {
	addr, _ := startChat(t)
	alice := join(t, addr, "alice", "")

	for _, name := range []string{"", "bob!", "a b", "*star"} {
		c := dial(t, addr)
		require.Equal(t, strings.TrimSuffix(greetingLine, "\n"), c.readLine())
		c.send(name + "\n")
		require.Equal(t, strings.TrimSuffix(rejectNameLine, "\n"), c.readLine())
		c.expectEOF()
	}

	alice.expectSilence()
}

func TestSessionNameAndMessageInOneRead(t *testing.T) {
	addr, _ := startChat(t)
	alice := join(t, addr, "alice", "")

	dave := dial(t, addr)
	dave.readLine()
	dave.send("dave\nfirst words\n")
	require.Equal(t, "* The room contains: alice", dave.readLine())

	require.Equal(t, "* dave has entered the room", alice.readLine())
	require.Equal(t, "[dave] first words", alice.readLine())
}

func TestSessionPartialLinesAreJoined(t *testing.T) {
	addr, _ := startChat(t)
	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	alice.readLine()

	bob.send("hel")
	time.Sleep(20 * time.Millisecond)
	bob.send("lo\n")
	require.Equal(t, "[bob] hello", alice.readLine())
}

func TestSessionDropsStarLines(t *testing.T) {
	addr, _ := startChat(t)
	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	alice.readLine()

	bob.send("*oops\n")
	alice.expectSilence()
}

func TestSessionPreservesMessageOrder(t *testing.T) {
	addr, _ := startChat(t)
	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	alice.readLine()

	bob.send("one\n")
	bob.send("two\nthree\n")

	require.Equal(t, "[bob] one", alice.readLine())
	require.Equal(t, "[bob] two", alice.readLine())
	require.Equal(t, "[bob] three", alice.readLine())
}

func TestSessionAnnouncesLeaveExactlyOnce(t *testing.T) {
	addr, room := startChat(t)
	watcher := join(t, addr, "watcher", "")

	names := []string{"a1", "b2", "c3", "d4"}
	clients := make([]*testClient, len(names))
	for i, name := range names {
		clients[i] = join(t, addr, name, strings.Join(append([]string{"watcher"}, names[:i]...), ", "))
		require.Equal(t, "* "+name+" has entered the room", watcher.readLine())
		for _, earlier := range clients[:i] {
			require.Equal(t, "* "+name+" has entered the room", earlier.readLine())
		}
	}

	var g errgroup.Group
	for _, c := range clients {
		c := c
		g.Go(c.conn.Close)
	}
	require.NoError(t, g.Wait())

	var left []string
	for range names {
		line := watcher.readLine()
		require.True(t, strings.HasSuffix(line, " has left the room"), line)
		left = append(left, strings.TrimSuffix(strings.TrimPrefix(line, "* "), " has left the room"))
	}
	sort.Strings(left)
	require.Equal(t, names, left)

	watcher.expectSilence()
	require.Eventually(t, func() bool { return room.Len() == 1 }, ioTimeout, 10*time.Millisecond)
}

func TestSessionClosesOnOversizedLine(t *testing.T) {
	addr, _ := startChat(t, WithMaxLineLength(16))
	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	alice.readLine()

	bob.send(strings.Repeat("x", 32))
	require.Equal(t, "* bob has left the room", alice.readLine())
	bob.expectEOF()
}

func TestSessionShutdownStopsWriters(t *testing.T) {
	addr, room := startChat(t)
	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	alice.readLine()

	room.Shutdown()

	bob.send("anyone there?\n")
	alice.expectSilence()
}

func TestSessionWritersOnPoolLane(t *testing.T) {
	p, err := pool.New(4, pool.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(p.Close)

	addr, _ := startChat(t, WithLane(func(task func()) error { return p.Submit(task) }))

	alice := join(t, addr, "alice", "")
	bob := join(t, addr, "bob", "alice")
	require.Equal(t, "* bob has entered the room", alice.readLine())

	bob.send("via pool\n")
	require.Equal(t, "[bob] via pool", alice.readLine())

	require.NoError(t, bob.conn.Close())
	require.Equal(t, "* bob has left the room", alice.readLine())
}

// startChat serves a chat handler on a loopback listener, one goroutine per
// connection.
func startChat(t *testing.T, opts ...Option) (string, *Room) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := NewHandler(append([]Option{WithLogger(quietLogger())}, opts...)...)

	var ids atomic.Uint32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = h.Handle(conn, ids.Add(1))
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })

	return ln.Addr().String(), h.Room()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, ioTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

// join connects, names itself and checks the roster it is given.
func join(t *testing.T, addr, name, roster string) *testClient {
	t.Helper()

	c := dial(t, addr)
	require.Equal(t, "Welcome to budgetchat! What shall I call you?", c.readLine())
	c.send(name + "\n")
	require.Equal(t, "* The room contains: "+roster, c.readLine())
	return c
}

func (c *testClient) send(s string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, s)
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimSuffix(line, "\n")
}

func (c *testClient) expectSilence() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	line, err := c.r.ReadString('\n')
	var netErr net.Error
	require.True(c.t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected line %q (err %v)", line, err)
}

func (c *testClient) expectEOF() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	_, err := c.r.ReadString('\n')
	require.ErrorIs(c.t, err, io.EOF)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
