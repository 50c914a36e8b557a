package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomJoinReturnsRosterAndAnnounces(t *testing.T) {
	room := NewRoom()

	alice, roster := room.Join("alice")
	require.Empty(t, roster)
	require.Equal(t, uint64(1), alice.ID)
	require.Equal(t, []Event{JoinEvent(alice.ID, "alice")}, drain(alice))

	bob, roster := room.Join("bob")
	require.Equal(t, []string{"alice"}, roster)
	require.Equal(t, []Event{JoinEvent(bob.ID, "bob")}, drain(alice))
	require.Equal(t, []Event{JoinEvent(bob.ID, "bob")}, drain(bob), "the joiner sees its own join")

	require.Equal(t, []string{"alice", "bob"}, room.Roster())
	require.Equal(t, 2, room.Len())
}

func TestRoomLeaveIsIdempotent(t *testing.T) {
	room := NewRoom()
	alice, _ := room.Join("alice")
	bob, _ := room.Join("bob")
	drain(alice)
	drain(bob)

	require.True(t, room.Leave(bob.ID))
	require.False(t, room.Leave(bob.ID))

	require.Equal(t, []Event{LeaveEvent(bob.ID, "bob")}, drain(alice))

	ev, ok := bob.Next()
	require.True(t, ok)
	require.Equal(t, LeaveEvent(bob.ID, "bob"), ev)
	_, ok = bob.Next()
	require.False(t, ok, "mailbox should be closed after leaving")

	_, found := room.Name(bob.ID)
	require.False(t, found)
	require.Equal(t, []string{"alice"}, room.Roster())
}

func TestRoomIDsAreNeverReused(t *testing.T) {
	room := NewRoom()
	first, _ := room.Join("first")
	room.Leave(first.ID)

	second, _ := room.Join("second")
	require.Greater(t, second.ID, first.ID)
}

func TestRoomBroadcastOrderIsSharedByAllMailboxes(t *testing.T) {
	room := NewRoom()
	alice, _ := room.Join("alice")
	bob, _ := room.Join("bob")
	drain(alice)
	drain(bob)

	var wg sync.WaitGroup
	for _, u := range []*User{alice, bob} {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				room.Broadcast(MessageEvent(u.ID, u.Name, "x"))
			}
		}()
	}
	wg.Wait()

	a := drain(alice)
	b := drain(bob)
	require.Len(t, a, 100)
	require.Equal(t, a, b)
}

func TestRoomShutdownReachesLateJoiners(t *testing.T) {
	room := NewRoom()
	alice, _ := room.Join("alice")
	drain(alice)

	room.Shutdown()
	require.Equal(t, []Event{ShutdownEvent()}, drain(alice))

	bob, _ := room.Join("bob")
	require.Equal(t, []Event{JoinEvent(bob.ID, "bob"), ShutdownEvent()}, drain(bob))
}

func TestRoomNameLookup(t *testing.T) {
	room := NewRoom()
	carol, _ := room.Join("carol")

	name, ok := room.Name(carol.ID)
	require.True(t, ok)
	require.Equal(t, "carol", name)

	_, ok = room.Name(42)
	require.False(t, ok)
}

func drain(u *User) []Event {
	var events []Event
	for u.mailbox.Len() > 0 {
		ev, ok := u.Next()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return events
}
