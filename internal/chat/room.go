package chat

import (
	"sort"
	"sync"
)

// Room is the directory of joined users and the broadcast fan-out point.
//
// Every read and mutation happens under mu. Mailbox deliveries are in-memory
// queue appends and happen inside the same critical section, so all mailboxes
// receive broadcasts in the same order. No socket I/O is done while mu is held.
type Room struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]*User
	shutdown bool
}

// NewRoom constructs an empty chat room.
func NewRoom() *Room {
	return &Room{
		nextID: 1,
		users:  make(map[uint64]*User),
	}
}

// Join registers name under a fresh id and announces it to every member,
// the new user included. roster lists the names that were present before the
// join, ordered by id. The user's mailbox exists before the announcement so it
// cannot miss it.
func (r *Room) Join(name string) (user *User, roster []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster = r.rosterLocked()

	user = newUser(r.nextID, name)
	r.nextID++
	r.users[user.ID] = user

	r.broadcastLocked(JoinEvent(user.ID, name))
	if r.shutdown {
		user.deliver(ShutdownEvent())
	}

	return user, roster
}

// Leave announces id's departure to every member, itself included, then
// removes it and closes its mailbox. It reports false when id is not joined,
// which makes repeated calls harmless.
func (r *Room) Leave(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return false
	}

	r.broadcastLocked(LeaveEvent(id, user.Name))
	delete(r.users, id)
	user.closeMailbox()

	return true
}

// Broadcast delivers ev to every current member.
func (r *Room) Broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcastLocked(ev)
}

// Shutdown tells every writer to stop. Users joining afterwards receive the
// same event right after their own join.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shutdown = true
	r.broadcastLocked(ShutdownEvent())
}

// Name returns the display name of id. A miss is not an error: ids race out
// of the directory when users leave.
func (r *Room) Name(id uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return "", false
	}
	return user.Name, true
}

// Roster returns the names of all joined users ordered by id.
func (r *Room) Roster() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rosterLocked()
}

// Len returns the number of joined users.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users)
}

func (r *Room) rosterLocked() []string {
	users := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return names
}

func (r *Room) broadcastLocked(ev Event) {
	for _, u := range r.users {
		u.deliver(ev)
	}
}
