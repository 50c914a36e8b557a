package chat

import "github.com/ledzpl/protosrv/internal/queue"

// User represents a named participant in the chat room.
type User struct {
	ID   uint64
	Name string

	mailbox *queue.Queue[Event]
}

func newUser(id uint64, name string) *User {
	return &User{
		ID:      id,
		Name:    name,
		mailbox: queue.New[Event](),
	}
}

// Next blocks for the next event addressed to the user. ok is false once the
// user has been removed from the room and every queued event was consumed.
func (u *User) Next() (ev Event, ok bool) {
	return u.mailbox.Pop()
}

// deliver queues ev without blocking. Delivery to a closed mailbox is a no-op.
func (u *User) deliver(ev Event) {
	u.mailbox.Push(ev)
}

func (u *User) closeMailbox() {
	u.mailbox.Close()
}
