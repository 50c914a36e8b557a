package chat

// EventKind tags a room Event.
type EventKind uint8

const (
	EventJoin EventKind = iota + 1
	EventLeave
	EventMessage
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventMessage:
		return "message"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Event is an immutable room announcement copied into every mailbox it is
// delivered to. Name is the display name of UserID; it is unset for Shutdown.
type Event struct {
	Kind   EventKind
	UserID uint64
	Name   string
	Text   string
}

// JoinEvent announces that id entered the room.
func JoinEvent(id uint64, name string) Event {
	return Event{Kind: EventJoin, UserID: id, Name: name}
}

// LeaveEvent announces that id left the room.
func LeaveEvent(id uint64, name string) Event {
	return Event{Kind: EventLeave, UserID: id, Name: name}
}

// MessageEvent carries a chat line written by id.
func MessageEvent(id uint64, name, text string) Event {
	return Event{Kind: EventMessage, UserID: id, Name: name, Text: text}
}

// ShutdownEvent tells every writer to stop.
func ShutdownEvent() Event {
	return Event{Kind: EventShutdown}
}
