package chat

import (
	"fmt"
	"strings"
)

const (
	greetingLine   = "Welcome to budgetchat! What shall I call you?\n"
	rejectNameLine = "Name must be provided and must be alphanumeric\n"
	rosterPrefix   = "* The room contains: "
)

// wireUI writes the protocol's fixed lines to one connection.
type wireUI struct {
	writer *sessionWriter
}

func newWireUI(writer *sessionWriter) *wireUI {
	return &wireUI{writer: writer}
}

func (ui *wireUI) Greet() error {
	return ui.writer.writeString(greetingLine)
}

func (ui *wireUI) RejectName() error {
	return ui.writer.writeString(rejectNameLine)
}

func (ui *wireUI) Roster(names []string) error {
	return ui.writer.writeString(rosterPrefix + strings.Join(names, ", ") + "\n")
}

// render turns ev into the line shown to user self. An empty line means the
// event is not shown; stop means the writer must terminate.
func render(self uint64, ev Event) (line string, stop bool) {
	switch ev.Kind {
	case EventJoin:
		if ev.UserID == self {
			return "", false
		}
		return fmt.Sprintf("* %s has entered the room\n", ev.Name), false
	case EventLeave:
		if ev.UserID == self {
			return "", true
		}
		return fmt.Sprintf("* %s has left the room\n", ev.Name), false
	case EventMessage:
		if ev.UserID == self {
			return "", false
		}
		return fmt.Sprintf("[%s] %s\n", ev.Name, ev.Text), false
	case EventShutdown:
		return "", true
	default:
		return "", false
	}
}
