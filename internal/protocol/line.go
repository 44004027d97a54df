// Package protocol parses the lines sent by chat clients into commands and
// formats the lines the server sends back.
package protocol

import "strings"

// Command is a parsed client line. The set of implementations is closed:
// Message, EnterRoom, LeaveRoom, Exit and Invalid.
type Command interface {
	command()
}

// Message is a plain line to be posted to the client's current room.
type Message struct {
	Text string
}

// EnterRoom asks to move the client into the named room.
type EnterRoom struct {
	Name string
}

// LeaveRoom asks to leave the current room.
type LeaveRoom struct{}

// Exit asks the server to close the connection.
type Exit struct{}

// Invalid is a line starting with '/' that is not a well-formed command.
type Invalid struct {
	Reason string
}

func (Message) command()   {}
func (EnterRoom) command() {}
func (LeaveRoom) command() {}
func (Exit) command()      {}
func (Invalid) command()   {}

const (
	cmdEnter = "/enter"
	cmdLeave = "/leave"
	cmdExit  = "/exit"
)

// Parse turns one line (without its terminator) into a Command. It never
// fails: malformed commands are returned as Invalid.
func Parse(line string) Command {
	if !strings.HasPrefix(line, "/") {
		return Message{Text: line}
	}

	// line starts with '/', so parts is never empty
	parts := strings.Fields(line)
	switch parts[0] {
	case cmdEnter:
		if len(parts) != 2 {
			return Invalid{Reason: ReasonEnterArity}
		}
		return EnterRoom{Name: parts[1]}
	case cmdLeave:
		if len(parts) != 1 {
			return Invalid{Reason: ReasonLeaveArity}
		}
		return LeaveRoom{}
	case cmdExit:
		if len(parts) != 1 {
			return Invalid{Reason: ReasonExitArity}
		}
		return Exit{}
	default:
		return Invalid{Reason: ReasonUnknownCommand}
	}
}
