package protocol

import "fmt"

// OK acknowledges an accepted command.
const OK = "[OK]"

// Reasons carried by Invalid commands and error replies.
const (
	ReasonUnknownCommand = "Unknown command"
	ReasonEnterArity     = "/enter command requires exactly one argument"
	ReasonLeaveArity     = "/leave command does not have arguments"
	ReasonExitArity      = "/exit command does not have arguments"

	ReasonNeedRoom      = "Need to be inside a room to post a message"
	ReasonNoRoomToLeave = "There is no room to leave from"
	ReasonServerExiting = "Server is exiting"
	ReasonServerFull    = "Server is full"
	ReasonUnprocessable = "unable to process line"
)

// FormatError renders an error reply line.
func FormatError(reason string) string {
	return fmt.Sprintf("[Error: %s]", reason)
}

// FormatRoomMessage renders the line relayed to the other members of a room.
func FormatRoomMessage(room, sender, text string) string {
	return fmt.Sprintf("[%s]%s says '%s'", room, sender, text)
}
