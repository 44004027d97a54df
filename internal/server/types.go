// Package server defines the events exchanged through a client mailbox and
// utility helpers that are reused across client and server logic.
package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/Tyrowin/linechat/internal/room"
)

// event is one unit of work for a client actor. The set of implementations
// is closed.
type event interface {
	event()
}

// roomMessage is a broadcast relayed by a room the client is in.
type roomMessage struct {
	text string
	from *room.Room
}

// remoteLine is a line read from the client's transport.
type remoteLine struct {
	text string
}

// remoteInputEnded signals that the transport reached EOF or failed.
type remoteInputEnded struct{}

// serverShutdown instructs the client to disconnect because the server is
// stopping.
type serverShutdown struct{}

func (roomMessage) event()      {}
func (remoteLine) event()       {}
func (remoteInputEnded) event() {}
func (serverShutdown) event()   {}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
