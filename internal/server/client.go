// Package server manages individual chat clients: the reader goroutine, the
// mailbox-processing goroutine and the lifecycle that ties them together.
package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Tyrowin/linechat/internal/protocol"
	"github.com/Tyrowin/linechat/internal/room"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the actor serving one connection. Its state is only touched by
// its processing goroutine; other goroutines reach it through the mailbox.
type Client struct {
	name    string
	session uuid.UUID
	conn    LineConn
	rooms   *room.Registry
	logger  *zap.SugaredLogger

	mailbox *mailbox[event]
	exiting atomic.Bool

	// current is owned by the processing goroutine.
	current *room.Room

	readerDone chan struct{}
	done       chan struct{}
	onStop     func(*Client)
}

func newClient(name string, conn LineConn, rooms *room.Registry, logger *zap.Logger, onStop func(*Client)) *Client {
	session := uuid.New()
	return &Client{
		name:    name,
		session: session,
		conn:    conn,
		rooms:   rooms,
		logger: logger.Named("client").Sugar().With(
			"client", name,
			"session", session.String(),
			"remote", conn.RemoteAddr(),
		),
		mailbox:    newMailbox[event](),
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
		onStop:     onStop,
	}
}

// start launches the processing goroutine, which in turn starts the reader.
func (c *Client) start() {
	go c.run()
}

// Name returns the display name assigned when the connection was accepted.
func (c *Client) Name() string {
	return c.name
}

// PostRoomMessage queues a broadcast from the given room. It never blocks and
// is a no-op once the client has stopped.
func (c *Client) PostRoomMessage(text string, from *room.Room) {
	c.mailbox.put(roomMessage{text: text, from: from})
}

// RequestExit asks the client to disconnect with a server-shutdown notice.
// Events already queued are handled first.
func (c *Client) RequestExit() {
	c.mailbox.put(serverShutdown{})
}

// AwaitTermination blocks until both goroutines of the client have stopped
// and its transport is closed.
func (c *Client) AwaitTermination() {
	<-c.done
}

// Done is closed once the client has fully stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) run() {
	defer c.stop()

	c.logger.Info("client started")
	go c.readLoop()

	for !c.exiting.Load() {
		c.handle(c.mailbox.take())
	}
}

// handle processes a single event. A panic or error ends the client without
// affecting anyone else.
func (c *Client) handle(ev event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("unexpected panic while handling event, ending connection",
				"event", fmt.Sprintf("%T", ev), "panic", r)
			c.exiting.Store(true)
		}
	}()

	var err error
	switch ev := ev.(type) {
	case roomMessage:
		err = c.deliver(ev)
	case remoteLine:
		err = c.execute(ev.text)
	case remoteInputEnded:
		c.leaveCurrentRoom()
		c.exiting.Store(true)
	case serverShutdown:
		c.serverExit()
	default:
		c.logger.Warnw("unknown event, ignoring it", "event", fmt.Sprintf("%T", ev))
	}

	if err != nil {
		if isExpectedCloseError(err) {
			c.logger.Infow("connection closed while writing", "error", err)
		} else {
			c.logger.Warnw("error while handling event, ending connection", "error", err)
		}
		c.exiting.Store(true)
	}
}

// deliver writes a room broadcast. Messages from a room the client has since
// left are dropped.
func (c *Client) deliver(msg roomMessage) error {
	if msg.from != c.current {
		c.logger.Debugw("dropping message from a room already left", "room", msg.from.Name())
		return nil
	}
	return c.conn.WriteLine(msg.text)
}

func (c *Client) execute(line string) error {
	switch cmd := protocol.Parse(line).(type) {
	case protocol.Message:
		return c.postMessage(cmd.Text)
	case protocol.EnterRoom:
		return c.enterRoom(cmd.Name)
	case protocol.LeaveRoom:
		return c.leaveRoom()
	case protocol.Exit:
		return c.clientExit()
	case protocol.Invalid:
		return c.writeError(cmd.Reason)
	default:
		return c.writeError(protocol.ReasonUnprocessable)
	}
}

func (c *Client) postMessage(text string) error {
	if c.current == nil {
		return c.writeError(protocol.ReasonNeedRoom)
	}
	delivered := c.current.Post(c, text)
	c.logger.Debugw("message posted", "room", c.current.Name(), "recipients", delivered)
	return nil
}

func (c *Client) enterRoom(name string) error {
	c.leaveCurrentRoom()

	r := c.rooms.GetOrCreate(name)
	r.Enter(c)
	c.current = r
	c.logger.Infow("entered room", "room", name)
	return c.writeOK()
}

func (c *Client) leaveRoom() error {
	if c.current == nil {
		return c.writeError(protocol.ReasonNoRoomToLeave)
	}
	c.leaveCurrentRoom()
	return c.writeOK()
}

func (c *Client) clientExit() error {
	c.leaveCurrentRoom()
	c.exiting.Store(true)
	return c.writeOK()
}

// serverExit notifies the peer on a best-effort basis; the socket may
// already be unusable.
func (c *Client) serverExit() {
	c.leaveCurrentRoom()
	c.exiting.Store(true)
	if err := c.writeError(protocol.ReasonServerExiting); err != nil && !isExpectedCloseError(err) {
		c.logger.Debugw("could not deliver shutdown notice", "error", err)
	}
}

func (c *Client) leaveCurrentRoom() {
	if c.current == nil {
		return
	}
	c.current.Leave(c)
	c.logger.Infow("left room", "room", c.current.Name())
	c.current = nil
}

func (c *Client) writeOK() error {
	return c.conn.WriteLine(protocol.OK)
}

func (c *Client) writeError(reason string) error {
	return c.conn.WriteLine(protocol.FormatError(reason))
}

// readLoop forwards lines into the mailbox until the stream ends or the
// client starts exiting. It reports the end of input exactly once.
func (c *Client) readLoop() {
	defer close(c.readerDone)

	for !c.exiting.Load() {
		line, err := c.conn.ReadLine()
		if err != nil {
			c.logReadError(err)
			break
		}
		if !c.mailbox.put(remoteLine{text: line}) {
			break
		}
	}

	if !c.exiting.Load() {
		c.mailbox.put(remoteInputEnded{})
	}
	c.logger.Debug("read loop exiting")
}

func (c *Client) logReadError(err error) {
	switch {
	case c.exiting.Load():
		// the processing goroutine closed the transport
	case errors.Is(err, ErrLineTooLong):
		c.logger.Warnw("line exceeded maximum length, closing connection", "error", err)
	case isExpectedCloseError(err):
		c.logger.Infow("remote input ended", "error", err)
	default:
		c.logger.Warnw("error while reading from connection", "error", err)
	}
}

// stop releases everything the client holds. It runs on the processing
// goroutine once the loop has ended.
func (c *Client) stop() {
	c.exiting.Store(true)
	c.leaveCurrentRoom()

	if dropped := c.mailbox.close(); len(dropped) > 0 {
		c.logger.Debugw("discarding events queued after exit", "count", len(dropped))
	}

	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warnw("error closing connection", "error", err)
	}
	<-c.readerDone

	if c.onStop != nil {
		c.onStop(c)
	}
	c.logger.Info("client stopped")
	close(c.done)
}
