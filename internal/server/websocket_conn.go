// Package server adapts WebSocket connections to the line-oriented transport
// used by client actors.
package server

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsLineConn carries lines over WebSocket text frames. An inbound frame may
// hold several newline-separated lines; every outbound line is one frame.
type wsLineConn struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration
	pending      []string

	closeOnce sync.Once
	closeErr  error
}

func newWSLineConn(conn *websocket.Conn, addr string, maxLineLength int, writeTimeout time.Duration) *wsLineConn {
	conn.SetReadLimit(int64(maxLineLength))
	return &wsLineConn{
		conn:         conn,
		addr:         addr,
		writeTimeout: writeTimeout,
	}
}

func (c *wsLineConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", c.translateReadError(err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.pending = splitLines(string(data))
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsLineConn) translateReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		return ErrLineTooLong
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}

func (c *wsLineConn) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a close frame on a best-effort basis and closes the socket,
// which unblocks a pending ReadLine.
func (c *wsLineConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
			c.closeErr = err
		}
		if err := c.conn.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *wsLineConn) RemoteAddr() string {
	return c.addr
}

// splitLines breaks a frame into lines, accepting \n or \r\n terminators.
// A trailing terminator does not produce an extra empty line.
func splitLines(frame string) []string {
	frame = strings.TrimSuffix(frame, "\n")
	lines := strings.Split(frame, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
