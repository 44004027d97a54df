// Package testhelpers provides line-protocol clients shared by the server
// tests.
//
// LineClient speaks the protocol over TCP and WSClient over WebSocket. Both
// read with a deadline so a missing reply fails the test instead of hanging
// it.
package testhelpers

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ReadTimeout bounds every read performed by the helpers.
const ReadTimeout = 5 * time.Second

// LineClient is a TCP client for the line protocol.
type LineClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects a LineClient to addr.
func Dial(addr string) (*LineClient, error) {
	conn, err := net.DialTimeout("tcp", addr, ReadTimeout)
	if err != nil {
		return nil, err
	}
	return &LineClient{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// WriteLine sends one line.
func (c *LineClient) WriteLine(line string) error {
	_, err := fmt.Fprintf(c.conn, "%s\n", line)
	return err
}

// ReadLine reads one line without its terminator.
func (c *LineClient) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return "", err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// EnterRoom sends /enter and returns an error unless the reply is [OK].
func (c *LineClient) EnterRoom(name string) error {
	return c.command("/enter " + name)
}

// LeaveRoom sends /leave and returns an error unless the reply is [OK].
func (c *LineClient) LeaveRoom() error {
	return c.command("/leave")
}

// Exit sends /exit and returns an error unless the reply is [OK].
func (c *LineClient) Exit() error {
	return c.command("/exit")
}

func (c *LineClient) command(line string) error {
	if err := c.WriteLine(line); err != nil {
		return err
	}
	return expectOK(c.ReadLine())
}

// ExpectClosed succeeds if the server closed the stream.
func (c *LineClient) ExpectClosed() error {
	if line, err := c.ReadLine(); err == nil {
		return fmt.Errorf("expected closed stream, read %q", line)
	} else if isTimeout(err) {
		return fmt.Errorf("stream still open: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *LineClient) Close() error {
	return c.conn.Close()
}

// WSClient is a WebSocket client for the line protocol.
type WSClient struct {
	conn *websocket.Conn
}

// DialWebSocket connects to a gateway URL such as ws://host/ws.
func DialWebSocket(url string) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: ReadTimeout}

	conn, resp, err := dialer.Dial(url, http.Header{})
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &WSClient{conn: conn}, nil
}

// WriteLine sends one line as a text frame.
func (c *WSClient) WriteLine(line string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// ReadLine reads one text frame.
func (c *WSClient) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return "", err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EnterRoom sends /enter and returns an error unless the reply is [OK].
func (c *WSClient) EnterRoom(name string) error {
	if err := c.WriteLine("/enter " + name); err != nil {
		return err
	}
	return expectOK(c.ReadLine())
}

// Close closes the connection without a close handshake.
func (c *WSClient) Close() error {
	return c.conn.Close()
}

func expectOK(reply string, err error) error {
	if err != nil {
		return err
	}
	if reply != "[OK]" {
		return fmt.Errorf("expected [OK], got %q", reply)
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
