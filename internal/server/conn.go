// Package server adapts raw TCP connections to the line-oriented transport
// used by client actors.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// LineConn is a bidirectional stream of text lines. ReadLine is only called
// by a client's reader goroutine and WriteLine only by its processing
// goroutine; Close may be called from either and must unblock ReadLine.
type LineConn interface {
	// ReadLine returns the next line without its terminator. It returns
	// io.EOF when the peer closed the stream.
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// ErrLineTooLong is returned by ReadLine when a peer sends a line longer than
// the configured maximum.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// tcpLineConn frames a net.Conn as newline-terminated UTF-8 lines.
type tcpLineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	writeTimeout time.Duration
}

func newTCPLineConn(conn net.Conn, maxLineLength int, writeTimeout time.Duration) *tcpLineConn {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	// room for the terminator, which ScanLines strips along with a trailing \r
	maxToken := maxLineLength + 2
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(maxToken, 4096)), maxToken)

	return &tcpLineConn{
		conn:         conn,
		scanner:      scanner,
		writeTimeout: writeTimeout,
	}
}

func (c *tcpLineConn) ReadLine() (string, error) {
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}

	err := c.scanner.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", ErrLineTooLong
	default:
		return "", err
	}
}

func (c *tcpLineConn) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return err
	}
	return nil
}

func (c *tcpLineConn) Close() error {
	return c.conn.Close()
}

func (c *tcpLineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
