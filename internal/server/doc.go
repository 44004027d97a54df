// Package server implements the chat server: the TCP accept loop and its
// start/stop/join lifecycle, the per-connection client actor, and an HTTP
// gateway that carries the same line protocol over WebSocket.
//
// Each connection is served by two goroutines. A reader blocks on the
// transport and forwards lines into the client's mailbox; the processing
// goroutine consumes the mailbox one event at a time and is the only code
// that touches the client's state or writes to its transport.
package server
