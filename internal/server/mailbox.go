// Package server provides the unbounded mailbox that serializes every event
// handled by a client actor.
package server

import "sync"

// mailbox is an unbounded FIFO queue with many producers and one consumer.
// put never blocks, so a slow consumer cannot stall a producer holding a
// room lock.
type mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	ready  chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{ready: make(chan struct{}, 1)}
}

// put appends v and reports whether it was accepted. A closed mailbox
// drops v.
func (m *mailbox[T]) put(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// take blocks until an item is available and removes it. Only the consumer
// calls take, and it must not call it after close.
func (m *mailbox[T]) take() T {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			v := m.queue[0]
			var zero T
			m.queue[0] = zero
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return v
		}
		m.mu.Unlock()
		<-m.ready
	}
}

// close rejects further puts and returns whatever was still queued.
func (m *mailbox[T]) close() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	rest := m.queue
	m.queue = nil
	return rest
}

// size returns the number of queued items.
func (m *mailbox[T]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
