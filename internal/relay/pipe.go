package relay

import (
	"encoding/json"
	"io"
	"sync"
)

// Pipe returns two connected in-memory Conns. Documents written to one side
// are parsed and delivered to the other. Closing either side fails pending
// and subsequent operations on both with io.ErrClosedPipe.
//
// Pipe carries real JSON round-trips, so it exercises the same encoding path
// as an inter-process relay.
func Pipe() (Conn, Conn) {
	a := &pipeConn{in: make(chan map[string]any, 16), done: make(chan struct{})}
	b := &pipeConn{in: make(chan map[string]any, 16), done: make(chan struct{})}
	a.peer, b.peer = b, a

	return a, b
}

type pipeConn struct {
	peer *pipeConn
	in   chan map[string]any

	closeOnce sync.Once
	done      chan struct{}
}

func (c *pipeConn) ReadMessage() (map[string]any, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return nil, io.ErrClosedPipe
	case <-c.peer.done:
		return nil, io.ErrClosedPipe
	}
}

func (c *pipeConn) WriteMessage(data []byte) error {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	// Never enqueue after either side closed, even if buffer space remains.
	select {
	case <-c.done:
		return io.ErrClosedPipe
	case <-c.peer.done:
		return io.ErrClosedPipe
	default:
	}

	select {
	case c.peer.in <- msg:
		return nil
	case <-c.done:
		return io.ErrClosedPipe
	case <-c.peer.done:
		return io.ErrClosedPipe
	}
}

func (c *pipeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}
