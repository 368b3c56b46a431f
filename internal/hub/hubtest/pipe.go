// Package hubtest provides an in-memory duplex transport so hub and
// session tests run without sockets or real timers on the wire.
package hubtest

import (
	"errors"
	"sync"

	"github.com/bellhop-dev/bellhop/internal/wire"
)

var ErrClosed = errors.New("pipe closed")

type frame struct {
	data []byte
}

// Pipe returns the two ends of a connected in-memory transport. The
// server end satisfies the hub's Transport; the client end satisfies the
// session's. A Close on either end surfaces as a *wire.CloseError on the
// peer's next read.
func Pipe() (*ServerEnd, *ClientEnd) {
	toServer := make(chan frame, 64)
	toClient := make(chan frame, 64)

	shared := &pipeState{
		closed: make(chan struct{}),
	}

	server := &ServerEnd{end: end{in: toServer, out: toClient, state: shared}}
	client := &ClientEnd{end: end{in: toClient, out: toServer, state: shared}}
	return server, client
}

type pipeState struct {
	mu        sync.Mutex
	closed    chan struct{}
	closeCode int
	closeText string
}

func (s *pipeState) close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closed:
		return
	default:
	}
	s.closeCode = code
	s.closeText = reason
	close(s.closed)
}

func (s *pipeState) closeErr() *wire.CloseError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &wire.CloseError{Code: s.closeCode, Reason: s.closeText}
}

type end struct {
	in    chan frame
	out   chan frame
	state *pipeState
}

func (e *end) read() ([]byte, error) {
	select {
	case f := <-e.in:
		return f.data, nil
	case <-e.state.closed:
		// drain anything written before close
		select {
		case f := <-e.in:
			return f.data, nil
		default:
		}
		return nil, e.state.closeErr()
	}
}

func (e *end) write(data []byte) error {
	select {
	case <-e.state.closed:
		return ErrClosed
	default:
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case e.out <- frame{data: buf}:
		return nil
	case <-e.state.closed:
		return ErrClosed
	}
}

type ServerEnd struct {
	end
}

func (s *ServerEnd) ReadMessage() ([]byte, error)   { return s.read() }
func (s *ServerEnd) WriteMessage(data []byte) error { return s.write(data) }

func (s *ServerEnd) Close(code int, reason string) error {
	s.state.close(code, reason)
	return nil
}

type ClientEnd struct {
	end
}

func (c *ClientEnd) ReadMessage() ([]byte, error)   { return c.read() }
func (c *ClientEnd) WriteMessage(data []byte) error { return c.write(data) }

func (c *ClientEnd) Close() error {
	c.state.close(wire.CloseNormal, "client closed")
	return nil
}
