package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// connection wraps one Transport with an identity slot and a bounded
// outbound queue. A single writer goroutine drains the queue so fan-out
// never performs transport I/O under a registry lock.
type connection struct {
	id     string
	userID atomic.Value // string, empty until IDENTIFY succeeds

	transport Transport

	// lastHeartbeat is unix nanos of the most recent PING (or creation).
	lastHeartbeat atomic.Int64

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(transport Transport, queueSize int) *connection {
	c := &connection{
		id:        uuid.New().String(),
		transport: transport,
		out:       make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
	c.userID.Store("")
	c.lastHeartbeat.Store(time.Now().UnixNano())
	return c
}

func (c *connection) UserID() string {
	return c.userID.Load().(string)
}

func (c *connection) claim(userID string) {
	c.userID.Store(userID)
}

func (c *connection) identified() bool {
	return c.UserID() != ""
}

func (c *connection) touchHeartbeat() {
	c.lastHeartbeat.Store(time.Now().UnixNano())
}

func (c *connection) lastHeartbeatAt() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// enqueue hands data to the writer goroutine without blocking. It returns
// false when the queue is full, which the hub treats as a dead consumer.
func (c *connection) enqueue(data []byte) bool {
	select {
	case <-c.done:
		// already closing; nothing to deliver, nothing to drop
		return true
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// writeLoop is the connection's single writer. It exits when the connection
// closes or a write fails; a failed write reports the connection back to
// the hub for removal.
func (c *connection) writeLoop(onError func(*connection)) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.transport.WriteMessage(data); err != nil {
				onError(c)
				return
			}
		}
	}
}

func (c *connection) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close(code, reason)
	})
}
