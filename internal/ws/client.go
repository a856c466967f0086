package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/fathima-sithara/relay-service/internal/relay"
)

var errClientGone = errors.New("client gone")

// Client wraps one websocket connection with a buffered outbound
// channel drained by a single writer goroutine, so pushes from any
// goroutine never write to the socket directly.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	socketID string

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, socketID string) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		socketID: socketID,
	}
}

// Push queues a named event for the writer. It fails when the client is
// already closed or its buffer is full, which callers treat the same as
// the recipient being offline.
func (c *Client) Push(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(relay.Envelope{Type: event, Payload: raw})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientGone
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errClientGone
	}
}

// Close is idempotent and unblocks the writer.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. It owns all writes to the socket.
func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
