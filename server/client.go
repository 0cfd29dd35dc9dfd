package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// client owns the write side of one sync connection. All writes funnel
// through a single goroutine because gorilla connections allow only one
// concurrent writer.
type client struct {
	id       string
	conn     *websocket.Conn
	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *client) run() {
	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// trySend queues a message without blocking. False means the client is too
// slow to keep up and should be dropped.
func (c *client) trySend(msg []byte) bool {
	select {
	case c.sendCh <- msg:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// closeWith sends a close frame before tearing the connection down.
func (c *client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	c.stop()
}
