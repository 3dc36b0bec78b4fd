package http

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client owns one websocket connection. All writes go through a single
// writer goroutine so the connection never sees concurrent writers.
type client struct {
	conn   *websocket.Conn
	logger *zap.SugaredLogger

	send       chan outboundMessage[any]
	closing    chan struct{}
	writerDone chan struct{}
	pumps      sync.WaitGroup
}

func newClient(conn *websocket.Conn, logger *zap.SugaredLogger) *client {
	c := &client{
		conn:       conn,
		logger:     logger,
		send:       make(chan outboundMessage[any], 16),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *client) writeLoop() {
	defer close(c.writerDone)
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Debugw("ws write error", "error", err)
			// unblock the reader so the connection is torn down
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// push queues a frame. It returns false once the client is closing.
func (c *client) push(msg outboundMessage[any]) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.closing:
		return false
	}
}

// pump runs fn in its own goroutine; fn must return once closing is closed.
func (c *client) pump(fn func(closing <-chan struct{})) {
	c.pumps.Add(1)
	go func() {
		defer c.pumps.Done()
		fn(c.closing)
	}()
}

// readLoop dispatches inbound frames until the connection fails.
func (c *client) readLoop(handle func(inboundMessage)) {
	for {
		var inbound inboundMessage
		if err := c.conn.ReadJSON(&inbound); err != nil {
			return
		}
		handle(inbound)
	}
}

// close stops the pumps, flushes pending frames and waits for the writer.
func (c *client) close() {
	close(c.closing)
	c.pumps.Wait()
	close(c.send)
	<-c.writerDone
}
