package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
	"github.com/pscheid92/tubepulse/internal/session"
)

const (
	writeDeadline     = 5 * time.Second
	messageBufferSize = 16
)

var (
	ErrSlowClient   = errors.New("websocket: client send buffer full")
	ErrClientClosed = errors.New("websocket: client closed")
)

// Client owns the write side of one connection. Frames are queued by Send and
// written by a single goroutine; the read side stays with the caller.
type Client struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	metrics  *metrics.WebSocketMetrics
	send     chan []byte
	done     chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ session.Outbox = (*Client)(nil)

func NewClient(conn *websocket.Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics) *Client {
	c := &Client{
		conn:    conn,
		clock:   clock,
		metrics: m,
		send:    make(chan []byte, messageBufferSize),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Send encodes f and queues it without blocking. A full buffer means the
// client cannot keep up; the caller is expected to drop the session.
func (c *Client) Send(f session.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.FrameType(), err)
	}

	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.metrics.SlowClientsEvicted.Inc()
		return ErrSlowClient
	}
}

// Closed is closed once the writer has exited, after a write error or Stop.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

func (c *Client) run() {
	defer c.wg.Done()
	defer close(c.closed)

	for {
		select {
		case msg := <-c.send:
			start := c.clock.Now()
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			c.metrics.MessagesSent.Inc()
			c.metrics.SendDuration.Observe(c.clock.Since(start).Seconds())
		case <-c.done:
			return
		}
	}
}

// Stop ends the writer and closes the connection without a close frame.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}

// StopGraceful writes a close frame with reason before closing.
func (c *Client) StopGraceful(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		// the writer must be gone before we write the close frame
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		c.updateWriteDeadline()
		_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}

func (c *Client) updateWriteDeadline() {
	_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}
