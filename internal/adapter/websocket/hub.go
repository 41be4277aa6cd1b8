package websocket

import (
	"errors"
	"log/slog"

	"github.com/pscheid92/tubepulse/internal/adapter/metrics"
)

var ErrHubStopped = errors.New("websocket: hub stopped")

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	client *Client
	errCh  chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	client *Client
}

func (cmdUnregister) hubCmd() {}

type cmdCount struct {
	replyCh chan int
}

func (cmdCount) hubCmd() {}

type cmdStop struct {
	reason string
	doneCh chan struct{}
}

func (cmdStop) hubCmd() {}

// Hub tracks live clients so they can be closed together on shutdown. All
// state is owned by the run goroutine.
type Hub struct {
	cmdCh   chan hubCmd
	stopped chan struct{}
	clients map[*Client]struct{}
	metrics *metrics.WebSocketMetrics
}

// NewHub starts the hub goroutine.
func NewHub(m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		stopped: make(chan struct{}),
		clients: make(map[*Client]struct{}),
		metrics: m,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.clients[c.client] = struct{}{}
			h.metrics.ActiveConnections.Inc()
			h.metrics.ConnectionsTotal.Inc()
			c.errCh <- nil
		case cmdUnregister:
			if _, ok := h.clients[c.client]; ok {
				delete(h.clients, c.client)
				h.metrics.ActiveConnections.Dec()
			}
		case cmdCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop(c.reason)
			close(h.stopped)
			close(c.doneCh)
			return
		}
	}
}

func (h *Hub) handleStop(reason string) {
	slog.Info("Closing WebSocket clients", "count", len(h.clients), "reason", reason)
	for client := range h.clients {
		client.StopGraceful(reason)
		delete(h.clients, client)
		h.metrics.ActiveConnections.Dec()
	}
}

// send delivers cmd unless the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

// Register adds a client. It fails once the hub has stopped.
func (h *Hub) Register(c *Client) error {
	errCh := make(chan error, 1)
	if !h.send(cmdRegister{client: c, errCh: errCh}) {
		return ErrHubStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.stopped:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(c *Client) {
	h.send(cmdUnregister{client: c})
}

// Count returns the number of registered clients, or zero once stopped.
func (h *Hub) Count() int {
	replyCh := make(chan int, 1)
	if !h.send(cmdCount{replyCh: replyCh}) {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.stopped:
		return 0
	}
}

// Stop closes every registered client with a close frame carrying reason and
// waits until that is done. Later calls are no-ops.
func (h *Hub) Stop(reason string) {
	doneCh := make(chan struct{})
	if !h.send(cmdStop{reason: reason, doneCh: doneCh}) {
		return
	}
	select {
	case <-doneCh:
	case <-h.stopped:
	}
}
