// Package websocket pushes server events to connected websocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrHubClosed is returned by Broadcast once the hub stopped
	ErrHubClosed = errors.New("websocket: hub closed")
	// ErrBroadcastFull is returned when the broadcast queue is full
	ErrBroadcastFull = errors.New("websocket: broadcast queue full")
)

// Message is the envelope of every event sent to clients
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub maintains the set of active clients and fans broadcasts out to them
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	broadcast chan []byte
	logger    *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewHub creates a Hub and starts its loop. The hub stops when ctx is done
// or on Close.
func NewHub(ctx context.Context, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hubCtx, cancel := context.WithCancel(ctx)

	h := &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan []byte, 256),
		logger:    logger,
		ctx:       hubCtx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return
		case data := <-h.broadcast:
			h.fanout(data)
		}
	}
}

func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("skipping websocket client, send queue full", zap.String("client_id", client.ID))
		}
	}
}

// shutdown closes every send queue; the write pumps then close the
// connections
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.logger.Info("websocket hub stopped")
}

// Broadcast queues msg for every connected client
func (h *Hub) Broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-h.ctx.Done():
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the hub and disconnects every client
func (h *Hub) Close() error {
	h.cancel()
	<-h.stopped
	return nil
}

func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected",
		zap.String("client_id", c.ID),
		zap.String("user", c.UserID),
		zap.Int("clients", len(h.clients)),
	)
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("websocket client disconnected",
		zap.String("client_id", c.ID),
		zap.Int("clients", len(h.clients)),
	)
}
