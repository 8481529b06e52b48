package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/bttest/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Per-client outbound buffer. A client that falls this far behind is
	// dropped.
	sendBufferSize = 16

	// DefaultInterval is the minimum spacing between two broadcasts
	DefaultInterval = 200 * time.Millisecond
)

// Hub keeps the latest frame and fans it out to websocket clients. Publish
// may be called at any rate; broadcasts are coalesced and throttled.
type Hub struct {
	limiter *rate.Limiter
	notify  chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
	seq     uint64
	content []byte
	latest  []byte
	sent    uint64
}

// NewHub creates a hub that broadcasts at most once per interval
func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Hub{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		notify:  make(chan struct{}, 1),
		clients: make(map[*client]struct{}),
	}
}

// Publish records s as the latest snapshot. It returns false when s is
// identical to the previous snapshot, in which case nothing is broadcast.
func (h *Hub) Publish(s Snapshot) (bool, error) {
	content, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}

	h.mu.Lock()
	if bytes.Equal(content, h.content) {
		h.mu.Unlock()
		return false, nil
	}
	h.seq++
	frame, err := json.Marshal(Frame{Seq: h.seq, Time: time.Now().UTC(), Snapshot: s})
	if err != nil {
		h.mu.Unlock()
		return false, fmt.Errorf("marshal frame: %w", err)
	}
	h.content = content
	h.latest = frame
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
	return true, nil
}

// Latest returns the most recent frame, or nil before the first Publish
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Seq returns the sequence number of the latest frame
func (h *Hub) Seq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run broadcasts published frames until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.notify:
		}
		if err := h.limiter.Wait(ctx); err != nil {
			return
		}
		h.broadcast()
	}
}

func (h *Hub) broadcast() {
	h.mu.Lock()
	if h.seq == h.sent || h.latest == nil {
		h.mu.Unlock()
		return
	}
	h.sent = h.seq
	data := h.latest
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.trySend(data) {
			logging.Warn("Dropping slow monitor client", zap.String("remote_addr", c.remoteAddr))
			h.unregister(c)
		}
	}
	logging.Debug("Snapshot broadcast",
		zap.Uint64("seq", h.sent),
		zap.Int("clients", len(clients)),
	)
}

// register adds c and queues the latest frame for it
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		c.trySend(latest)
	}
	logging.Info("Monitor client connected",
		zap.String("remote_addr", c.remoteAddr),
		zap.Int("clients", h.ClientCount()),
	)
}

// unregister removes c. Only the caller that removes it closes its send
// channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
		logging.Info("Monitor client disconnected", zap.String("remote_addr", c.remoteAddr))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
	}
}

// client is one websocket connection. Only writePump writes to conn.
type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: conn.RemoteAddr().String(),
	}
}

func (c *client) trySend(data []byte) (ok bool) {
	defer func() {
		// send is closed once the client is unregistered
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump discards client messages and watches for the connection closing
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Monitor connection closed with error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
