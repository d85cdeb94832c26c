package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnectedEvent is the first frame sent on every accepted connection.
const ConnectedEvent = "connected"

const sendBuffer = 16

// Message is the wire frame pushed to clients.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SocketRecorder observes connection churn.
type SocketRecorder interface {
	SocketOpened()
	SocketClosed()
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(userID string, conn *websocket.Conn) *client {
	return &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// enqueue reports false when the buffer is full or the client is closed.
func (c *client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks live connections per user and fans pushed events out to them.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]map[*client]struct{}
	logger       *zap.Logger
	metrics      SocketRecorder
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *zap.Logger, metrics SocketRecorder, pingInterval, writeTimeout time.Duration) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		clients:      make(map[string]map[*client]struct{}),
		logger:       logger,
		metrics:      metrics,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

// Push queues an event for every connection of userID and returns how many
// connections accepted it. Slow connections with a full buffer are dropped.
func (h *Hub) Push(userID, event string, payload any) int {
	frame, err := encode(event, payload)
	if err != nil {
		h.logger.Error("encode realtime event", zap.String("event", event), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		h.logger.Warn("realtime buffer full, dropping connection", zap.String("user_id", userID))
		h.unregister(c)
	}
	return delivered
}

// Connections reports how many sockets userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			c.close()
			if h.metrics != nil {
				h.metrics.SocketClosed()
			}
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SocketOpened()
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	c.close()
	if h.metrics != nil {
		h.metrics.SocketClosed()
	}
}

// serve runs the connection until either side closes it.
func (h *Hub) serve(c *client) {
	h.register(c)
	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	deadline := h.pingInterval * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	// Clients only send control frames; anything else is discarded.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("realtime read ended", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func encode(event string, payload any) ([]byte, error) {
	msg := Message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return json.Marshal(msg)
}
