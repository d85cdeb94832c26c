// Package realtime binds the client's socket connection to the current identity.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Events pushed by the server.
const (
	EventConnected          = "connected"
	EventNotification       = "notification"
	EventVerificationStatus = "verification_status"
)

// ErrHandshakeRejected means the server refused the token.
var ErrHandshakeRejected = errors.New("realtime handshake rejected")

// Handler receives the data of one pushed event.
type Handler func(data json.RawMessage)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Binder owns at most one socket connection, keyed to an access token.
type Binder struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	token  string
	userID string
	done   chan struct{}

	handlersMu sync.RWMutex
	handlers   map[string][]Handler
}

// NewBinder creates a binder for the socket endpoint at url.
func NewBinder(url string, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// On registers h for event. Handlers run on the read goroutine and must
// not call Connect or Disconnect.
func (b *Binder) On(event string, h Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

// Connect opens a connection authenticated by token. It is a no-op when a
// connection with the same token is live; a connection with any other token
// is closed first.
func (b *Binder) Connect(ctx context.Context, token, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil && b.token == token {
		return nil
	}
	b.teardownLocked()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := b.dialer.DialContext(ctx, b.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", ErrHandshakeRejected, err)
		}
		return fmt.Errorf("dial %s: %w", b.url, err)
	}

	done := make(chan struct{})
	b.conn = conn
	b.token = token
	b.userID = userID
	b.done = done
	go b.readLoop(conn, done)

	b.logger.Info("realtime connected", zap.String("user_id", userID))
	return nil
}

// Disconnect closes the connection if one is open.
func (b *Binder) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.teardownLocked()
}

// Connected reports whether a connection is live.
func (b *Binder) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Token returns the token of the live connection.
func (b *Binder) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

func (b *Binder) teardownLocked() {
	if b.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = b.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = b.conn.Close()
	<-b.done

	b.logger.Info("realtime disconnected", zap.String("user_id", b.userID))
	b.conn = nil
	b.token = ""
	b.userID = ""
	b.done = nil
}

func (b *Binder) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		b.forget(conn)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("realtime read ended", zap.Error(err))
			}
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			b.logger.Warn("malformed realtime frame", zap.Error(err))
			continue
		}
		b.dispatch(f)
	}
}

// forget clears a connection the server closed. done is already closed, so
// a concurrent teardown holding mu is not blocked on this goroutine.
func (b *Binder) forget(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != conn {
		return
	}
	_ = conn.Close()
	b.logger.Info("realtime connection lost", zap.String("user_id", b.userID))
	b.conn = nil
	b.token = ""
	b.userID = ""
	b.done = nil
}

func (b *Binder) dispatch(f frame) {
	b.handlersMu.RLock()
	handlers := append([]Handler(nil), b.handlers[f.Event]...)
	b.handlersMu.RUnlock()
	for _, h := range handlers {
		h(f.Data)
	}
}
