package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/auth"
)

// SocketPath is where clients open the realtime channel.
const SocketPath = "/socket"

// Handler upgrades authenticated handshakes and hands them to the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates the upgrade handler.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP must run behind auth.SocketHandshake.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claim, ok := auth.SocketClaim(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("socket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(claim.ID, conn)
	if frame, err := encode(ConnectedEvent, claim); err == nil {
		c.enqueue(frame)
	}
	h.logger.Info("socket connected", zap.String("user_id", claim.ID), zap.String("role", string(claim.Role)))
	h.hub.serve(c)
	h.logger.Info("socket disconnected", zap.String("user_id", claim.ID))
}

// NewRouter mounts the socket endpoint and a liveness probe.
func NewRouter(hub *Hub, authMiddleware *auth.AuthMiddleware, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	r.With(auth.SocketHandshake(authMiddleware, logger)).Get(SocketPath, NewHandler(hub, logger).ServeHTTP)
	return r
}

// Server is the realtime listener. It runs beside the fiber app because
// fasthttp connections cannot be handed to the websocket upgrader.
type Server struct {
	http   *http.Server
	hub    *Hub
	logger *zap.Logger
}

// NewServer binds the router to addr.
func NewServer(addr string, hub *Hub, authMiddleware *auth.AuthMiddleware, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(hub, authMiddleware, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		hub:    hub,
		logger: logger,
	}
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("realtime listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting handshakes and drops live sockets.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.hub.Close()
	return err
}
