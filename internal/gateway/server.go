// Package gateway serves the front-end side of the relay: a liveness
// endpoint and the per-user websocket that streamed replies are pushed to.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystaldolphin/hermes/internal/backend"
	"github.com/crystaldolphin/hermes/internal/channels"
)

const shutdownTimeout = 5 * time.Second

// LinkStatus is the read-only view of the backend link served on /healthz.
type LinkStatus interface {
	State() backend.State
	Stats() backend.Stats
}

// Config configures a Server.
type Config struct {
	Addr string
	// AgentID is the agent's own user id. Its slot belongs to the backend
	// link, so clients may not connect under it.
	AgentID string
	// AllowedOrigins are matched against the Origin header of socket upgrades
	// when CheckOrigin is set. Requests without an Origin are allowed.
	AllowedOrigins []string
	CheckOrigin    bool
}

type Server struct {
	cfg      Config
	registry *channels.Registry
	link     LinkStatus
	logger   *slog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

func New(cfg Config, registry *channels.Registry, link LinkStatus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		registry: registry,
		link:     link,
		logger:   logger.With("component", "gateway"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the gateway routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /agent", s.handleAgent)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws/{user_id}", s.handleSocket)
	return mux
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("gateway listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		s.logger.Info("gateway stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway serve: %w", err)
		}
		return nil
	}
}

func (s *Server) handleAgent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "hello world"})
}

type healthResponse struct {
	State   string        `json:"state"`
	Ready   bool          `json:"ready"`
	Sockets int           `json:"sockets"`
	Stats   backend.Stats `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.link.State()
	resp := healthResponse{
		State:   state.String(),
		Ready:   state == backend.StateSubscribed,
		Sockets: s.registry.Len(),
		Stats:   s.link.Stats(),
	}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleSocket upgrades a front-end connection and keeps it registered for
// as long as its read loop runs. Inbound frames are discarded.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}
	if s.cfg.AgentID != "" && userID == s.cfg.AgentID {
		s.logger.Warn("socket rejected, reserved user id", "user_id", userID, "remote", r.RemoteAddr)
		http.Error(w, "reserved user id", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("socket upgrade failed", "user_id", userID, "error", err)
		return
	}

	socket := channels.NewWSSocket(conn)
	s.registry.Register(userID, socket)
	s.logger.Info("socket connected", "user_id", userID, "handle", socket.ID())

	defer func() {
		if !s.registry.UnregisterHandle(userID, socket.ID()) {
			_ = socket.Close()
		}
		s.logger.Info("socket disconnected", "user_id", userID, "handle", socket.ID())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("socket read ended", "user_id", userID, "error", err)
			}
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if !s.cfg.CheckOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed != "" && strings.EqualFold(origin, strings.TrimRight(allowed, "/")) {
			return true
		}
	}
	s.logger.Warn("socket origin rejected", "origin", origin)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
