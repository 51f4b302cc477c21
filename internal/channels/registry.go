package channels

import (
	"errors"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
)

// Registry maps a user id to the single live socket for that user.
// Lookups take the read lock; every mutation is exclusive.
type Registry struct {
	mu      sync.RWMutex
	sockets map[string]Socket
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sockets: make(map[string]Socket),
		logger:  logger.With("component", "registry"),
	}
}

// Register stores socket under userID. A previously registered socket for
// the same user is replaced and closed.
func (r *Registry) Register(userID string, socket Socket) {
	r.mu.Lock()
	prev, ok := r.sockets[userID]
	r.sockets[userID] = socket
	r.mu.Unlock()

	r.logger.Debug("socket registered", "user_id", userID, "handle", socket.ID())

	if ok && prev.ID() != socket.ID() {
		r.logger.Info("replacing socket", "user_id", userID, "old_handle", prev.ID())
		r.closeSocket(userID, prev)
	}
}

// Unregister removes and closes the socket registered for userID, if any.
// Close failures are logged, never returned.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	socket, ok := r.sockets[userID]
	delete(r.sockets, userID)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.closeSocket(userID, socket)
}

// UnregisterHandle removes and closes the registration for userID only if
// it is still the socket with handleID. It reports whether it removed one.
func (r *Registry) UnregisterHandle(userID, handleID string) bool {
	r.mu.Lock()
	socket, ok := r.sockets[userID]
	if !ok || socket.ID() != handleID {
		r.mu.Unlock()
		return false
	}
	delete(r.sockets, userID)
	r.mu.Unlock()

	r.closeSocket(userID, socket)
	return true
}

// Lookup returns the socket registered for userID.
func (r *Registry) Lookup(userID string) (Socket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	socket, ok := r.sockets[userID]
	return socket, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}

// Users returns the registered user ids in sorted order.
func (r *Registry) Users() []string {
	r.mu.RLock()
	users := make([]string, 0, len(r.sockets))
	for id := range r.sockets {
		users = append(users, id)
	}
	r.mu.RUnlock()

	slices.Sort(users)
	return users
}

// CloseAll unregisters and closes every socket.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sockets := r.sockets
	r.sockets = make(map[string]Socket)
	r.mu.Unlock()

	for userID, socket := range sockets {
		r.closeSocket(userID, socket)
	}
}

func (r *Registry) closeSocket(userID string, socket Socket) {
	err := socket.Close()
	switch {
	case err == nil:
	case errors.Is(err, net.ErrClosed), errors.Is(err, websocket.ErrCloseSent):
		r.logger.Debug("socket already closed", "user_id", userID, "handle", socket.ID())
	default:
		r.logger.Warn("close socket", "user_id", userID, "handle", socket.ID(), "error", err)
	}
}
