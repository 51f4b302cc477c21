// Package channels tracks the live websocket connections the relay can
// deliver to, keyed by user id.
package channels

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// DefaultWriteTimeout bounds a single frame write when the caller's context
// carries no earlier deadline.
const DefaultWriteTimeout = 10 * time.Second

// Socket is a live, full-duplex text connection owned by the registry once
// registered. Implementations must allow Send and Close from any goroutine.
type Socket interface {
	// ID is a process-unique handle id. Two registrations of the same user
	// on different connections have different ids.
	ID() string
	Send(ctx context.Context, payload []byte) error
	Close() error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewHandleID returns a fresh sortable handle id.
func NewHandleID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WSSocket adapts a gorilla websocket connection to Socket. gorilla permits
// one concurrent writer, so writes are serialized here.
type WSSocket struct {
	conn         *websocket.Conn
	id           string
	writeTimeout time.Duration

	mu     sync.Mutex // held for the duration of a write
	closed atomic.Bool
}

func NewWSSocket(conn *websocket.Conn) *WSSocket {
	return &WSSocket{
		conn:         conn,
		id:           NewHandleID(),
		writeTimeout: DefaultWriteTimeout,
	}
}

func (s *WSSocket) ID() string { return s.id }

// Conn returns the underlying connection for the owner's read loop.
func (s *WSSocket) Conn() *websocket.Conn { return s.conn }

func (s *WSSocket) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return net.ErrClosed
	}
	if err := s.conn.SetWriteDeadline(s.deadline(ctx)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close sends a normal close frame and closes the connection. If a Send is
// in progress the close frame is skipped and the connection is closed
// underneath it, which fails the pending write at once. Calling Close more
// than once returns net.ErrClosed.
func (s *WSSocket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return net.ErrClosed
	}

	if s.mu.TryLock() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		s.mu.Unlock()
	}
	return s.conn.Close()
}

func (s *WSSocket) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(s.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
