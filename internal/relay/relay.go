// Package relay streams generated fragments to a recipient's socket while
// accumulating the full reply for persistence.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crystaldolphin/hermes/internal/bus"
	"github.com/crystaldolphin/hermes/internal/channels"
	"github.com/crystaldolphin/hermes/internal/schema"
)

// ErrStream wraps failures of the fragment stream itself.
var ErrStream = errors.New("fragment stream failed")

const (
	DefaultPacing = time.Millisecond

	// ErrorMarker is sent in the end event when generation failed.
	ErrorMarker = "generation failed"

	endTimeout = 5 * time.Second
)

// Directory resolves a user id to a live socket.
type Directory interface {
	Lookup(userID string) (channels.Socket, bool)
}

// Target addresses a reply. RecipientID is the user the reply is for.
// RouteID, when set, names a fallback socket the frames may travel over
// when the recipient has none of its own, typically the agent's own
// backend link.
type Target struct {
	RecipientID string
	RouteID     string
}

// Result describes a finished relay.
type Result struct {
	MessageID string
	Text      string
	Fragments int
	// Delivered is false when delivery stopped before the stream ended.
	Delivered bool
}

// session is the state of one in-flight reply, owned by a single Relay call.
// The first resolution pins the session to one socket handle; every later
// frame goes to that handle or nowhere.
type session struct {
	id         string
	target     Target
	text       strings.Builder
	fragments  int
	delivering bool
	pinned     bool
	handle     string
}

type Relay struct {
	dir      Directory
	senderID string
	pacing   time.Duration
	newID    func() string
	logger   *slog.Logger
}

type Option func(*Relay)

// WithPacing sets the pause after each delivered fragment. Zero disables it.
func WithPacing(d time.Duration) Option {
	return func(r *Relay) { r.pacing = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator overrides the message id source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Relay) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New returns a Relay that sends frames on behalf of senderID, the agent's
// own user id.
func New(dir Directory, senderID string, opts ...Option) *Relay {
	r := &Relay{
		dir:      dir,
		senderID: senderID,
		pacing:   DefaultPacing,
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "relay")
	return r
}

// Relay consumes stream to exhaustion. Every non-empty fragment is appended
// to the reply and, while the socket first resolved for target stays
// registered, sent to it as an llm-response frame. When the stream ends a
// single llm-response-end frame follows on the same socket. A registry miss,
// a replaced handle or a send failure stops delivery for the rest of the
// stream but never stops accumulation.
//
// On a stream error the end frame carries an error marker and the partial
// result is returned with an error wrapping ErrStream. The stream is always
// closed.
func (r *Relay) Relay(ctx context.Context, stream schema.FragmentStream, target Target) (Result, error) {
	defer stream.Close()

	s := &session{id: r.newID(), target: target, delivering: true}
	log := r.logger.With("message_id", s.id, "recipient_id", target.RecipientID)

	for {
		fragment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn("fragment stream failed", "fragments", s.fragments, "error", err)
			r.end(ctx, s, ErrorMarker)
			return s.result(), fmt.Errorf("%w: %w", ErrStream, err)
		}
		if fragment == "" {
			continue
		}

		s.text.WriteString(fragment)
		s.fragments++

		if !s.delivering {
			continue
		}
		r.deliver(ctx, s, fragment, log)
		if s.delivering && r.pacing > 0 {
			if err := sleep(ctx, r.pacing); err != nil {
				r.end(ctx, s, ErrorMarker)
				return s.result(), fmt.Errorf("%w: %w", ErrStream, err)
			}
		}
	}

	r.end(ctx, s, "")
	log.Debug("relay finished", "fragments", s.fragments, "delivered", s.delivering)
	return s.result(), nil
}

// Fail notifies target that generation failed before any fragment was
// produced. The returned id is the one carried by the end frame.
func (r *Relay) Fail(ctx context.Context, target Target) string {
	s := &session{id: r.newID(), target: target}
	r.end(ctx, s, ErrorMarker)
	return s.id
}

func (r *Relay) deliver(ctx context.Context, s *session, fragment string, log *slog.Logger) {
	socket, ok := r.socketFor(s)
	if !ok {
		log.Debug("no socket for recipient, delivery stopped", "handle", s.handle)
		s.delivering = false
		return
	}

	frame, err := bus.EncodeChunk(s.target.RecipientID, bus.ResponseChunk{
		Content: fragment,
		ID:      s.id,
		UserID:  r.senderID,
	})
	if err == nil {
		err = socket.Send(ctx, frame)
	}
	if err != nil {
		log.Warn("deliver fragment, delivery stopped", "handle", socket.ID(), "error", err)
		s.delivering = false
	}
}

// end sends the terminating frame to the session's socket unless delivery
// already stopped. It runs even when ctx is already cancelled so a connected
// client is not left waiting.
func (r *Relay) end(ctx context.Context, s *session, marker string) {
	if s.pinned && !s.delivering {
		return
	}
	socket, ok := r.socketFor(s)
	if !ok {
		return
	}

	frame, err := bus.EncodeEnd(s.target.RecipientID, bus.ResponseEnd{
		ID:     s.id,
		UserID: r.senderID,
		Error:  marker,
	})
	if err != nil {
		r.logger.Error("encode end frame", "message_id", s.id, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endTimeout)
	defer cancel()
	if err := socket.Send(sendCtx, frame); err != nil {
		r.logger.Warn("deliver end frame", "message_id", s.id, "handle", socket.ID(), "error", err)
	}
}

// socketFor resolves the session's socket. The first call pins the handle it
// finds, or the absence of one; later calls succeed only while that same
// handle is still registered.
func (r *Relay) socketFor(s *session) (channels.Socket, bool) {
	socket, ok := r.resolve(s.target)
	if !s.pinned {
		s.pinned = true
		if ok {
			s.handle = socket.ID()
		}
		return socket, ok
	}
	if !ok || s.handle == "" || socket.ID() != s.handle {
		return nil, false
	}
	return socket, true
}

func (r *Relay) resolve(t Target) (channels.Socket, bool) {
	if socket, ok := r.dir.Lookup(t.RecipientID); ok {
		return socket, true
	}
	if t.RouteID == "" || t.RouteID == t.RecipientID {
		return nil, false
	}
	return r.dir.Lookup(t.RouteID)
}

func (s *session) result() Result {
	return Result{
		MessageID: s.id,
		Text:      s.text.String(),
		Fragments: s.fragments,
		Delivered: s.delivering,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
