// Package backend owns the relay's long-lived websocket to the conversation
// backend: connecting, subscribing, dispatching events and reconnecting.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystaldolphin/hermes/internal/channels"
	"github.com/crystaldolphin/hermes/internal/schema"
)

// ErrSubscribe marks a failed subscription after a successful connect.
var ErrSubscribe = errors.New("subscribe failed")

const (
	DefaultRetryDelay       = 3 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	maxFrameSize            = 4 << 20
)

// LinkConfig configures a Link.
type LinkConfig struct {
	// WSURL is the backend websocket base, e.g. "wss://api.example.com".
	WSURL string
	// AgentID is the relay's own user id; the link connects to {WSURL}/ws/{AgentID}.
	AgentID string

	// RetryDelay is the fixed pause between connection attempts.
	RetryDelay time.Duration
	// RetryJitter adds a uniformly random extra delay in [0, RetryJitter).
	RetryJitter time.Duration

	// Header is sent with the websocket handshake.
	Header http.Header
	// Dialer defaults to a gorilla dialer with DefaultHandshakeTimeout.
	Dialer *websocket.Dialer
}

// Stats are cumulative link counters.
type Stats struct {
	Attempts   int64 `json:"attempts"`
	Connects   int64 `json:"connects"`
	Reconnects int64 `json:"reconnects"`
	Handled    int64 `json:"handled"`
	Skipped    int64 `json:"skipped"`
	Ignored    int64 `json:"ignored"`
	Malformed  int64 `json:"malformed"`
	Failed     int64 `json:"failed"`
}

// Link drives the backend connection state machine:
//
//	Disconnected → Connecting → Connected → Subscribed → Closing → Disconnected
//
// Each inbound frame is processed to completion before the next is read.
// State is mutated only by the goroutine running Run.
type Link struct {
	cfg        LinkConfig
	endpoint   string
	registry   *channels.Registry
	subscriber schema.Subscriber
	handler    EventHandler
	logger     *slog.Logger

	mu        sync.Mutex
	state     State
	ready     chan struct{}
	observers []func(State)

	attempts  atomic.Int64
	connects  atomic.Int64
	handled   atomic.Int64
	skipped   atomic.Int64
	ignored   atomic.Int64
	malformed atomic.Int64
	failed    atomic.Int64
}

func NewLink(cfg LinkConfig, registry *channels.Registry, subscriber schema.Subscriber, handler EventHandler, logger *slog.Logger) (*Link, error) {
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("backend: agent id is required")
	}
	endpoint, err := Endpoint(cfg.WSURL, cfg.AgentID)
	if err != nil {
		return nil, err
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Link{
		cfg:        cfg,
		endpoint:   endpoint,
		registry:   registry,
		subscriber: subscriber,
		handler:    handler,
		logger:     logger.With("component", "backend"),
		state:      StateDisconnected,
		ready:      make(chan struct{}),
	}, nil
}

// Endpoint builds the agent's websocket URL from the backend base URL.
// http(s) schemes are mapped to ws(s).
func Endpoint(wsURL, agentID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(wsURL, "/"))
	if err != nil {
		return "", fmt.Errorf("backend: parse websocket url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("backend: websocket url must be ws, wss, http or https (got %q)", wsURL)
	}
	return u.JoinPath("ws", agentID).String(), nil
}

func (l *Link) Endpoint() string { return l.endpoint }

// Run connects and reconnects until ctx is cancelled. It always returns a
// non-nil error, ctx.Err() on shutdown.
func (l *Link) Run(ctx context.Context) error {
	l.logger.Info("backend link starting", "endpoint", l.endpoint, "retry_delay", l.cfg.RetryDelay)

	for {
		err := l.connectOnce(ctx)
		if ctx.Err() != nil {
			l.logger.Info("backend link stopped")
			return ctx.Err()
		}

		delay := l.retryDelay()
		l.logger.Warn("backend link lost, reconnecting", "error", err, "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			l.logger.Info("backend link stopped")
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Link) connectOnce(ctx context.Context) error {
	l.setState(StateConnecting)
	l.attempts.Add(1)

	conn, _, err := l.cfg.Dialer.DialContext(ctx, l.endpoint, l.cfg.Header)
	if err != nil {
		l.setState(StateDisconnected)
		return fmt.Errorf("dial %s: %w", l.endpoint, err)
	}
	conn.SetReadLimit(maxFrameSize)

	socket := channels.NewWSSocket(conn)
	l.registry.Register(l.cfg.AgentID, socket)
	if l.connects.Add(1) > 1 {
		l.logger.Info("backend link re-established")
	}
	l.setState(StateConnected)
	l.publishReady()

	stop := context.AfterFunc(ctx, func() { _ = socket.Close() })
	defer func() {
		stop()
		l.setState(StateClosing)
		l.clearReady()
		if !l.registry.UnregisterHandle(l.cfg.AgentID, socket.ID()) {
			_ = socket.Close()
		}
		l.setState(StateDisconnected)
	}()

	if err := l.subscriber.Subscribe(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	l.setState(StateSubscribed)
	l.logger.Info("backend link subscribed", "handle", socket.ID())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		l.record(l.handler.Handle(ctx, raw))
	}
}

func (l *Link) record(o Outcome) {
	switch o {
	case OutcomeReplied:
		l.handled.Add(1)
	case OutcomeSkipped:
		l.skipped.Add(1)
	case OutcomeIgnored:
		l.ignored.Add(1)
	case OutcomeMalformed:
		l.malformed.Add(1)
	case OutcomeFailed:
		l.failed.Add(1)
	}
}

func (l *Link) retryDelay() time.Duration {
	d := l.cfg.RetryDelay
	if l.cfg.RetryJitter > 0 {
		d += rand.N(l.cfg.RetryJitter)
	}
	return d
}

// State returns the current state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns a snapshot of the link counters.
func (l *Link) Stats() Stats {
	connects := l.connects.Load()
	return Stats{
		Attempts:   l.attempts.Load(),
		Connects:   connects,
		Reconnects: max(connects-1, 0),
		Handled:    l.handled.Load(),
		Skipped:    l.skipped.Load(),
		Ignored:    l.ignored.Load(),
		Malformed:  l.malformed.Load(),
		Failed:     l.failed.Load(),
	}
}

// OnStateChange registers fn to be called, on the link's goroutine, after
// every state transition.
func (l *Link) OnStateChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Ready returns a channel closed while the link is connected. After a
// disconnect a fresh channel is handed out.
func (l *Link) Ready() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// WaitReady blocks until the link is connected or ctx is done.
func (l *Link) WaitReady(ctx context.Context) error {
	select {
	case <-l.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	if l.state == s {
		l.mu.Unlock()
		return
	}
	prev := l.state
	l.state = s
	observers := make([]func(State), len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	l.logger.Debug("link state", "from", prev, "to", s)
	for _, fn := range observers {
		fn(s)
	}
}

func (l *Link) publishReady() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ready:
	default:
		close(l.ready)
	}
}

func (l *Link) clearReady() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ready:
		l.ready = make(chan struct{})
	default:
	}
}
