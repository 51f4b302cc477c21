package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/hermes/internal/backend"
	"github.com/crystaldolphin/hermes/internal/channels"
)

type staticLink struct {
	state backend.State
	stats backend.Stats
}

func (l staticLink) State() backend.State { return l.state }
func (l staticLink) Stats() backend.Stats { return l.stats }

func newTestServer(t *testing.T, cfg Config, link LinkStatus) (*httptest.Server, *channels.Registry) {
	t.Helper()
	registry := channels.NewRegistry(nil)
	s := New(cfg, registry, link, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		registry.CloseAll()
		srv.Close()
	})
	return srv, registry
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestAgentEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{}, staticLink{})

	resp, err := http.Get(srv.URL + "/agent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"message": "hello world"}, body)
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		link       staticLink
		wantStatus int
	}{
		{"subscribed", staticLink{state: backend.StateSubscribed, stats: backend.Stats{Connects: 2, Reconnects: 1}}, http.StatusOK},
		{"connecting", staticLink{state: backend.StateConnecting}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Config{}, tt.link)

			resp, err := http.Get(srv.URL + "/healthz")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body healthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.link.state.String(), body.State)
			assert.Equal(t, tt.link.stats, body.Stats)
		})
	}
}

func TestSocketRegistersUntilClosed(t *testing.T) {
	srv, registry := newTestServer(t, Config{}, staticLink{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/u2"), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("u2")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// Frames sent through the registry reach the client.
	socket, _ := registry.Lookup("u2")
	require.NoError(t, socket.Send(context.Background(), []byte(`{"event":"llm-response"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"llm-response"}`, string(raw))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSocketReplacementKeepsNewest(t *testing.T) {
	srv, registry := newTestServer(t, Config{}, staticLink{})

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/u2"), nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	old, _ := registry.Lookup("u2")

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/u2"), nil)
	require.NoError(t, err)
	defer second.Close()

	require.Eventually(t, func() bool {
		cur, ok := registry.Lookup("u2")
		return ok && cur.ID() != old.ID()
	}, 2*time.Second, 5*time.Millisecond)

	// The replaced connection is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = first.ReadMessage()
	require.Error(t, err)

	// Its teardown must not remove the newer registration.
	time.Sleep(50 * time.Millisecond)
	cur, ok := registry.Lookup("u2")
	require.True(t, ok)
	assert.NotEqual(t, old.ID(), cur.ID())
}

type heldSocket struct {
	id     string
	closed atomic.Bool
}

func (s *heldSocket) ID() string                         { return s.id }
func (s *heldSocket) Send(context.Context, []byte) error { return nil }
func (s *heldSocket) Close() error                       { s.closed.Store(true); return nil }

func TestSocketRejectsAgentID(t *testing.T) {
	srv, registry := newTestServer(t, Config{AgentID: "agent-1"}, staticLink{})
	link := &heldSocket{id: "h-link"}
	registry.Register("agent-1", link)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/agent-1"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.False(t, link.closed.Load())
	got, ok := registry.Lookup("agent-1")
	require.True(t, ok)
	assert.Equal(t, "h-link", got.ID())
}

func TestSocketOriginCheck(t *testing.T) {
	cfg := Config{CheckOrigin: true, AllowedOrigins: []string{"http://localhost:3000/", "http://localhost:8003"}}
	srv, registry := newTestServer(t, cfg, staticLink{})

	tests := []struct {
		origin string
		ok     bool
	}{
		{"http://localhost:3000", true},
		{"http://LOCALHOST:8003", true},
		{"", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/u9"), header)
			if tt.ok {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{}, channels.NewRegistry(nil), staticLink{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/agent")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
