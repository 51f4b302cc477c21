package dependency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/hermes/internal/backend"
	"github.com/crystaldolphin/hermes/internal/config"
)

func fakeOuro(t *testing.T, meStatus int, meBody string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(meStatus)
		_, _ = w.Write([]byte(meBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(backendURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Backend.URL = backendURL
	cfg.Backend.WSURL = ""
	cfg.Backend.APIKey = "test-key"
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Gateway.Port = 0
	return &cfg
}

func TestNewWiresServices(t *testing.T) {
	srv := fakeOuro(t, http.StatusOK, `{"data":{"id":"agent-1","email":"hermes@example.com"},"error":null}`)

	c, err := New(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)

	assert.Equal(t, "agent-1", c.Identity().ID)
	assert.NotNil(t, c.Registry())
	assert.NotNil(t, c.Gateway())
	assert.NotNil(t, c.Reporter())
	require.NotNil(t, c.Link())
	assert.Equal(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/agent-1", c.Link().Endpoint())
	assert.Equal(t, backend.StateDisconnected, c.Link().State())

	rec := httptest.NewRecorder()
	c.Gateway().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/agent-1", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNewIdentityFailure(t *testing.T) {
	srv := fakeOuro(t, http.StatusUnauthorized, `{"data":null,"error":{"message":"invalid api key"}}`)

	_, err := New(context.Background(), testConfig(srv.URL), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve agent identity")
}

func TestNewRequiresProvider(t *testing.T) {
	srv := fakeOuro(t, http.StatusOK, `{"data":{"id":"agent-1"},"error":null}`)
	cfg := testConfig(srv.URL)
	cfg.Providers.OpenAI.APIKey = ""

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider configured")
}

func TestNewMissingPersona(t *testing.T) {
	srv := fakeOuro(t, http.StatusOK, `{"data":{"id":"agent-1"},"error":null}`)
	cfg := testConfig(srv.URL)
	cfg.Agent.PersonaPath = filepath.Join(t.TempDir(), "missing.md")

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestStatusSource(t *testing.T) {
	srv := fakeOuro(t, http.StatusOK, `{"data":{"id":"agent-1"},"error":null}`)
	c, err := New(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)

	snap := StatusSource(c.Link(), c.Registry())()
	assert.Equal(t, "disconnected", snap.State)
	assert.False(t, snap.Healthy)
	assert.Zero(t, snap.Sockets)
}
