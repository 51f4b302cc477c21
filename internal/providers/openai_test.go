package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/hermes/internal/schema"
)

func sseBody(events ...string) string {
	var sb strings.Builder
	for _, e := range events {
		fmt.Fprintf(&sb, "data: %s\n\n", e)
	}
	return sb.String()
}

func deltaEvent(content string) string {
	return fmt.Sprintf(`{"choices":[{"delta":{"content":%q},"finish_reason":null}]}`, content)
}

func TestOpenAIProviderStream(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ": keep-alive\n\n")
		_, _ = io.WriteString(w, sseBody(
			`{"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}`,
			deltaEvent("Hel"),
			deltaEvent("lo"),
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			"[DONE]",
		))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1/", "gpt-4o-mini", "openai", nil)
	msgs := schema.NewMessages(schema.NewSystemMessage("sys"), schema.NewUserMessage("hi"))

	stream, err := p.Stream(t.Context(), msgs, schema.ChatOptions{})
	require.NoError(t, err)

	text, err := schema.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, true, gotBody["stream"])
	assert.EqualValues(t, defaultMaxTokens, gotBody["max_tokens"])
	require.Len(t, gotBody["messages"], 2)
	first := gotBody["messages"].([]any)[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"slow down"}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "gpt-4o-mini", "", nil)
	_, err := p.Stream(t.Context(), schema.NewMessages(), schema.ChatOptions{})

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "rate limit exceeded", perr.Message)
	assert.True(t, perr.Retryable())
}

func TestOpenAIProviderMidStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sseBody(
			deltaEvent("par"),
			`{"error":{"type":"server_error","message":"overloaded"}}`,
		))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "gpt-4o-mini", "", nil)
	stream, err := p.Stream(t.Context(), schema.NewMessages(), schema.ChatOptions{})
	require.NoError(t, err)

	text, err := schema.Collect(stream)
	assert.Equal(t, "par", text)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "server_error", perr.Type)
	assert.False(t, perr.Retryable())
}

func TestOpenAIProviderTruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sseBody(deltaEvent("cut")))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "gpt-4o-mini", "", nil)
	stream, err := p.Stream(t.Context(), schema.NewMessages(), schema.ChatOptions{})
	require.NoError(t, err)

	text, err := schema.Collect(stream)
	assert.Equal(t, "cut", text)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestSSEStreamFinishWithoutDone(t *testing.T) {
	body := "data: " + deltaEvent("a") + "\n\n" +
		`data: {"choices":[{"delta":{"content":"b"},"finish_reason":"stop"}]}`
	s := newSSEStream(io.NopCloser(strings.NewReader(body)))

	text, err := schema.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestSSEStreamMalformedChunk(t *testing.T) {
	s := newSSEStream(io.NopCloser(strings.NewReader("data: {oops\n\n")))

	_, err := s.Next()
	assert.ErrorContains(t, err, "decode stream chunk")
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name, provider, apiKey, apiBase, model, want string
	}{
		{"openrouter keeps vendor", "openrouter", "", "", "openrouter/anthropic/claude-3", "anthropic/claude-3"},
		{"openrouter by key prefix", "", "sk-or-abc", "", "openai/gpt-4o", "openai/gpt-4o"},
		{"aihubmix strips all", "aihubmix", "", "", "openai/gpt-4o", "gpt-4o"},
		{"deepseek prefix", "", "", "", "deepseek/deepseek-chat", "deepseek-chat"},
		{"bare model", "", "", "", "gpt-4o-mini", "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOpenAIProvider(tt.apiKey, tt.apiBase, tt.model, tt.provider, nil)
			assert.Equal(t, tt.want, p.resolveModel(tt.model))
		})
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(Params{})
	assert.Equal(t, DefaultModel, p.DefaultModel())
	assert.Equal(t, defaultAPIBase, p.(*OpenAIProvider).APIBase())

	p = New(Params{ProviderName: "ollama", DefaultModel: "llama3"})
	assert.Equal(t, "http://localhost:11434/v1", p.(*OpenAIProvider).APIBase())
}
