package backend

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/hermes/internal/bus"
	"github.com/crystaldolphin/hermes/internal/schema"
	"github.com/crystaldolphin/hermes/internal/schema/schematest"
)

type createdMessage struct {
	ConversationID string
	Msg            schema.NewMessage
}

type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]schema.Conversation
	history       map[string][]schema.StoredMessage
	convErr       error
	listErr       error
	createErr     error
	lookups       int
	created       []createdMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: map[string]schema.Conversation{},
		history:       map[string][]schema.StoredMessage{},
	}
}

func (s *fakeStore) addConversation(id string, members ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = schema.Conversation{ID: id, Metadata: schema.ConversationMetadata{Members: members}}
}

func (s *fakeStore) Conversation(_ context.Context, id string) (schema.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.convErr != nil {
		return schema.Conversation{}, s.convErr
	}
	conv, ok := s.conversations[id]
	if !ok {
		return schema.Conversation{}, schema.ErrNotFound
	}
	return conv, nil
}

func (s *fakeStore) Messages(_ context.Context, id string) ([]schema.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.history[id], nil
}

func (s *fakeStore) CreateMessage(_ context.Context, id string, msg schema.NewMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, createdMessage{ConversationID: id, Msg: msg})
	return nil
}

func (s *fakeStore) createdMessages() []createdMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]createdMessage(nil), s.created...)
}

type fakeProvider struct {
	mu        sync.Mutex
	fragments []string
	openErr   error
	midErr    error
	prompts   []schema.Messages
}

func (p *fakeProvider) Stream(_ context.Context, msgs schema.Messages, _ schema.ChatOptions) (schema.FragmentStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, msgs.Clone())
	if p.openErr != nil {
		return nil, p.openErr
	}
	s := schematest.NewStaticStream(p.fragments...)
	if p.midErr != nil {
		s.FailAfter(p.midErr)
	}
	return s, nil
}

func (p *fakeProvider) DefaultModel() string { return "test-model" }

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type recordingSocket struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSocket) ID() string { return s.id }

func (s *recordingSocket) Send(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, payload)
	return nil
}

func (s *recordingSocket) Close() error { return nil }

func (s *recordingSocket) envelopes(t *testing.T) []bus.Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bus.Envelope, 0, len(s.frames))
	for _, f := range s.frames {
		env, err := bus.Decode(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func newMessageFrame(conversationID, text, userID string) []byte {
	raw, _ := bus.EncodeNewMessage(bus.NewMessage{ConversationID: conversationID, Text: text, UserID: userID})
	return raw
}

// assertReplyStream checks envs is one or more llm-response frames sharing
// an id followed by exactly one llm-response-end with that id. It returns
// the id and the concatenated content.
func assertReplyStream(t *testing.T, envs []bus.Envelope, recipient string) (string, string) {
	t.Helper()
	require.GreaterOrEqual(t, len(envs), 2)

	var id, content string
	for i, env := range envs[:len(envs)-1] {
		require.Equal(t, bus.EventResponse, env.Event, "frame %d", i)
		require.Equal(t, recipient, env.RecipientID)
		var chunk bus.ResponseChunk
		require.NoError(t, json.Unmarshal(env.Data, &chunk))
		if id == "" {
			id = chunk.ID
		}
		require.Equal(t, id, chunk.ID)
		content += chunk.Content
	}

	last := envs[len(envs)-1]
	require.Equal(t, bus.EventResponseEnd, last.Event)
	require.Equal(t, recipient, last.RecipientID)
	var end bus.ResponseEnd
	require.NoError(t, json.Unmarshal(last.Data, &end))
	require.Equal(t, id, end.ID)
	require.Empty(t, end.Error)
	return id, content
}
