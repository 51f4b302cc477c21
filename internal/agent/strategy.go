package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/crystaldolphin/hermes/internal/schema"
	"github.com/crystaldolphin/hermes/internal/shared/stringutils"
)

// Digest is what a Summarizer extracts from a batch of evicted messages.
type Digest struct {
	Summary string
	Notes   []string
}

// Summarizer condenses messages leaving the short-term window.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []schema.Message) (Digest, error)
}

// Retriever returns up to k snippets relevant to query, best match first.
type Retriever interface {
	Retrieve(query string, k int) []string
}

// PlaceholderSummarizer records only how many messages were folded away.
type PlaceholderSummarizer struct{}

func (PlaceholderSummarizer) Summarize(_ context.Context, msgs []schema.Message) (Digest, error) {
	notes := make([]string, len(msgs))
	for i := range msgs {
		notes[i] = fmt.Sprintf("Important point from message %d", i+1)
	}
	return Digest{
		Summary: fmt.Sprintf("Summary of %d messages", len(msgs)),
		Notes:   notes,
	}, nil
}

// NoopRetriever never returns anything.
type NoopRetriever struct{}

func (NoopRetriever) Retrieve(string, int) []string { return nil }

// LLMSummarizer asks the completion provider for a short summary of the
// evicted messages.
type LLMSummarizer struct {
	provider schema.StreamProvider
	opts     schema.ChatOptions
}

func NewLLMSummarizer(provider schema.StreamProvider, model string) *LLMSummarizer {
	return &LLMSummarizer{
		provider: provider,
		opts:     schema.NewChatOptions(stringutils.OrDefault(model, provider.DefaultModel()), 512, 0.3),
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, msgs []schema.Message) (Digest, error) {
	if len(msgs) == 0 {
		return Digest{}, nil
	}

	prompt := schema.NewMessages(
		schema.NewSystemMessage("You summarize conversations. Reply with two or three plain sentences capturing facts, decisions and open questions."),
		schema.NewUserMessage("## Conversation to Summarize\n"+formatMessagesForPrompt(msgs)),
	)

	stream, err := s.provider.Stream(ctx, prompt, s.opts)
	if err != nil {
		return Digest{}, fmt.Errorf("summary request: %w", err)
	}
	text, err := schema.Collect(stream)
	if err != nil {
		return Digest{}, fmt.Errorf("summary stream: %w", err)
	}

	return Digest{Summary: strings.TrimSpace(stringutils.StripThink(text))}, nil
}

// formatMessagesForPrompt renders messages as labelled lines.
func formatMessagesForPrompt(msgs []schema.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(msg.Role)), msg.Content))
	}
	return strings.Join(lines, "\n")
}
