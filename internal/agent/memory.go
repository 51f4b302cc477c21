// Package agent builds the bounded prompt context the relay sends to the
// completion provider for each incoming message.
package agent

import (
	"context"
	"fmt"
	"slices"

	"github.com/crystaldolphin/hermes/internal/schema"
)

const (
	DefaultWindow        = 5
	DefaultSystemMessage = "You are a helpful assistant."
	DefaultRetrieveLimit = 3
)

// Prefixes used when folding memory state into system messages.
const (
	summaryPrefix  = "Long-term summary: "
	notePrefix     = "Important point: "
	relevantPrefix = "Relevant past message: "
)

// Memory holds the per-conversation context state: a short-term window of
// at most window messages (when eviction is enabled), an append-only
// long-term summary, salient notes, and the system instruction.
//
// Memory is built fresh for every request and is not safe for concurrent use.
type Memory struct {
	window        int
	systemMessage string
	evict         bool
	retrieveLimit int
	summarizer    Summarizer
	retriever     Retriever

	shortTerm []schema.Message
	summary   string
	notes     []string
	count     int
}

type MemoryOption func(*Memory)

// WithWindow sets the short-term window capacity. Values below 1 are ignored.
func WithWindow(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.window = n
		}
	}
}

// WithSystemMessage sets the system instruction. An empty instruction is
// omitted from built prompts.
func WithSystemMessage(s string) MemoryOption {
	return func(m *Memory) { m.systemMessage = s }
}

func WithSummarizer(s Summarizer) MemoryOption {
	return func(m *Memory) {
		if s != nil {
			m.summarizer = s
		}
	}
}

func WithRetriever(r Retriever) MemoryOption {
	return func(m *Memory) {
		if r != nil {
			m.retriever = r
		}
	}
}

// WithEviction enables folding messages that overflow the window into the
// long-term summary. It is off by default, so the window grows unbounded.
func WithEviction(enabled bool) MemoryOption {
	return func(m *Memory) { m.evict = enabled }
}

func WithRetrieveLimit(k int) MemoryOption {
	return func(m *Memory) {
		if k >= 0 {
			m.retrieveLimit = k
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		window:        DefaultWindow,
		systemMessage: DefaultSystemMessage,
		retrieveLimit: DefaultRetrieveLimit,
		summarizer:    PlaceholderSummarizer{},
		retriever:     NoopRetriever{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends msg to the short-term window. With eviction enabled, messages
// beyond the window capacity are summarized and merged into the long-term
// state before they leave the window. If summarization fails the window is
// left as it is and the error is returned.
func (m *Memory) Add(ctx context.Context, msg schema.Message) error {
	m.shortTerm = append(m.shortTerm, msg)
	m.count++

	if !m.evict || len(m.shortTerm) <= m.window {
		return nil
	}

	excess := len(m.shortTerm) - m.window
	evicted := slices.Clone(m.shortTerm[:excess])

	digest, err := m.summarizer.Summarize(ctx, evicted)
	if err != nil {
		return fmt.Errorf("summarize %d evicted messages: %w", len(evicted), err)
	}

	m.summary = combineSummaries(m.summary, digest.Summary)
	m.notes = append(m.notes, digest.Notes...)
	m.shortTerm = slices.Clone(m.shortTerm[excess:])
	return nil
}

// Build composes the prompt for query. It never mutates the memory, so
// repeated calls with the same state and query return identical prompts.
func (m *Memory) Build(query string) schema.Messages {
	out := schema.NewMessages()

	if m.systemMessage != "" {
		out.AddSystem(m.systemMessage)
	}
	if m.summary != "" {
		out.AddSystem(summaryPrefix + m.summary)
	}
	for _, note := range m.notes {
		out.AddSystem(notePrefix + note)
	}
	if m.retrieveLimit > 0 {
		for _, snippet := range m.retriever.Retrieve(query, m.retrieveLimit) {
			out.AddSystem(relevantPrefix + snippet)
		}
	}
	for _, msg := range m.shortTerm {
		out.Add(msg)
	}
	out.AddUser(query)

	return out
}

// Window returns a copy of the short-term window.
func (m *Memory) Window() []schema.Message { return slices.Clone(m.shortTerm) }

func (m *Memory) Summary() string { return m.summary }

// Notes returns a copy of the salient notes in insertion order.
func (m *Memory) Notes() []string { return slices.Clone(m.notes) }

// Count is the number of messages ever added.
func (m *Memory) Count() int { return m.count }

func combineSummaries(old, next string) string {
	switch {
	case next == "":
		return old
	case old == "":
		return next
	}
	return old + "\n" + next
}
