package schema

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ChatOptions configures a single completion request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// FragmentStream is a lazy, finite, non-restartable sequence of generated
// text fragments. Next returns io.EOF once the sequence is exhausted. The
// caller must call Close when done, even if iteration ended early.
//
// FragmentStream is not safe for concurrent use.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// StreamProvider is the interface every completion backend must satisfy.
type StreamProvider interface {
	Stream(ctx context.Context, messages Messages, opts ChatOptions) (FragmentStream, error)
	DefaultModel() string
}

// Collect drains stream and returns the concatenated fragments.
// The stream is closed before Collect returns.
func Collect(stream FragmentStream) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		fragment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(fragment)
	}
}
