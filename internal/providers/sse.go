package providers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxSSELine = 1 << 20

// chatChunk is the subset of a streamed chat completion chunk we care about.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// sseStream turns an OpenAI-style server-sent event body into fragments.
// It implements schema.FragmentStream.
type sseStream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	lines    []string
	finished bool
	done     bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &sseStream{body: body, scanner: scanner}
}

func (s *sseStream) Next() (string, error) {
	for !s.done {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.done = true
				return "", fmt.Errorf("read event stream: %w", err)
			}
			// Flush a final event with no trailing blank line.
			fragment, err := s.flush()
			if err != nil {
				s.done = true
				return "", err
			}
			if fragment != "" {
				return fragment, nil
			}
			if s.done {
				break
			}
			s.done = true
			if !s.finished {
				return "", io.ErrUnexpectedEOF
			}
			break
		}

		line := s.scanner.Text()
		if line != "" {
			s.lines = append(s.lines, line)
			continue
		}
		fragment, err := s.flush()
		if err != nil {
			s.done = true
			return "", err
		}
		if fragment != "" {
			return fragment, nil
		}
	}
	return "", io.EOF
}

// flush decodes the buffered event lines.
func (s *sseStream) flush() (string, error) {
	defer func() { s.lines = s.lines[:0] }()

	var dataParts []string
	for _, l := range s.lines {
		if strings.HasPrefix(l, "data:") {
			dataParts = append(dataParts, strings.TrimSpace(l[5:]))
		}
	}
	if len(dataParts) == 0 {
		return "", nil
	}
	data := strings.Join(dataParts, "\n")
	if data == "[DONE]" {
		s.finished = true
		s.done = true
		return "", nil
	}
	if data == "" {
		return "", nil
	}

	var chunk chatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", fmt.Errorf("decode stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return "", &ProviderError{Type: chunk.Error.Type, Message: chunk.Error.Message}
	}

	var sb strings.Builder
	for _, choice := range chunk.Choices {
		sb.WriteString(choice.Delta.Content)
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finished = true
		}
	}
	return sb.String(), nil
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
