// Package schematest provides in-memory completion streams for tests.
package schematest

import (
	"io"

	"github.com/crystaldolphin/hermes/internal/schema"
)

var _ schema.FragmentStream = (*StaticStream)(nil)

// StaticStream replays a fixed list of fragments, optionally failing with
// err once they are exhausted.
type StaticStream struct {
	fragments []string
	err       error
	pos       int
	closed    bool
}

func NewStaticStream(fragments ...string) *StaticStream {
	return &StaticStream{fragments: fragments}
}

// FailAfter makes the stream return err instead of io.EOF after the last fragment.
func (s *StaticStream) FailAfter(err error) *StaticStream {
	s.err = err
	return s
}

func (s *StaticStream) Next() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if s.pos < len(s.fragments) {
		f := s.fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *StaticStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *StaticStream) Closed() bool { return s.closed }
