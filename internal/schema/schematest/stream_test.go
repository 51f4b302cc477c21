package schematest

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/hermes/internal/schema"
)

func TestCollect(t *testing.T) {
	s := NewStaticStream("a", "b", "c")
	text, err := schema.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
	assert.True(t, s.Closed())

	boom := errors.New("boom")
	text, err = schema.Collect(NewStaticStream("a").FailAfter(boom))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", text)
}

func TestStaticStreamAfterClose(t *testing.T) {
	s := NewStaticStream("a")
	require.NoError(t, s.Close())
	_, err := s.Next()
	assert.ErrorIs(t, err, io.EOF)
}
