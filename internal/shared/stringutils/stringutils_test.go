package stringutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 5))
	assert.Equal(t, "hel...", Truncate("hello", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
	assert.Equal(t, "", Truncate("", 3))
}

func TestStripThink(t *testing.T) {
	assert.Equal(t, "answer", StripThink("<think>\nhmm\n</think>answer"))
	assert.Equal(t, "a b", StripThink("a <think>x</think>b"))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "x", OrDefault("x", "y"))
	assert.Equal(t, "y", OrDefault("", "y"))
}
