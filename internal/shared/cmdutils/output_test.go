package cmdutils

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestMark(t *testing.T) {
	assert.Equal(t, "✓", Mark(true))
	assert.Equal(t, "✗", Mark(false))
}

func TestTokenHint(t *testing.T) {
	assert.Equal(t, "(not configured)", TokenHint(""))
	assert.Equal(t, "short", TokenHint("short"))
	assert.Equal(t, "sk-1234567...", TokenHint("sk-1234567890abcdef"))
}

func TestRowAndRule(t *testing.T) {
	var buf bytes.Buffer
	Row(&buf, "Backend", "http://localhost:8003")
	Rule(&buf, 4)
	assert.Equal(t, "  Backend:     http://localhost:8003\n----\n", buf.String())
}
