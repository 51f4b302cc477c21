package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersonaWithFrontMatter(t *testing.T) {
	p, err := ParsePersona("---\nname: support\nwindow: 8\neviction: true\n---\n\nYou are terse.\n")
	require.NoError(t, err)
	assert.Equal(t, Persona{Name: "support", Window: 8, Eviction: true, Instructions: "You are terse."}, p)

	m := NewMemory(p.MemoryOptions()...)
	assert.Equal(t, "You are terse.", m.Build("q").Messages[0].Content)
}

func TestParsePersonaPlainBody(t *testing.T) {
	p, err := ParsePersona("Be kind.")
	require.NoError(t, err)
	assert.Equal(t, "Be kind.", p.Instructions)
	assert.Equal(t, DefaultWindow, p.Window)
	assert.False(t, p.Eviction)
}

func TestParsePersonaDefaultsWhenEmpty(t *testing.T) {
	p, err := ParsePersona("---\nname: x\n---\n")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemMessage, p.Instructions)
	assert.Equal(t, DefaultWindow, p.Window)
}

func TestParsePersonaErrors(t *testing.T) {
	_, err := ParsePersona("---\nname: x\n")
	assert.ErrorContains(t, err, "unterminated")

	_, err = ParsePersona("---\nwindow: [1\n---\nbody")
	assert.Error(t, err)
}

func TestLoadPersona(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nwindow: 2\n---\nHi"), 0o600))

	p, err := LoadPersona(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Window)

	_, err = LoadPersona(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
