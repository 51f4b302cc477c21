package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/hermes/internal/config"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestOnboardCreatesConfigAndPersona(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	out := run(t, "", "onboard", "--config", path)
	assert.Contains(t, out, "Created config")
	assert.Contains(t, out, "Created persona")

	cfg, err := config.LoadWith(path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "persona.md"), cfg.Agent.PersonaPath)

	data, err := os.ReadFile(filepath.Join(dir, "persona.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: hermes")

	out = run(t, "\n", "onboard", "--config", path)
	assert.Contains(t, out, "Config refreshed")
	assert.NotContains(t, out, "Created persona")
}

func TestStatusPrintsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.DefaultConfig()
	cfg.Backend.APIKey = "ouro-key-1234567890"
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Gateway.Port = 1 // nothing listens here
	require.NoError(t, config.Save(&cfg, path))

	out := run(t, "", "status", "--config", path)
	assert.Contains(t, out, "http://localhost:8003")
	assert.Contains(t, out, "ouro-key-1...")
	assert.Contains(t, out, "OpenAI *")
	assert.Contains(t, out, "not running")
}
