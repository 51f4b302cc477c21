// Package config defines the configuration schema for hermes.
//
// The JSON file holds durable settings; the OURO_* and OPENAI_* environment
// variables (or a .env file) override the credentials and endpoints in it.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/crystaldolphin/hermes/internal/config/agent"
	"github.com/crystaldolphin/hermes/internal/config/backend"
	"github.com/crystaldolphin/hermes/internal/config/gateway"
	"github.com/crystaldolphin/hermes/internal/config/provider"
)

// Config is the root configuration object, loaded from ~/.hermes/config.json.
type Config struct {
	Agent     agent.AgentConfig        `json:"agent"`
	Backend   backend.BackendConfig    `json:"backend"`
	Gateway   gateway.GatewayConfig    `json:"gateway"`
	Providers provider.ProvidersConfig `json:"providers"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agent:     agent.DefaultAgentConfig(),
		Backend:   backend.DefaultBackendConfig(),
		Gateway:   gateway.DefaultGatewayConfig(),
		Providers: provider.DefaultProvidersConfig(),
	}
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name (e.g. "openrouter", "ollama"). Returns nil if unknown.
func (c *Config) ProviderByName(name string) *provider.ProviderConfig {
	return c.Providers.ByName(name)
}

// PersonaPath returns the expanded persona file path, or "" when unset.
func (c *Config) PersonaPath() string {
	return expandHome(c.Agent.PersonaPath)
}

// Validate reports settings the relay cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.APIKey == "" {
		errs = append(errs, errors.New("backend api key is not set (OURO_API_KEY)"))
	}
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend url is not set (OURO_BACKEND_URL)"))
	}
	if c.Backend.WebsocketURL() == "" {
		errs = append(errs, errors.New("backend websocket url is not set (OURO_BACKEND_WS_URL)"))
	}
	if c.Agent.MemoryWindow < 1 {
		errs = append(errs, errors.New("agent.memoryWindow must be at least 1"))
	}
	return errors.Join(errs...)
}

func expandHome(p string) string {
	if len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
