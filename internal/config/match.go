package config

import (
	"strings"

	"github.com/crystaldolphin/hermes/internal/config/provider"
	"github.com/crystaldolphin/hermes/internal/providers"
)

// MatchResult is the resolved provider config and registry name for a model.
type MatchResult struct {
	Provider *provider.ProviderConfig
	Name     string // e.g. "openrouter", "ollama"
}

// MatchProvider resolves which provider config and registry entry to use for model.
// If model is empty, agent.model is used.
//
// Priority order:
//  1. Explicit provider prefix in model string (e.g. "deepseek/deepseek-chat" → deepseek)
//  2. Keyword match in model name (registry order)
//  3. Fallback: the first configured provider in registry order
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Agent.Model
	}
	modelLower := strings.ToLower(model)
	modelNorm := strings.ReplaceAll(modelLower, "-", "_")
	modelPrefix, _, _ := strings.Cut(modelLower, "/")
	normalizedPrefix := strings.ReplaceAll(modelPrefix, "-", "_")

	kwMatches := func(kw string) bool {
		kw = strings.ToLower(kw)
		kwNorm := strings.ReplaceAll(kw, "-", "_")
		return strings.Contains(modelLower, kw) || strings.Contains(modelNorm, kwNorm)
	}

	// 1. Explicit provider prefix wins.
	for _, spec := range providers.Providers {
		p := c.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		if modelPrefix != "" && normalizedPrefix == spec.Name && configured(spec, p) {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	// 2. Keyword match.
	for _, spec := range providers.Providers {
		p := c.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		for _, kw := range spec.Keywords {
			if kwMatches(kw) && configured(spec, p) {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	// 3. Fallback: first configured provider.
	for _, spec := range providers.Providers {
		p := c.ProviderByName(spec.Name)
		if p != nil && configured(spec, p) {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	return MatchResult{}
}

// configured reports whether p carries enough to be used: an API key, or an
// API base for local deployments, which run without keys.
func configured(spec providers.ProviderSpec, p *provider.ProviderConfig) bool {
	if p.APIKey != "" {
		return true
	}
	return spec.IsLocal && p.APIBase != ""
}

// GetProvider returns the matched ProviderConfig for model (or nil).
func (c *Config) GetProvider(model string) *provider.ProviderConfig {
	return c.MatchProvider(model).Provider
}

// GetProviderName returns the registry name of the matched provider (or "").
func (c *Config) GetProviderName(model string) string {
	return c.MatchProvider(model).Name
}

// GetAPIBase resolves the effective API base URL for model.
// Precedence: user-configured apiBase > the registry default.
func (c *Config) GetAPIBase(model string) string {
	result := c.MatchProvider(model)
	if result.Provider != nil && result.Provider.APIBase != "" {
		return result.Provider.APIBase
	}
	if result.Name != "" {
		if spec := providers.FindByName(result.Name); spec != nil {
			return spec.DefaultAPIBase
		}
	}
	return ""
}

// GetAPIKey returns the API key for model (or "").
func (c *Config) GetAPIKey(model string) string {
	if p := c.GetProvider(model); p != nil {
		return p.APIKey
	}
	return ""
}
