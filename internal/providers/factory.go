package providers

import "github.com/crystaldolphin/hermes/internal/schema"

// DefaultModel is used when neither config nor request names a model.
const DefaultModel = "gpt-4o-mini"

// Params are the raw values needed to construct a schema.StreamProvider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "openrouter", "ollama"
}

// New creates the schema.StreamProvider for the given params. Every
// supported endpoint speaks the OpenAI streaming protocol.
func New(p Params) schema.StreamProvider {
	model := p.DefaultModel
	if model == "" {
		model = DefaultModel
	}
	return NewOpenAIProvider(p.APIKey, p.APIBase, model, p.ProviderName, p.ExtraHeaders)
}
