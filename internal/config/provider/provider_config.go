package provider

const (
	ProviderCustom     = "custom"
	ProviderOpenRouter = "openrouter"
	ProviderAiHubMix   = "aihubmix"
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderGroq       = "groq"
	ProviderMoonshot   = "moonshot"
	ProviderVLLM       = "vllm"
	ProviderOllama     = "ollama"
)

// ProviderConfig holds credentials for one completion endpoint.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for every supported endpoint.
type ProvidersConfig struct {
	Custom     ProviderConfig `json:"custom"`
	OpenRouter ProviderConfig `json:"openrouter"`
	AiHubMix   ProviderConfig `json:"aihubmix"`
	OpenAI     ProviderConfig `json:"openai"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Groq       ProviderConfig `json:"groq"`
	Moonshot   ProviderConfig `json:"moonshot"`
	VLLM       ProviderConfig `json:"vllm"`
	Ollama     ProviderConfig `json:"ollama"`
}

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{}
}

// ByName returns a pointer to the ProviderConfig field matching the given
// registry name. Returns nil if the name is unknown.
func (p *ProvidersConfig) ByName(name string) *ProviderConfig {
	switch name {
	case ProviderCustom:
		return &p.Custom
	case ProviderOpenRouter:
		return &p.OpenRouter
	case ProviderAiHubMix:
		return &p.AiHubMix
	case ProviderOpenAI:
		return &p.OpenAI
	case ProviderDeepSeek:
		return &p.DeepSeek
	case ProviderGroq:
		return &p.Groq
	case ProviderMoonshot:
		return &p.Moonshot
	case ProviderVLLM:
		return &p.VLLM
	case ProviderOllama:
		return &p.Ollama
	}
	return nil
}
