package providers

import "strings"

// ProviderSpec is the metadata record for one OpenAI-compatible endpoint.
type ProviderSpec struct {
	Name        string   // config name, e.g. "openrouter"
	Keywords    []string // model-name keywords for matching (lowercase)
	DisplayName string   // shown in `hermes status`

	// Routing prefix a gateway accepts on model names, e.g. "openrouter/".
	ModelPrefix string

	// Gateway / local detection
	IsGateway           bool   // routes any model (OpenRouter, …)
	IsLocal             bool   // local deployment (vLLM, Ollama)
	DetectByKeyPrefix   string // match api_key prefix to identify gateway
	DetectByBaseKeyword string // match substring in api_base URL
	DefaultAPIBase      string // fallback base URL when none is configured

	// Strip everything up to the last "/" before sending the model name.
	StripModelPrefix bool
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToTitle(s.Name[:1]) + s.Name[1:]
}

// Providers is the registry. Order = match priority.
var Providers = []ProviderSpec{
	{
		Name:        "custom",
		DisplayName: "Custom",
	},
	{
		Name:                "openrouter",
		Keywords:            []string{"openrouter"},
		DisplayName:         "OpenRouter",
		ModelPrefix:         "openrouter",
		IsGateway:           true,
		DetectByKeyPrefix:   "sk-or-",
		DetectByBaseKeyword: "openrouter",
		DefaultAPIBase:      "https://openrouter.ai/api/v1",
	},
	{
		Name:                "aihubmix",
		Keywords:            []string{"aihubmix"},
		DisplayName:         "AiHubMix",
		IsGateway:           true,
		DetectByBaseKeyword: "aihubmix",
		DefaultAPIBase:      "https://aihubmix.com/v1",
		StripModelPrefix:    true,
	},
	{
		Name:           "openai",
		Keywords:       []string{"openai", "gpt", "o1", "o3", "o4"},
		DisplayName:    "OpenAI",
		DefaultAPIBase: "https://api.openai.com/v1",
	},
	{
		Name:           "deepseek",
		Keywords:       []string{"deepseek"},
		DisplayName:    "DeepSeek",
		ModelPrefix:    "deepseek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
	},
	{
		Name:           "groq",
		Keywords:       []string{"groq"},
		DisplayName:    "Groq",
		ModelPrefix:    "groq",
		DefaultAPIBase: "https://api.groq.com/openai/v1",
	},
	{
		Name:           "moonshot",
		Keywords:       []string{"moonshot", "kimi"},
		DisplayName:    "Moonshot",
		ModelPrefix:    "moonshot",
		DefaultAPIBase: "https://api.moonshot.ai/v1",
	},
	{
		Name:        "vllm",
		Keywords:    []string{"vllm"},
		DisplayName: "vLLM/Local",
		ModelPrefix: "hosted_vllm",
		IsLocal:     true,
	},
	{
		Name:                "ollama",
		Keywords:            []string{"ollama"},
		DisplayName:         "Ollama",
		IsLocal:             true,
		DetectByBaseKeyword: "11434",
		DefaultAPIBase:      "http://localhost:11434/v1",
	},
}

// FindByModel matches a standard provider by model-name keyword (case-insensitive).
// Gateways and local providers are matched by api_key/api_base instead.
func FindByModel(model string) *ProviderSpec {
	modelLower := strings.ToLower(model)
	modelPrefix, _, _ := strings.Cut(modelLower, "/")

	var std []int
	for i := range Providers {
		if !Providers[i].IsGateway && !Providers[i].IsLocal {
			std = append(std, i)
		}
	}

	// Prefer explicit provider prefix.
	for _, i := range std {
		if modelPrefix != "" && modelPrefix == Providers[i].Name {
			return &Providers[i]
		}
	}

	for _, i := range std {
		for _, kw := range Providers[i].Keywords {
			if strings.Contains(modelLower, kw) {
				return &Providers[i]
			}
		}
	}
	return nil
}

// FindGateway detects the gateway or local provider.
// Priority: (1) explicit provider name, (2) api_key prefix, (3) api_base keyword.
func FindGateway(providerName, apiKey, apiBase string) *ProviderSpec {
	if providerName != "" {
		if s := FindByName(providerName); s != nil && (s.IsGateway || s.IsLocal) {
			return s
		}
	}
	for i := range Providers {
		spec := &Providers[i]
		if spec.DetectByKeyPrefix != "" && strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKeyword != "" && strings.Contains(apiBase, spec.DetectByBaseKeyword) {
			return spec
		}
	}
	return nil
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	for i := range Providers {
		if Providers[i].Name == name {
			return &Providers[i]
		}
	}
	return nil
}
