package agent

// AgentConfig holds the relay's reply-generation settings.
type AgentConfig struct {
	Model        string  `json:"model"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
	MemoryWindow int     `json:"memoryWindow"`
	Eviction     bool    `json:"eviction"`
	// PersonaPath points at a markdown persona file; empty uses the built-in persona.
	PersonaPath string `json:"personaPath,omitempty"`
	// PacingMs is the pause between streamed fragments.
	PacingMs int `json:"pacingMs"`
	// Summarizer is "placeholder" or "llm".
	Summarizer string `json:"summarizer"`
}

const (
	SummarizerPlaceholder = "placeholder"
	SummarizerLLM         = "llm"
)

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:        "gpt-4o-mini",
		MaxTokens:    1024,
		Temperature:  0.7,
		MemoryWindow: 5,
		PacingMs:     1,
		Summarizer:   SummarizerPlaceholder,
	}
}
