package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona configures the agent's system instruction and memory policy.
// It is loaded from a markdown file with optional YAML front matter:
//
//	---
//	name: support
//	window: 8
//	eviction: true
//	---
//	You are a concise support assistant.
type Persona struct {
	Name     string `yaml:"name"`
	Window   int    `yaml:"window"`
	Eviction bool   `yaml:"eviction"`

	// Instructions is the markdown body after the front matter.
	Instructions string `yaml:"-"`
}

// DefaultPersona mirrors NewMemory's defaults.
func DefaultPersona() Persona {
	return Persona{
		Name:         "assistant",
		Window:       DefaultWindow,
		Instructions: DefaultSystemMessage,
	}
}

// LoadPersona reads and parses a persona file.
func LoadPersona(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona: %w", err)
	}
	return ParsePersona(string(data))
}

// ParsePersona parses persona markdown. Content without front matter is
// used as the instruction verbatim.
func ParsePersona(content string) (Persona, error) {
	p := DefaultPersona()

	body := content
	if strings.HasPrefix(content, "---") {
		// Extract YAML block between first --- and second ---
		rest := content[3:]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return Persona{}, fmt.Errorf("parse persona: unterminated front matter")
		}
		if err := yaml.Unmarshal([]byte(rest[:end]), &p); err != nil {
			return Persona{}, fmt.Errorf("parse persona front matter: %w", err)
		}
		body = rest[end+len("\n---"):]
	}

	if instructions := strings.TrimSpace(body); instructions != "" {
		p.Instructions = instructions
	}
	if p.Window < 1 {
		p.Window = DefaultWindow
	}
	return p, nil
}

// MemoryOptions translates the persona into Memory options.
func (p Persona) MemoryOptions() []MemoryOption {
	return []MemoryOption{
		WithSystemMessage(p.Instructions),
		WithWindow(p.Window),
		WithEviction(p.Eviction),
	}
}
