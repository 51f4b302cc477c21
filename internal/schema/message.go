package schema

// Role identifies the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a prompt sent to the completion provider.
// Messages are values; once built they are never mutated in place.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
