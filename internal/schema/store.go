package schema

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by a ConversationStore when the requested
// conversation does not exist.
var ErrNotFound = errors.New("not found")

// User is an account in the conversation backend. The relay's own User.ID
// is its agent identity.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

type ConversationMetadata struct {
	Members []string `json:"members"`
}

// Conversation is the metadata record of one conversation.
type Conversation struct {
	ID       string               `json:"id"`
	Name     string               `json:"name,omitempty"`
	Metadata ConversationMetadata `json:"metadata"`
}

// Counterpart returns the participant other than self. Only two-member
// conversations have a counterpart; group conversations are unsupported.
func (c Conversation) Counterpart(self string) (string, bool) {
	members := c.Metadata.Members
	if len(members) != 2 {
		return "", false
	}
	if members[0] != self {
		return members[0], true
	}
	if members[1] == self {
		return "", false
	}
	return members[1], true
}

// StoredMessage is one message as persisted by the conversation backend.
type StoredMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// ToMessage converts a stored message into a prompt message. A message is
// the assistant's iff it was authored by agentID.
func (m StoredMessage) ToMessage(agentID string) Message {
	if m.UserID == agentID {
		return NewAssistantMessage(m.Text)
	}
	return NewUserMessage(m.Text)
}

// NewMessage is a reply to persist. ID is the id already streamed to the
// client, which makes creation idempotent.
type NewMessage struct {
	ID   string          `json:"id"`
	Text string          `json:"text"`
	JSON json.RawMessage `json:"json,omitempty"`
}

// AccountProvider yields the relay's own account.
type AccountProvider interface {
	Me(ctx context.Context) (User, error)
}

// Subscriber registers the current backend link for conversation events.
type Subscriber interface {
	Subscribe(ctx context.Context) error
}

// ConversationStore reads conversations and persists replies.
type ConversationStore interface {
	Conversation(ctx context.Context, id string) (Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]StoredMessage, error)
	CreateMessage(ctx context.Context, conversationID string, msg NewMessage) error
}
