// Package bus defines the event envelope exchanged with the conversation
// backend and with front-end sockets.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/crystaldolphin/hermes/internal/shared/stringutils"
)

type Event string

const (
	// EventNewMessage is pushed by the backend when a conversation receives a message.
	EventNewMessage Event = "new-message"
	// EventResponse carries one generated fragment.
	EventResponse Event = "llm-response"
	// EventResponseEnd terminates a streamed reply. It is always the last event for an id.
	EventResponseEnd Event = "llm-response-end"
)

// Envelope is the outer frame of every message on the wire.
type Envelope struct {
	Event       Event           `json:"event"`
	RecipientID string          `json:"recipient_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// NewMessage is the payload of a new-message event.
type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	UserID         string `json:"user_id"`
}

// Validate reports whether all required fields are present.
func (m NewMessage) Validate() error {
	switch {
	case m.ConversationID == "":
		return fmt.Errorf("%w: missing conversation_id", ErrMalformed)
	case m.UserID == "":
		return fmt.Errorf("%w: missing user_id", ErrMalformed)
	}
	return nil
}

// ContentPreview returns a short snippet of the message text for logging.
func (m NewMessage) ContentPreview() string {
	return stringutils.Truncate(m.Text, 80)
}

// ResponseChunk is the payload of an llm-response event.
type ResponseChunk struct {
	Content string `json:"content"`
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
}

// ResponseEnd is the payload of an llm-response-end event. Error is set
// only when generation failed.
type ResponseEnd struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Error  string `json:"error,omitempty"`
}
