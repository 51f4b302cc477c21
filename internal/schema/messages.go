package schema

import "encoding/json"

// Messages is the ordered prompt exchanged with the completion provider.
// It owns typed append methods so callers never construct raw maps.
type Messages struct {
	Messages []Message
}

// NewMessages returns a Messages initialised with the given messages.
// Called with no arguments it returns an empty Messages ready for use.
func NewMessages(msgs ...Message) Messages {
	if len(msgs) == 0 {
		return Messages{Messages: make([]Message, 0)}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Messages{Messages: out}
}

// AddSystem appends a system message.
func (mh *Messages) AddSystem(content string) {
	mh.Add(NewSystemMessage(content))
}

// AddUser appends a user message.
func (mh *Messages) AddUser(content string) {
	mh.Add(NewUserMessage(content))
}

// AddAssistant appends an assistant message.
func (mh *Messages) AddAssistant(content string) {
	mh.Add(NewAssistantMessage(content))
}

func (mh *Messages) Add(msg Message) {
	mh.Messages = append(mh.Messages, msg)
}

// Append copies all messages from other into mh.
func (mh *Messages) Append(other Messages) {
	mh.Messages = append(mh.Messages, other.Messages...)
}

func (mh Messages) Len() int { return len(mh.Messages) }

// Clone returns a copy of mh with an independent backing slice.
func (mh Messages) Clone() Messages {
	cloned := make([]Message, len(mh.Messages))
	copy(cloned, mh.Messages)
	return Messages{Messages: cloned}
}

// MarshalJSON encodes the prompt as the bare array providers expect.
func (mh Messages) MarshalJSON() ([]byte, error) {
	if mh.Messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(mh.Messages)
}
