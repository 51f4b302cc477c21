package bus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that are not valid envelopes or carry
// an invalid payload.
var ErrMalformed = errors.New("malformed event")

// Decode parses one raw frame into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	return env, nil
}

// DecodeNewMessage extracts and validates the payload of a new-message envelope.
func DecodeNewMessage(env Envelope) (NewMessage, error) {
	if env.Event != EventNewMessage {
		return NewMessage{}, fmt.Errorf("%w: expected %s, got %s", ErrMalformed, EventNewMessage, env.Event)
	}
	if len(env.Data) == 0 {
		return NewMessage{}, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	var msg NewMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		return NewMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return NewMessage{}, err
	}
	return msg, nil
}

// EncodeNewMessage builds a new-message frame.
func EncodeNewMessage(msg NewMessage) ([]byte, error) {
	return encode(EventNewMessage, "", msg)
}

// EncodeChunk builds an llm-response frame addressed to recipientID.
func EncodeChunk(recipientID string, chunk ResponseChunk) ([]byte, error) {
	return encode(EventResponse, recipientID, chunk)
}

// EncodeEnd builds an llm-response-end frame addressed to recipientID.
func EncodeEnd(recipientID string, end ResponseEnd) ([]byte, error) {
	return encode(EventResponseEnd, recipientID, end)
}

func encode(event Event, recipientID string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, RecipientID: recipientID, Data: data})
}
