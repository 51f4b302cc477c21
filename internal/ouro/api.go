package ouro

import (
	"context"
	"net/http"
	"net/url"

	"github.com/crystaldolphin/hermes/internal/schema"
)

var (
	_ schema.AccountProvider   = (*Client)(nil)
	_ schema.Subscriber        = (*Client)(nil)
	_ schema.ConversationStore = (*Client)(nil)
)

// Me returns the account the API key belongs to.
func (c *Client) Me(ctx context.Context) (schema.User, error) {
	var u schema.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return schema.User{}, err
	}
	return u, nil
}

// Subscribe asks the backend to push conversation events to the agent's
// websocket. It must be called after every successful connect.
func (c *Client) Subscribe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/conversations/subscribe", nil, nil)
}

// Conversation retrieves conversation metadata. A missing conversation
// returns an error matching ErrNotFound.
func (c *Client) Conversation(ctx context.Context, id string) (schema.Conversation, error) {
	var conv schema.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return schema.Conversation{}, err
	}
	if conv.ID == "" {
		conv.ID = id
	}
	return conv, nil
}

// Messages lists a conversation's history, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]schema.StoredMessage, error) {
	var msgs []schema.StoredMessage
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CreateMessage persists a reply. msg.ID is the id already streamed to the
// client, so retries do not create duplicates.
func (c *Client) CreateMessage(ctx context.Context, conversationID string, msg schema.NewMessage) error {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	return c.do(ctx, http.MethodPost, path, msg, nil)
}
