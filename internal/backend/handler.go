package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/crystaldolphin/hermes/internal/agent"
	"github.com/crystaldolphin/hermes/internal/bus"
	"github.com/crystaldolphin/hermes/internal/providers"
	"github.com/crystaldolphin/hermes/internal/relay"
	"github.com/crystaldolphin/hermes/internal/schema"
)

// Outcome classifies how one inbound frame was handled.
type Outcome int

const (
	// OutcomeReplied means a reply was streamed and persisted.
	OutcomeReplied Outcome = iota
	// OutcomeIgnored means the frame was not a new-message event.
	OutcomeIgnored
	// OutcomeSkipped means the event was filtered on purpose: unknown
	// conversation, self-echo, or an unsupported participant count.
	OutcomeSkipped
	// OutcomeMalformed means the frame could not be decoded.
	OutcomeMalformed
	// OutcomeFailed means a collaborator failed while handling the event.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// EventHandler processes one inbound frame to completion.
type EventHandler interface {
	Handle(ctx context.Context, raw []byte) Outcome
}

const persistTimeout = 15 * time.Second

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// AgentID is the relay's own user id.
	AgentID string

	Chat          schema.ChatOptions
	MemoryOptions []agent.MemoryOption

	// Structured renders the persisted rich-text form of a reply. Optional.
	Structured func(text string) (json.RawMessage, error)

	Logger *slog.Logger
}

// Handler turns new-message events into streamed, persisted replies.
type Handler struct {
	agentID    string
	store      schema.ConversationStore
	provider   schema.StreamProvider
	relay      *relay.Relay
	chat       schema.ChatOptions
	memoryOpts []agent.MemoryOption
	structured func(string) (json.RawMessage, error)
	logger     *slog.Logger
}

func NewHandler(cfg HandlerConfig, store schema.ConversationStore, provider schema.StreamProvider, r *relay.Relay) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chat := cfg.Chat
	if chat.Model == "" {
		chat.Model = provider.DefaultModel()
	}
	return &Handler{
		agentID:    cfg.AgentID,
		store:      store,
		provider:   provider,
		relay:      r,
		chat:       chat,
		memoryOpts: cfg.MemoryOptions,
		structured: cfg.Structured,
		logger:     logger.With("component", "handler"),
	}
}

func (h *Handler) Handle(ctx context.Context, raw []byte) Outcome {
	env, err := bus.Decode(raw)
	if err != nil {
		h.logger.Warn("dropping malformed frame", "error", err, "bytes", len(raw))
		return OutcomeMalformed
	}
	if env.Event != bus.EventNewMessage {
		h.logger.Info("ignoring backend event", "event", env.Event)
		return OutcomeIgnored
	}
	msg, err := bus.DecodeNewMessage(env)
	if err != nil {
		h.logger.Warn("dropping malformed new-message", "error", err)
		return OutcomeMalformed
	}

	log := h.logger.With("conversation_id", msg.ConversationID, "user_id", msg.UserID)

	conv, err := h.store.Conversation(ctx, msg.ConversationID)
	if errors.Is(err, schema.ErrNotFound) {
		log.Debug("conversation not found, skipping")
		return OutcomeSkipped
	}
	if err != nil {
		log.Warn("retrieve conversation", "error", err)
		return OutcomeFailed
	}

	if msg.UserID == h.agentID {
		log.Debug("skipping own message")
		return OutcomeSkipped
	}

	recipient, ok := conv.Counterpart(h.agentID)
	if !ok {
		log.Debug("unsupported conversation, skipping", "members", len(conv.Metadata.Members))
		return OutcomeSkipped
	}

	log.Info("new message", "preview", msg.ContentPreview())

	history, err := h.store.Messages(ctx, msg.ConversationID)
	if err != nil {
		log.Warn("list messages", "error", err)
		return OutcomeFailed
	}

	mem := agent.NewMemory(h.memoryOpts...)
	for _, m := range history {
		if err := mem.Add(ctx, m.ToMessage(h.agentID)); err != nil {
			log.Warn("fold history into memory", "error", err)
		}
	}
	prompt := mem.Build(msg.Text)

	target := relay.Target{RecipientID: recipient, RouteID: h.agentID}

	stream, err := h.provider.Stream(ctx, prompt, h.chat)
	if err != nil {
		id := h.relay.Fail(ctx, target)
		log.Error("open completion stream", append(providerAttrs(err), "message_id", id, "error", err)...)
		return OutcomeFailed
	}

	res, err := h.relay.Relay(ctx, stream, target)
	if err != nil {
		log.Error("completion stream failed, reply not persisted", append(providerAttrs(err),
			"message_id", res.MessageID, "fragments", res.Fragments, "error", err)...)
		return OutcomeFailed
	}
	if res.Text == "" {
		log.Warn("provider returned an empty reply", "message_id", res.MessageID)
	}

	reply := schema.NewMessage{ID: res.MessageID, Text: res.Text}
	if h.structured != nil {
		doc, err := h.structured(res.Text)
		if err != nil {
			log.Warn("render structured reply", "message_id", res.MessageID, "error", err)
		} else {
			reply.JSON = doc
		}
	}

	// A reply that was fully streamed is persisted even during shutdown.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := h.store.CreateMessage(persistCtx, msg.ConversationID, reply); err != nil {
		log.Error("persist reply", "message_id", res.MessageID, "error", err)
		return OutcomeFailed
	}

	log.Info("reply sent",
		"message_id", res.MessageID,
		"recipient_id", recipient,
		"fragments", res.Fragments,
		"delivered", res.Delivered)
	return OutcomeReplied
}

// providerAttrs describes a failure reported by the completion endpoint
// itself, so logs tell a rate limit apart from a rejected request.
func providerAttrs(err error) []any {
	var perr *providers.ProviderError
	if !errors.As(err, &perr) {
		return nil
	}
	return []any{"status", perr.StatusCode, "retryable", perr.Retryable()}
}
