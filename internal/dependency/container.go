// Package dependency wires the relay's services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/dig"

	"github.com/crystaldolphin/hermes/internal/agent"
	"github.com/crystaldolphin/hermes/internal/backend"
	"github.com/crystaldolphin/hermes/internal/channels"
	"github.com/crystaldolphin/hermes/internal/config"
	agentcfg "github.com/crystaldolphin/hermes/internal/config/agent"
	"github.com/crystaldolphin/hermes/internal/content"
	"github.com/crystaldolphin/hermes/internal/gateway"
	"github.com/crystaldolphin/hermes/internal/heartbeat"
	"github.com/crystaldolphin/hermes/internal/ouro"
	"github.com/crystaldolphin/hermes/internal/providers"
	"github.com/crystaldolphin/hermes/internal/relay"
	"github.com/crystaldolphin/hermes/internal/schema"
)

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	identity AgentIdentity
	registry *channels.Registry
	link     *backend.Link
	gateway  *gateway.Server
	reporter *heartbeat.Reporter
}

func (c *Container) Identity() schema.User         { return c.identity.User }
func (c *Container) Registry() *channels.Registry  { return c.registry }
func (c *Container) Link() *backend.Link           { return c.link }
func (c *Container) Gateway() *gateway.Server      { return c.gateway }
func (c *Container) Reporter() *heartbeat.Reporter { return c.reporter }

// AgentIdentity is the backend account the relay acts as. It is resolved
// once at startup and never changes.
type AgentIdentity struct{ schema.User }

// New builds and wires all services from cfg. ctx bounds the startup calls
// made against the backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := dig.New()

	constructors := []any{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		func() *slog.Logger { return logger },
		newRegistry,
		newOuroClient,
		newProvider,
		newIdentity,
		newPersona,
		newRelay,
		newHandler,
		newLink,
		newReporter,
		newGateway,
	}
	for _, fn := range constructors {
		if err := d.Provide(fn); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		identity AgentIdentity,
		registry *channels.Registry,
		link *backend.Link,
		gw *gateway.Server,
		reporter *heartbeat.Reporter,
	) {
		result = &Container{
			identity: identity,
			registry: registry,
			link:     link,
			gateway:  gw,
			reporter: reporter,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newRegistry(logger *slog.Logger) *channels.Registry {
	return channels.NewRegistry(logger)
}

func newOuroClient(cfg *config.Config, logger *slog.Logger) (*ouro.Client, error) {
	return ouro.NewClient(ouro.Config{
		BaseURL: cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Logger:  logger,
	})
}

func newProvider(cfg *config.Config) (schema.StreamProvider, error) {
	model := cfg.Agent.Model
	result := cfg.MatchProvider(model)
	if result.Provider == nil {
		return nil, fmt.Errorf("no provider configured for model %q: set %s or edit %s",
			model, config.EnvOpenAIAPIKey, config.ConfigPath())
	}

	return providers.New(providers.Params{
		APIKey:       result.Provider.APIKey,
		APIBase:      cfg.GetAPIBase(model),
		ExtraHeaders: result.Provider.ExtraHeaders,
		DefaultModel: model,
		ProviderName: result.Name,
	}), nil
}

func newIdentity(ctx context.Context, client *ouro.Client, logger *slog.Logger) (AgentIdentity, error) {
	me, err := client.Me(ctx)
	if err != nil {
		return AgentIdentity{}, fmt.Errorf("resolve agent identity: %w", err)
	}
	if me.ID == "" {
		return AgentIdentity{}, fmt.Errorf("resolve agent identity: backend returned an empty user id")
	}
	logger.Info("agent identity resolved", "user_id", me.ID, "email", me.Email)
	return AgentIdentity{me}, nil
}

func newPersona(cfg *config.Config) (agent.Persona, error) {
	if path := cfg.PersonaPath(); path != "" {
		return agent.LoadPersona(path)
	}
	p := agent.DefaultPersona()
	p.Window = cfg.Agent.MemoryWindow
	p.Eviction = cfg.Agent.Eviction
	return p, nil
}

func newRelay(cfg *config.Config, registry *channels.Registry, id AgentIdentity, logger *slog.Logger) *relay.Relay {
	return relay.New(registry, id.ID,
		relay.WithPacing(time.Duration(cfg.Agent.PacingMs)*time.Millisecond),
		relay.WithLogger(logger),
	)
}

func newHandler(
	cfg *config.Config,
	id AgentIdentity,
	persona agent.Persona,
	client *ouro.Client,
	provider schema.StreamProvider,
	r *relay.Relay,
	logger *slog.Logger,
) *backend.Handler {
	memoryOpts := persona.MemoryOptions()
	if cfg.Agent.Summarizer == agentcfg.SummarizerLLM {
		memoryOpts = append(memoryOpts, agent.WithSummarizer(agent.NewLLMSummarizer(provider, cfg.Agent.Model)))
	}

	return backend.NewHandler(backend.HandlerConfig{
		AgentID:       id.ID,
		Chat:          schema.NewChatOptions(cfg.Agent.Model, cfg.Agent.MaxTokens, cfg.Agent.Temperature),
		MemoryOptions: memoryOpts,
		Structured:    content.Structured,
		Logger:        logger,
	}, client, provider, r)
}

func newLink(
	cfg *config.Config,
	id AgentIdentity,
	registry *channels.Registry,
	client *ouro.Client,
	h *backend.Handler,
	logger *slog.Logger,
) (*backend.Link, error) {
	return backend.NewLink(backend.LinkConfig{
		WSURL:       cfg.Backend.WebsocketURL(),
		AgentID:     id.ID,
		RetryDelay:  cfg.Backend.RetryDelay(),
		RetryJitter: cfg.Backend.RetryJitter(),
	}, registry, client, h, logger)
}

func newReporter(cfg *config.Config, link *backend.Link, registry *channels.Registry, logger *slog.Logger) (*heartbeat.Reporter, error) {
	return heartbeat.NewReporter(cfg.Gateway.Heartbeat, StatusSource(link, registry), heartbeat.WithLogger(logger))
}

// StatusSource adapts the link and registry into a heartbeat snapshot.
func StatusSource(link *backend.Link, registry *channels.Registry) heartbeat.Source {
	return func() heartbeat.Snapshot {
		state := link.State()
		stats := link.Stats()
		return heartbeat.Snapshot{
			State:      state.String(),
			Healthy:    state == backend.StateSubscribed,
			Sockets:    registry.Len(),
			Attempts:   stats.Attempts,
			Reconnects: stats.Reconnects,
			Handled:    stats.Handled,
			Skipped:    stats.Skipped,
			Failed:     stats.Failed,
		}
	}
}

func newGateway(cfg *config.Config, id AgentIdentity, registry *channels.Registry, link *backend.Link, logger *slog.Logger) *gateway.Server {
	return gateway.New(gateway.Config{
		Addr:           cfg.Gateway.Addr(),
		AgentID:        id.ID,
		AllowedOrigins: []string{cfg.Gateway.FrontendURL, cfg.Backend.URL},
		CheckOrigin:    cfg.Gateway.CheckOrigin,
	}, registry, link, logger)
}
