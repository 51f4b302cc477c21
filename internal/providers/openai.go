package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/hermes/internal/schema"
)

const (
	defaultAPIBase   = "https://api.openai.com/v1"
	defaultMaxTokens = 4096
	maxErrorBody     = 4096
)

// OpenAIProvider streams chat completions from any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	gateway      *ProviderSpec // non-nil for gateway/local providers
	spec         *ProviderSpec // non-nil for standard providers
	httpClient   *http.Client
}

// NewOpenAIProvider constructs a provider from raw config values.
func NewOpenAIProvider(
	apiKey, apiBase, defaultModel, providerName string,
	extraHeaders map[string]string,
) *OpenAIProvider {
	gateway := FindGateway(providerName, apiKey, apiBase)

	var spec *ProviderSpec
	if gateway == nil {
		spec = FindByName(providerName)
		if spec == nil {
			spec = FindByModel(defaultModel)
		}
	}

	// Resolve effective API base.
	effectiveBase := apiBase
	if effectiveBase == "" {
		switch {
		case gateway != nil && gateway.DefaultAPIBase != "":
			effectiveBase = gateway.DefaultAPIBase
		case spec != nil && spec.DefaultAPIBase != "":
			effectiveBase = spec.DefaultAPIBase
		default:
			effectiveBase = defaultAPIBase
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimRight(effectiveBase, "/"),
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		gateway:      gateway,
		spec:         spec,
		// No overall timeout: a stream lives as long as its context.
		httpClient: &http.Client{Transport: transport},
	}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// APIBase is the resolved endpoint base URL.
func (p *OpenAIProvider) APIBase() string { return p.apiBase }

// Stream implements schema.StreamProvider. The returned stream reads the
// response body lazily; cancelling ctx aborts it.
func (p *OpenAIProvider) Stream(
	ctx context.Context,
	messages schema.Messages,
	opts schema.ChatOptions,
) (schema.FragmentStream, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]any{
		"model":       p.resolveModel(model),
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": opts.Temperature,
		"stream":      true,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    friendlyHTTPError(resp.StatusCode, raw),
		}
	}

	return newSSEStream(resp.Body), nil
}

// resolveModel strips routing prefixes so the endpoint receives the model
// name it expects.
func (p *OpenAIProvider) resolveModel(model string) string {
	if p.gateway != nil {
		if p.gateway.StripModelPrefix {
			if i := strings.LastIndex(model, "/"); i >= 0 {
				return model[i+1:]
			}
			return model
		}
		// Strip only the gateway's own prefix if present.
		if pfx := p.gateway.ModelPrefix; pfx != "" {
			full := pfx + "/"
			if strings.HasPrefix(strings.ToLower(model), full) {
				model = model[len(full):]
			}
		}
		return model
	}

	if p.spec == nil {
		return model
	}
	for _, pfx := range []string{p.spec.ModelPrefix, p.spec.Name} {
		if pfx == "" {
			continue
		}
		full := pfx + "/"
		if strings.HasPrefix(strings.ToLower(model), full) {
			return model[len(full):]
		}
	}
	return model
}
