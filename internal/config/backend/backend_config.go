package backend

import "time"

// BackendConfig describes the conversation backend the relay attaches to.
type BackendConfig struct {
	URL   string `json:"url"`
	WSURL string `json:"wsUrl"`
	// APIKey authenticates the relay as its agent account.
	APIKey        string `json:"apiKey"`
	RetryDelayMs  int    `json:"retryDelayMs"`
	RetryJitterMs int    `json:"retryJitterMs"`
}

func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		URL:          "http://localhost:8003",
		WSURL:        "ws://localhost:8003",
		RetryDelayMs: 3000,
	}
}

// WebsocketURL returns WSURL, falling back to URL.
func (c BackendConfig) WebsocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	return c.URL
}

func (c BackendConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c BackendConfig) RetryJitter() time.Duration {
	return time.Duration(c.RetryJitterMs) * time.Millisecond
}
