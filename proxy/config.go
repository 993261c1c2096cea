package proxy

import "github.com/nrashid7/infobase/pkg/llm"

// Config is the assistant proxy configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the OpenAI-compatible gateway base URL
	// (e.g., "https://ai.gateway.lovable.dev/v1")
	UpstreamURL string

	// APIKey authenticates against the gateway.
	APIKey string

	// Model is the gateway model answering questions.
	Model string

	// RateLimit is the number of questions one client IP may ask per
	// minute. Zero disables local rate limiting.
	RateLimit int

	// Workers is the number of background event publishers.
	Workers uint
}

func (c Config) clientConfig() llm.ClientConfig {
	return llm.ClientConfig{
		BaseURL: c.UpstreamURL,
		APIKey:  c.APIKey,
		Model:   c.Model,
	}
}
