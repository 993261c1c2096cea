// Package research answers open questions about government services with a
// search-grounded model and returns the answer with its sources.
package research

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/sse"
)

const (
	// DefaultBaseURL is the Perplexity API root.
	DefaultBaseURL = "https://api.perplexity.ai"

	// DefaultModel is Perplexity's search-grounded model.
	DefaultModel = "sonar"

	maxQueryRunes = 2000
)

const systemPrompt = `You research Bangladesh government services for citizens.
Answer with current procedures, fees in BDT, required documents and official
portals. Prefer .gov.bd sources and say when information could not be confirmed.`

// Result is a researched answer.
type Result struct {
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Client runs research queries.
type Client struct {
	completer *llm.Client
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		completer: llm.NewClient(llm.ClientConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			HTTPClient: cfg.HTTPClient,
		}),
	}
}

// Research asks query and returns the answer with the URLs it cites. An
// empty or overlong query is an invalid-input error and no request is made.
func (c *Client) Research(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		return nil, &sse.StreamError{Kind: sse.KindInvalidInput, Message: "Query is required"}
	case len([]rune(query)) > maxQueryRunes:
		return nil, &sse.StreamError{Kind: sse.KindInvalidInput, Message: "Query is too long"}
	}

	resp, err := c.completer.Complete(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, systemPrompt),
			llm.NewTextMessage(llm.RoleUser, query),
		},
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return nil, errors.New("research returned an empty answer")
	}

	citations := resp.Citations
	if citations == nil {
		citations = []string{}
	}
	return &Result{Content: content, Citations: citations}, nil
}
