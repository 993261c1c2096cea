package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nrashid7/infobase/pkg/sse"
)

const (
	// DefaultGatewayURL is the OpenAI-compatible AI gateway base URL.
	DefaultGatewayURL = "https://ai.gateway.lovable.dev/v1"

	// DefaultModel is the gateway model used for answers and extraction.
	DefaultModel = "google/gemini-2.5-flash"

	completionsPath = "/chat/completions"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the API root; "/chat/completions" is appended to it.
	BaseURL string

	// APIKey is sent as a bearer token. Requests fail fast when it is empty.
	APIKey string

	// Model is used when a request does not name one.
	Model string

	// HTTPClient defaults to a client with a 5 minute timeout.
	HTTPClient *http.Client
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// ErrMissingAPIKey is returned when a Client has no key configured.
var ErrMissingAPIKey = errors.New("llm: API key is not configured")

// NewClient returns a Client for cfg.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGatewayURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// LLM requests can be slow, especially with long contexts
			Timeout: 5 * time.Minute,
		}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: httpClient,
	}
}

// Model returns the default model.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a non-streaming request and decodes the response. Non-2xx
// statuses are returned as *sse.StreamError so callers classify 429 and 402
// the same way everywhere.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer DrainAndClose(resp.Body)

	if err := sse.ErrorFromResponse(resp); err != nil {
		return nil, err
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding chat completion: %w", err)
	}
	return &out, nil
}

// Stream sends a streaming request and returns the raw response. The caller
// owns the body. Status handling is left to the caller so that a proxy can
// forward the upstream status it received.
func (c *Client) Stream(ctx context.Context, req ChatRequest) (*http.Response, error) {
	req.Stream = true
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req ChatRequest) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &sse.StreamError{
			Kind:    sse.KindTransportFailure,
			Message: "chat request failed",
			Err:     err,
		}
	}
	return resp, nil
}

// DrainAndClose discards the rest of a body so the connection can be reused.
func DrainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}
