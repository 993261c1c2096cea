package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nrashid7/infobase/pkg/sse"
)

// AskPath is the assistant endpoint route.
const AskPath = "/assistant"

// Client asks questions of an assistant endpoint and streams the answers.
type Client struct {
	target     string
	httpClient *http.Client
	opts       []sse.Option
}

// NewClient returns a Client for the assistant server at target, e.g.
// "http://localhost:8080". A nil httpClient uses http.DefaultClient; set a
// Timeout on it to bound a whole answer.
func NewClient(target string, httpClient *http.Client, opts ...sse.Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		target:     strings.TrimSuffix(target, "/"),
		httpClient: httpClient,
		opts:       opts,
	}
}

// Ask validates req, posts it and opens the answer stream. Invalid input is
// rejected without a network call. Error statuses from the endpoint come
// back as *sse.StreamError before any streaming starts.
func (c *Client) Ask(ctx context.Context, req AskRequest, emit sse.EmitFunc) (*sse.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encoding question: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+AskPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &sse.StreamError{
			Kind:    sse.KindTransportFailure,
			Message: "could not reach the assistant",
			Err:     err,
		}
	}

	return sse.Open(ctx, resp, emit, c.opts...)
}
