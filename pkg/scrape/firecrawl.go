package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/sse"
)

// DefaultFirecrawlURL is the hosted Firecrawl API.
const DefaultFirecrawlURL = "https://api.firecrawl.dev"

const providerFirecrawl = "firecrawl"

// Page is a fetched page rendered as markdown.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Fetcher fetches a page as markdown.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FirecrawlConfig configures a Firecrawl client.
type FirecrawlConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Firecrawl is a Fetcher backed by the Firecrawl scrape API.
type Firecrawl struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFirecrawl returns a Firecrawl client for cfg.
func NewFirecrawl(cfg FirecrawlConfig) *Firecrawl {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultFirecrawlURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Firecrawl{baseURL: baseURL, apiKey: cfg.APIKey, httpClient: httpClient}
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title     string `json:"title"`
			SourceURL string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

// Fetch scrapes url's main content as markdown.
func (f *Firecrawl) Fetch(ctx context.Context, url string) (*Page, error) {
	if f.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(firecrawlRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: providerFirecrawl, Err: &sse.StreamError{
			Kind:    sse.KindTransportFailure,
			Message: "scrape request failed",
			Err:     err,
		}}
	}
	defer llm.DrainAndClose(resp.Body)

	if err := sse.ErrorFromResponse(resp); err != nil {
		return nil, &ProviderError{Provider: providerFirecrawl, Err: err}
	}

	var out firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProviderError{Provider: providerFirecrawl, Err: fmt.Errorf("decoding scrape response: %w", err)}
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "scrape was not successful"
		}
		return nil, &ProviderError{Provider: providerFirecrawl, Err: &sse.StreamError{
			Kind:    sse.KindUpstreamFailure,
			Status:  resp.StatusCode,
			Message: msg,
		}}
	}

	page := &Page{
		URL:      out.Data.Metadata.SourceURL,
		Title:    out.Data.Metadata.Title,
		Markdown: out.Data.Markdown,
	}
	if page.URL == "" {
		page.URL = url
	}
	return page, nil
}
