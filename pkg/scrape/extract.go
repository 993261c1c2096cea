package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/storage"
)

const (
	providerGateway = "ai-gateway"

	// maxMarkdownRunes bounds the page text sent for extraction.
	maxMarkdownRunes = 30000
)

// Completer runs a non-streaming chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Extraction is the structured information pulled out of a page.
type Extraction struct {
	Description  string            `json:"description"`
	Mission      string            `json:"mission"`
	Services     []storage.Service `json:"services"`
	ContactInfo  map[string]string `json:"contact_info"`
	OfficeHours  string            `json:"office_hours"`
	RelatedLinks []storage.Link    `json:"related_links"`
}

const extractionPrompt = `You extract structured information from Bangladesh government websites.
Reply with a single JSON object with these keys:
  "description": one or two sentences about the organization,
  "mission": its mission or mandate, if stated,
  "services": array of {"name", "description", "url"} for citizen services offered,
  "contact_info": object of contact details such as phone, email, address, hotline,
  "office_hours": office hours, if stated,
  "related_links": array of {"title", "url"} for important links on the page.
Use empty strings or empty arrays when information is missing. Do not invent details.`

// Extract asks the model to structure a page's markdown.
func Extract(ctx context.Context, completer Completer, model, siteName, markdown string) (*Extraction, error) {
	if runes := []rune(markdown); len(runes) > maxMarkdownRunes {
		markdown = string(runes[:maxMarkdownRunes])
	}

	resp, err := completer.Complete(ctx, llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, extractionPrompt),
			llm.NewTextMessage(llm.RoleUser, fmt.Sprintf("Website: %s\n\n%s", siteName, markdown)),
		},
		ResponseFormat: llm.JSONObject,
	})
	if err != nil {
		return nil, &ProviderError{Provider: providerGateway, Err: err}
	}

	return ParseExtraction(resp.Text())
}

// ParseExtraction decodes a model reply into an Extraction. Code fences and
// text around the object are ignored, and fields of an unexpected shape are
// coerced rather than rejected.
func ParseExtraction(content string) (*Extraction, error) {
	raw := jsonObject(content)
	if raw == "" {
		return nil, fmt.Errorf("extraction reply has no JSON object")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decoding extraction reply: %w", err)
	}

	return &Extraction{
		Description:  coerceString(fields["description"]),
		Mission:      coerceString(fields["mission"]),
		Services:     coerceServices(fields["services"]),
		ContactInfo:  coerceContact(fields["contact_info"]),
		OfficeHours:  coerceString(fields["office_hours"]),
		RelatedLinks: coerceLinks(fields["related_links"]),
	}, nil
}

// jsonObject returns the text from the first "{" to the last "}".
func jsonObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := coerceString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := coerceString(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// firstOf returns the first non-empty string among keys of m.
func firstOf(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := coerceString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func coerceServices(v any) []storage.Service {
	out := []storage.Service{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, storage.Service{Name: s})
		}
	case []any:
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				svc := storage.Service{
					Name:        firstOf(it, "name", "title", "service"),
					Description: firstOf(it, "description", "details", "summary"),
					URL:         firstOf(it, "url", "link", "href"),
				}
				if svc.Name != "" {
					out = append(out, svc)
				}
			default:
				if s := coerceString(it); s != "" {
					out = append(out, storage.Service{Name: s})
				}
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			out = append(out, storage.Service{Name: k, Description: coerceString(t[k])})
		}
	}
	return out
}

func coerceContact(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out["general"] = s
		}
	case []any:
		n := 0
		for _, item := range t {
			if s := coerceString(item); s != "" {
				n++
				out["contact_"+strconv.Itoa(n)] = s
			}
		}
	case map[string]any:
		for k, val := range t {
			if s := coerceString(val); s != "" {
				out[k] = s
			}
		}
	}
	return out
}

func coerceLinks(v any) []storage.Link {
	out := []storage.Link{}
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return out
		}
		items = []any{v}
	}
	for _, item := range items {
		switch it := item.(type) {
		case string:
			if s := strings.TrimSpace(it); s != "" {
				out = append(out, storage.Link{Title: s, URL: s})
			}
		case map[string]any:
			link := storage.Link{
				Title: firstOf(it, "title", "name", "text", "label"),
				URL:   firstOf(it, "url", "href", "link"),
			}
			if link.URL == "" {
				continue
			}
			if link.Title == "" {
				link.Title = link.URL
			}
			out = append(out, link)
		}
	}
	return out
}
