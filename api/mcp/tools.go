package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nrashid7/infobase/pkg/knowledge"
)

var (
	searchGuidesToolName    = "search_guides"
	searchGuidesDescription = "Search Bangladesh government service guides by keyword (English or Bangla). Returns the best matching guides with the claims that matched."

	getGuideToolName    = "get_guide"
	getGuideDescription = "Get a government service guide by id, including every sourced claim with its verification status and citations."

	listPortalsToolName    = "list_portals"
	listPortalsDescription = "List official Bangladesh government portals, optionally filtered by category id."
)

const defaultSearchLimit = 5

// SearchGuidesInput represents the input arguments for the search_guides tool.
type SearchGuidesInput struct {
	Query string `json:"query" jsonschema:"the keywords to search guides for"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of guides to return (default: 5)"`
}

// SearchGuidesOutput represents the output of the search_guides tool.
type SearchGuidesOutput struct {
	Query   string                   `json:"query"`
	Results []knowledge.SearchResult `json:"results"`
	Count   int                      `json:"count"`
}

// GetGuideInput represents the input arguments for the get_guide tool.
type GetGuideInput struct {
	ID string `json:"id" jsonschema:"the guide id, e.g. e-passport"`
}

// GetGuideOutput represents the output of the get_guide tool.
type GetGuideOutput struct {
	Guide *knowledge.Guide `json:"guide,omitempty"`
}

// ListPortalsInput represents the input arguments for the list_portals tool.
type ListPortalsInput struct {
	Category string `json:"category,omitempty" jsonschema:"category id to filter by, e.g. identity"`
}

// ListPortalsOutput represents the output of the list_portals tool.
type ListPortalsOutput struct {
	Portals []knowledge.Portal `json:"portals"`
	Count   int                `json:"count"`
}

func (s *Server) handleSearchGuides(_ context.Context, _ *mcp.CallToolRequest, input SearchGuidesInput) (*mcp.CallToolResult, SearchGuidesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	s.config.Logger.Debug("MCP search_guides request", "query", input.Query, "limit", limit)

	results := s.config.Knowledge.Search(input.Query, limit)
	if results == nil {
		results = []knowledge.SearchResult{}
	}

	output := SearchGuidesOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}
	return textResult(output), output, nil
}

func (s *Server) handleGetGuide(_ context.Context, _ *mcp.CallToolRequest, input GetGuideInput) (*mcp.CallToolResult, GetGuideOutput, error) {
	guide, ok := s.config.Knowledge.GetGuideByID(input.ID)
	if !ok {
		return errorResult(fmt.Sprintf("Guide %q not found", input.ID)), GetGuideOutput{}, nil
	}

	output := GetGuideOutput{Guide: guide}
	return textResult(output), output, nil
}

func (s *Server) handleListPortals(_ context.Context, _ *mcp.CallToolRequest, input ListPortalsInput) (*mcp.CallToolResult, ListPortalsOutput, error) {
	portals := s.config.Knowledge.ListPortals(input.Category)
	output := ListPortalsOutput{
		Portals: portals,
		Count:   len(portals),
	}
	return textResult(output), output, nil
}

// textResult returns v as JSON text content.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
