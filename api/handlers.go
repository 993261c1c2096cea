package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nrashid7/infobase/pkg/formatter"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/sse"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// FormattedGuideResponse is a guide's claims grouped for display.
type FormattedGuideResponse struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Formatted formatter.Formatted `json:"formatted"`
}

// SearchResponse is the /search body.
type SearchResponse struct {
	Query   string                   `json:"query"`
	Count   int                      `json:"count"`
	Results []knowledge.SearchResult `json:"results"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListGuides lists guide summaries, optionally filtered.
func (s *Server) handleListGuides(c *fiber.Ctx) error {
	status := knowledge.ClaimStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: fmt.Sprintf("unknown status %q", status)})
	}

	guides := s.deps.Knowledge.ListGuides(knowledge.Filter{
		Category: c.Query("category"),
		AgencyID: c.Query("agency"),
		Query:    c.Query("q"),
		Status:   status,
	})

	return c.JSON(map[string]any{
		"count":  len(guides),
		"guides": guides,
	})
}

func (s *Server) handleGetGuide(c *fiber.Ctx) error {
	guide, ok := s.deps.Knowledge.GetGuideByID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "guide not found"})
	}
	return c.JSON(guide)
}

// handleFormattedGuide returns the guide's steps, fees, documents and notes.
func (s *Server) handleFormattedGuide(c *fiber.Ctx) error {
	guide, ok := s.deps.Knowledge.GetGuideByID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "guide not found"})
	}
	return c.JSON(FormattedGuideResponse{
		ID:        guide.ID,
		Title:     guide.Title,
		Formatted: formatter.FormatGuide(guide),
	})
}

func (s *Server) handleListAgencies(c *fiber.Ctx) error {
	agencies := s.deps.Knowledge.ListAgencies()
	return c.JSON(map[string]any{
		"count":    len(agencies),
		"agencies": agencies,
	})
}

func (s *Server) handleListCategories(c *fiber.Ctx) error {
	categories := s.deps.Knowledge.ListCategories()
	return c.JSON(map[string]any{
		"count":      len(categories),
		"categories": categories,
	})
}

func (s *Server) handleListPortals(c *fiber.Ctx) error {
	portals := s.deps.Knowledge.ListPortals(c.Query("category"))
	return c.JSON(map[string]any{
		"count":   len(portals),
		"portals": portals,
	})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.deps.Knowledge.GetStats())
}

// handleSearch ranks guides for q. Responses are cached per dataset version
// so a refresh invalidates them.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "q parameter required"})
	}

	limit := c.QueryInt("limit", defaultSearchLimit)
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}

	key := fmt.Sprintf("search:%s:%d:%s", s.deps.Knowledge.Version(), limit, strings.ToLower(query))
	if s.deps.SearchCache != nil {
		if body, ok := s.deps.SearchCache.Get(key); ok {
			c.Set("X-Cache", "hit")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(body)
		}
	}

	results := s.deps.Knowledge.Search(query, limit)
	if results == nil {
		results = []knowledge.SearchResult{}
	}
	body, err := json.Marshal(SearchResponse{
		Query:   query,
		Count:   len(results),
		Results: results,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to encode results"})
	}

	if s.deps.SearchCache != nil {
		if err := s.deps.SearchCache.Set(key, body, s.config.SearchCacheTTL); err != nil {
			s.logger.Debug("search cache set failed", "error", err)
		}
		c.Set("X-Cache", "miss")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// ResearchRequest is the /research body.
type ResearchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleResearch(c *fiber.Ctx) error {
	if s.deps.Researcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "research is not configured"})
	}

	var req ResearchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Invalid JSON body"})
	}

	result, err := s.deps.Researcher.Research(c.Context(), req.Query)
	if err != nil {
		if sse.KindOf(err) != sse.KindInvalidInput {
			s.logger.Error("research failed", "error", err)
		}
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Research service is not configured"})
		}
		return sendError(c, err)
	}
	return c.JSON(result)
}

// sendError writes err as a {error} body with the status for its kind.
func sendError(c *fiber.Ctx, err error) error {
	kind := sse.KindOf(err)
	msg := sse.DefaultMessage(kind)

	var se *sse.StreamError
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}

	return c.Status(sse.StatusForKind(kind)).JSON(llm.ErrorResponse{Error: msg})
}
