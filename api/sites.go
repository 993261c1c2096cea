package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/scrape"
	"github.com/nrashid7/infobase/pkg/storage"
)

// BulkScrapeRequest is the /scrape/bulk body. No sites means every portal
// in the directory.
type BulkScrapeRequest struct {
	Sites []scrape.Target `json:"sites"`
}

// handleListSites lists scraped sites with per-status counts.
func (s *Server) handleListSites(c *fiber.Ctx) error {
	status := storage.Status(c.Query("status"))
	if status != "" {
		if err := status.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
		}
	}

	ctx := c.Context()
	sites, err := s.deps.Sites.List(ctx, storage.ListOptions{
		Status:     status,
		CategoryID: c.Query("category"),
	})
	if err != nil {
		s.logger.Error("failed to list sites", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list sites"})
	}

	counts, err := s.deps.Sites.Counts(ctx)
	if err != nil {
		s.logger.Error("failed to count sites", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to count sites"})
	}

	return c.JSON(map[string]any{
		"count":     len(sites),
		"sites":     sites,
		"by_status": counts,
	})
}

func (s *Server) handleGetSite(c *fiber.Ctx) error {
	site, err := s.deps.Sites.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "site not found"})
		}
		s.logger.Error("failed to get site", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get site"})
	}
	return c.JSON(site)
}

// handleScrape scrapes one site and returns the stored row.
func (s *Server) handleScrape(c *fiber.Ctx) error {
	if s.deps.Scraper == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "scraping is not configured"})
	}

	var target scrape.Target
	if err := json.Unmarshal(c.Body(), &target); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Invalid JSON body"})
	}

	site, err := s.deps.Scraper.Scrape(c.Context(), target)
	switch {
	case err == nil:
		return c.JSON(site)
	case errors.Is(err, scrape.ErrInvalidTarget):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	case errors.Is(err, scrape.ErrMissingAPIKey), errors.Is(err, llm.ErrMissingAPIKey):
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Scraping service is not configured"})
	default:
		return sendError(c, err)
	}
}

// handleBulkScrape queues sites for background scraping and answers 202.
func (s *Server) handleBulkScrape(c *fiber.Ctx) error {
	if s.deps.Bulk == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "scraping is not configured"})
	}

	var req BulkScrapeRequest
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Invalid JSON body"})
		}
	}

	targets := req.Sites
	if len(targets) == 0 {
		targets = scrape.PortalTargets(s.deps.Knowledge.ListPortals(""))
	}

	queued := s.deps.Bulk.Enqueue(targets...)
	s.logger.Info("bulk scrape queued", "requested", len(targets), "queued", queued)

	resp := map[string]any{"queued": queued}
	if dropped := len(targets) - queued; dropped > 0 {
		resp["message"] = fmt.Sprintf("%d sites were rejected or did not fit in the queue", dropped)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}
