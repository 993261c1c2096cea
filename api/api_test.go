package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/cache/memcache"
	"github.com/nrashid7/infobase/pkg/knowledge"
	infologger "github.com/nrashid7/infobase/pkg/logger"
	"github.com/nrashid7/infobase/pkg/research"
	"github.com/nrashid7/infobase/pkg/scrape"
	"github.com/nrashid7/infobase/pkg/sse"
	"github.com/nrashid7/infobase/pkg/storage"
	"github.com/nrashid7/infobase/pkg/storage/inmemory"
	testutils "github.com/nrashid7/infobase/pkg/utils/test"
)

type fakeScraper struct {
	err error
}

func (f *fakeScraper) Scrape(_ context.Context, t scrape.Target) (*storage.Site, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	site := testutils.NewTestSite(t.URL, t.Name)
	site.Status = storage.StatusSuccess
	return site, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	targets []scrape.Target
}

func (f *fakeQueue) Enqueue(targets ...scrape.Target) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, targets...)
	return len(targets)
}

type fakeResearcher struct {
	err error
}

func (f *fakeResearcher) Research(_ context.Context, query string) (*research.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &sse.StreamError{Kind: sse.KindInvalidInput, Message: "Query is required"}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &research.Result{Content: "Answer for " + query, Citations: []string{"https://dip.gov.bd"}}, nil
}

var _ = Describe("Server", func() {
	var (
		server     *Server
		repo       *knowledge.Repository
		sites      *inmemory.Driver
		scraper    *fakeScraper
		queue      *fakeQueue
		researcher *fakeResearcher
		searchMem  *memcache.Store
		ctx        context.Context
	)

	do := func(method, path, body string) (int, []byte, http.Header) {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, data, resp.Header
	}

	decode := func(data []byte) map[string]any {
		var out map[string]any
		Expect(json.Unmarshal(data, &out)).To(Succeed())
		return out
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		repo, err = knowledge.NewBundledRepository()
		Expect(err).NotTo(HaveOccurred())
		sites = inmemory.NewDriver()
		scraper = &fakeScraper{}
		queue = &fakeQueue{}
		researcher = &fakeResearcher{}
		searchMem, err = memcache.New(memcache.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(searchMem.Close)

		server, err = NewServer(Config{ListenAddr: ":0"}, Deps{
			Knowledge:   repo,
			Sites:       sites,
			Scraper:     scraper,
			Bulk:        queue,
			Researcher:  researcher,
			SearchCache: searchMem,
			Logger:      infologger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires a knowledge repository and a storage driver", func() {
			_, err := NewServer(Config{}, Deps{Sites: sites})
			Expect(err).To(MatchError(ContainSubstring("knowledge repository is required")))

			_, err = NewServer(Config{}, Deps{Knowledge: repo})
			Expect(err).To(MatchError(ContainSubstring("storage driver is required")))
		})
	})

	It("answers ping", func() {
		status, body, _ := do(http.MethodGet, "/ping", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("guides", func() {
		It("lists every guide", func() {
			status, body, _ := do(http.MethodGet, "/guides", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(decode(body)["count"]).To(BeEquivalentTo(6))
		})

		It("filters by category", func() {
			status, body, _ := do(http.MethodGet, "/guides?category=identity", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(decode(body)["count"]).To(BeEquivalentTo(2))
		})

		It("rejects an unknown status", func() {
			status, body, _ := do(http.MethodGet, "/guides?status=bogus", "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(decode(body)["error"]).To(ContainSubstring("bogus"))
		})

		It("gets a guide by id", func() {
			status, body, _ := do(http.MethodGet, "/guides/e-passport", "")
			Expect(status).To(Equal(http.StatusOK))

			var guide knowledge.Guide
			Expect(json.Unmarshal(body, &guide)).To(Succeed())
			Expect(guide.ID).To(Equal("e-passport"))
			Expect(guide.Claims).To(HaveLen(13))
		})

		It("returns 404 for an unknown guide", func() {
			status, body, _ := do(http.MethodGet, "/guides/missing", "")
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(decode(body)["error"]).To(Equal("guide not found"))

			status, _, _ = do(http.MethodGet, "/guides/missing/formatted", "")
			Expect(status).To(Equal(http.StatusNotFound))
		})

		It("formats a guide", func() {
			status, body, _ := do(http.MethodGet, "/guides/e-passport/formatted", "")
			Expect(status).To(Equal(http.StatusOK))

			var resp FormattedGuideResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.ID).To(Equal("e-passport"))
			Expect(resp.Formatted.Fees).NotTo(BeEmpty())
			Expect(resp.Formatted.Steps).NotTo(BeEmpty())
		})
	})

	Describe("directory", func() {
		It("lists agencies, categories and portals", func() {
			_, body, _ := do(http.MethodGet, "/agencies", "")
			Expect(decode(body)["count"]).To(BeEquivalentTo(6))

			_, body, _ = do(http.MethodGet, "/categories", "")
			Expect(decode(body)["count"]).To(BeEquivalentTo(7))

			_, body, _ = do(http.MethodGet, "/portals", "")
			Expect(decode(body)["count"]).To(BeEquivalentTo(15))

			_, body, _ = do(http.MethodGet, "/portals?category=health", "")
			Expect(decode(body)["count"]).To(BeEquivalentTo(2))
		})

		It("reports stats", func() {
			status, body, _ := do(http.MethodGet, "/stats", "")
			Expect(status).To(Equal(http.StatusOK))

			var stats knowledge.Stats
			Expect(json.Unmarshal(body, &stats)).To(Succeed())
			Expect(stats.Guides).To(Equal(6))
			Expect(stats.Claims).To(Equal(57))
			Expect(stats.Source).To(Equal(knowledge.OriginBundled))
		})
	})

	Describe("search", func() {
		It("requires a query", func() {
			status, _, _ := do(http.MethodGet, "/search", "")
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("serves repeated queries from the cache", func() {
			status, first, header := do(http.MethodGet, "/search?q=passport+fee&limit=3", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(header.Get("X-Cache")).To(Equal("miss"))

			var resp SearchResponse
			Expect(json.Unmarshal(first, &resp)).To(Succeed())
			Expect(resp.Count).To(BeNumerically(">", 0))
			Expect(resp.Results[0].Guide.ID).To(Equal("e-passport"))

			status, second, header := do(http.MethodGet, "/search?q=passport+fee&limit=3", "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(header.Get("X-Cache")).To(Equal("hit"))
			Expect(second).To(Equal(first))
		})

		It("returns an empty result list when nothing matches", func() {
			_, body, _ := do(http.MethodGet, "/search?q=zzzzqqq", "")
			var resp SearchResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Count).To(BeZero())
			Expect(resp.Results).NotTo(BeNil())
		})
	})

	Describe("sites", func() {
		var stored *storage.Site

		BeforeEach(func() {
			var err error
			stored, err = sites.Upsert(ctx, testutils.NewTestSite("https://www.dip.gov.bd", "DIP"))
			Expect(err).NotTo(HaveOccurred())
			_, err = sites.Upsert(ctx, testutils.NewTestSite("https://brta.gov.bd", "BRTA"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists sites with counts", func() {
			status, body, _ := do(http.MethodGet, "/sites", "")
			Expect(status).To(Equal(http.StatusOK))

			out := decode(body)
			Expect(out["count"]).To(BeEquivalentTo(2))
			Expect(out["by_status"]).To(HaveKeyWithValue("pending", BeEquivalentTo(2)))
		})

		It("filters sites by status", func() {
			Expect(sites.SetStatus(ctx, "https://brta.gov.bd", storage.StatusFailed, "boom")).To(Succeed())

			_, body, _ := do(http.MethodGet, "/sites?status=failed", "")
			Expect(decode(body)["count"]).To(BeEquivalentTo(1))

			status, _, _ := do(http.MethodGet, "/sites?status=weird", "")
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("gets a site by id", func() {
			status, body, _ := do(http.MethodGet, "/sites/"+stored.ID, "")
			Expect(status).To(Equal(http.StatusOK))
			Expect(decode(body)["url"]).To(Equal("https://www.dip.gov.bd"))

			status, _, _ = do(http.MethodGet, "/sites/unknown", "")
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("scrape", func() {
		It("returns the scraped site", func() {
			status, body, _ := do(http.MethodPost, "/scrape", `{"url":"https://nbr.gov.bd","name":"NBR","categoryId":"tax"}`)
			Expect(status).To(Equal(http.StatusOK))
			Expect(decode(body)["scrape_status"]).To(Equal("success"))
		})

		It("rejects invalid targets and bodies", func() {
			status, _, _ := do(http.MethodPost, "/scrape", `{"url":"not a url","name":"x"}`)
			Expect(status).To(Equal(http.StatusBadRequest))

			status, _, _ = do(http.MethodPost, "/scrape", `{`)
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		DescribeTable("maps provider failures to statuses",
			func(err error, want int) {
				scraper.err = err
				status, body, _ := do(http.MethodPost, "/scrape", `{"url":"https://nbr.gov.bd","name":"NBR"}`)
				Expect(status).To(Equal(want))
				Expect(decode(body)).To(HaveKey("error"))
			},
			Entry("rate limited", &scrape.ProviderError{Provider: "firecrawl", Err: &sse.StreamError{Kind: sse.KindRateLimited}}, http.StatusTooManyRequests),
			Entry("payment required", &scrape.ProviderError{Provider: "ai-gateway", Err: &sse.StreamError{Kind: sse.KindPaymentRequired}}, http.StatusPaymentRequired),
			Entry("missing key", scrape.ErrMissingAPIKey, http.StatusInternalServerError),
			Entry("other", &sse.StreamError{Kind: sse.KindUpstreamFailure}, http.StatusInternalServerError),
		)

		It("queues explicit sites for bulk scraping", func() {
			status, body, _ := do(http.MethodPost, "/scrape/bulk", `{"sites":[{"url":"https://nbr.gov.bd","name":"NBR"}]}`)
			Expect(status).To(Equal(http.StatusAccepted))
			Expect(decode(body)["queued"]).To(BeEquivalentTo(1))
			Expect(queue.targets).To(HaveLen(1))
		})

		It("queues the whole portal directory for an empty body", func() {
			status, body, _ := do(http.MethodPost, "/scrape/bulk", "")
			Expect(status).To(Equal(http.StatusAccepted))
			Expect(decode(body)["queued"]).To(BeEquivalentTo(15))
		})

		It("answers 503 without a scraper", func() {
			bare, err := NewServer(Config{}, Deps{Knowledge: repo, Sites: sites})
			Expect(err).NotTo(HaveOccurred())

			resp, err := bare.app.Test(httptest.NewRequest(http.MethodPost, "/scrape/bulk", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("research", func() {
		It("returns content and citations", func() {
			status, body, _ := do(http.MethodPost, "/research", `{"query":"e-passport fee"}`)
			Expect(status).To(Equal(http.StatusOK))

			var result research.Result
			Expect(json.Unmarshal(body, &result)).To(Succeed())
			Expect(result.Content).To(ContainSubstring("e-passport fee"))
			Expect(result.Citations).To(ConsistOf("https://dip.gov.bd"))
		})

		It("returns 400 for an empty query", func() {
			status, body, _ := do(http.MethodPost, "/research", `{"query":"  "}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(decode(body)["error"]).To(Equal("Query is required"))
		})

		It("passes rate limits through", func() {
			researcher.err = &sse.StreamError{Kind: sse.KindRateLimited, Status: http.StatusTooManyRequests}
			status, _, _ := do(http.MethodPost, "/research", `{"query":"fees"}`)
			Expect(status).To(Equal(http.StatusTooManyRequests))
		})
	})

	Describe("mcp", func() {
		It("answers an initialize request", func() {
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(
				`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`,
			))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("infobase"))
		})
	})
})
