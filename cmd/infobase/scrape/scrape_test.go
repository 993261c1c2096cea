package scrapecmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	scrapecmder "github.com/nrashid7/infobase/cmd/infobase/scrape"
)

func completion(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":    "c1",
		"model": "m",
		"choices": []any{
			map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return body
}

var _ = Describe("NewScrapeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := scrapecmder.NewScrapeCmd()
		Expect(cmd.Use).To(Equal("scrape [url]"))
	})

	It("requires a url or --all", func() {
		cmd := scrapecmder.NewScrapeCmd()
		Expect(cmd.Args(cmd, []string{})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"https://nbr.gov.bd"})).To(Succeed())

		Expect(cmd.Flags().Set("all", "true")).To(Succeed())
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"https://nbr.gov.bd"})).To(HaveOccurred())
	})
})

var _ = Describe("Scrape command execution", func() {
	var (
		firecrawl *httptest.Server
		gateway   *httptest.Server
		fetches   atomic.Int32
		dbPath    string
		out       *bytes.Buffer
	)

	BeforeEach(func() {
		fetches.Store(0)
		out = &bytes.Buffer{}
		dir := GinkgoT().TempDir()
		dbPath = filepath.Join(dir, "sites.sqlite")

		firecrawl = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fetches.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"# NBR\nIncome tax returns.","metadata":{"title":"NBR","sourceURL":"https://nbr.gov.bd/"}}}`))
		}))
		DeferCleanup(firecrawl.Close)

		gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(completion(`{"description":"Revenue authority","services":[{"name":"e-Return"}],"office_hours":"Sun-Thu 9-5"}`))
		}))
		DeferCleanup(gateway.Close)

		GinkgoT().Setenv("FIRECRAWL_API_KEY", "fc-test")
		GinkgoT().Setenv("LOVABLE_API_KEY", "lv-test")
		GinkgoT().Setenv("INFOBASE_SCRAPE_FIRECRAWL_URL", firecrawl.URL)
		GinkgoT().Setenv("INFOBASE_PROXY_UPSTREAM", gateway.URL)
	})

	run := func(args ...string) error {
		root := &cobra.Command{Use: "infobase"}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(scrapecmder.NewScrapeCmd())
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(append([]string{"--config-dir", filepath.Dir(dbPath), "scrape"}, args...))
		return root.Execute()
	}

	It("scrapes one site and stores it", func() {
		Expect(run("https://nbr.gov.bd", "--name", "NBR", "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("e-Return"))
		Expect(out.String()).To(ContainSubstring("Sun-Thu 9-5"))

		out.Reset()
		Expect(run("list", "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("success"))
		Expect(out.String()).To(ContainSubstring("https://nbr.gov.bd"))
	})

	It("names the site after its host by default", func() {
		Expect(run("https://nbr.gov.bd/en/", "--storage", "memory")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("nbr.gov.bd"))
	})

	It("rejects invalid urls before fetching", func() {
		Expect(run("ftp://nbr.gov.bd", "--storage", "memory")).To(HaveOccurred())
		Expect(fetches.Load()).To(BeZero())
	})

	It("scrapes a category of portals", func() {
		Expect(run("--all", "--category", "health", "--storage", "memory")).To(Succeed())
		Expect(fetches.Load()).To(BeEquivalentTo(2))
		Expect(out.String()).To(ContainSubstring("succeeded"))
	})

	It("fails for an empty category", func() {
		Expect(run("--all", "--category", "nowhere", "--storage", "memory")).To(MatchError(ContainSubstring("no portals")))
	})

	It("lists nothing before any scrape", func() {
		Expect(run("list", "--sqlite", dbPath)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No sites scraped yet"))
	})

	It("rejects unknown statuses when listing", func() {
		Expect(run("list", "--status", "done", "--storage", "memory")).To(HaveOccurred())
	})
})
