package knowledge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/cache/filecache"
	"github.com/nrashid7/infobase/pkg/knowledge"
)

var _ = Describe("Refresher", func() {
	var (
		repo   *knowledge.Repository
		server *httptest.Server
		hits   atomic.Int32
		status atomic.Int32
		body   atomic.Pointer[[]byte]
		now    time.Time
		store  *filecache.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		hits.Store(0)
		status.Store(http.StatusOK)
		remote, err := json.Marshal(tinyDataset("remote-1"))
		Expect(err).NotTo(HaveOccurred())
		body.Store(&remote)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(int(status.Load()))
			_, _ = w.Write(*body.Load())
		}))

		repo, err = knowledge.NewBundledRepository()
		Expect(err).NotTo(HaveOccurred())

		now = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
		store, err = filecache.New(GinkgoT().TempDir(), filecache.WithClock(func() time.Time { return now }))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	newRefresher := func() *knowledge.Refresher {
		return knowledge.NewRefresher(repo, knowledge.RefresherConfig{
			URL:   server.URL,
			Cache: store,
		})
	}

	It("swaps in the remote dataset", func() {
		Expect(newRefresher().Refresh(ctx)).To(Succeed())
		Expect(repo.Origin()).To(Equal(knowledge.OriginRemote))
		Expect(repo.Version()).To(Equal("remote-1"))
	})

	It("reuses a fresh cached copy without a network call", func() {
		r := newRefresher()
		Expect(r.Refresh(ctx)).To(Succeed())
		Expect(r.Refresh(ctx)).To(Succeed())
		Expect(hits.Load()).To(Equal(int32(1)))

		now = now.Add(knowledge.DefaultFreshness - time.Second)
		Expect(r.Refresh(ctx)).To(Succeed())
		Expect(hits.Load()).To(Equal(int32(1)))
	})

	It("refetches once the freshness window has passed", func() {
		r := newRefresher()
		Expect(r.Refresh(ctx)).To(Succeed())

		next, err := json.Marshal(tinyDataset("remote-2"))
		Expect(err).NotTo(HaveOccurred())
		body.Store(&next)
		now = now.Add(knowledge.DefaultFreshness + time.Second)

		Expect(r.Refresh(ctx)).To(Succeed())
		Expect(hits.Load()).To(Equal(int32(2)))
		Expect(repo.Version()).To(Equal("remote-2"))
	})

	DescribeTable("keeps the current dataset when the remote fails",
		func(code int, payload string) {
			status.Store(int32(code))
			b := []byte(payload)
			body.Store(&b)

			Expect(newRefresher().Refresh(ctx)).NotTo(Succeed())
			Expect(repo.Origin()).To(Equal(knowledge.OriginBundled))
			Expect(repo.GetStats().Guides).To(Equal(6))
		},
		Entry("server error", http.StatusInternalServerError, `{}`),
		Entry("not json", http.StatusOK, `<html></html>`),
		Entry("no guides", http.StatusOK, `{"version":"x","guides":[]}`),
	)

	It("keeps the current dataset when the remote is unreachable", func() {
		server.Close()
		Expect(newRefresher().Refresh(ctx)).NotTo(Succeed())
		Expect(repo.Origin()).To(Equal(knowledge.OriginBundled))
	})

	It("does nothing without a URL", func() {
		r := knowledge.NewRefresher(repo, knowledge.RefresherConfig{})
		Expect(r.Refresh(ctx)).To(Succeed())
		r.Run(ctx)
		Expect(repo.Origin()).To(Equal(knowledge.OriginBundled))
	})

	It("refreshes in the background until cancelled", func() {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			newRefresher().Run(runCtx)
		}()

		Eventually(repo.Version).Should(Equal("remote-1"))
		cancel()
		Eventually(done).Should(BeClosed())
	})
})
