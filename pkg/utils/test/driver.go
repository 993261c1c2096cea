package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/storage"
)

// DescribeDriver registers the behaviour every storage.Driver shares.
// newDriver is called before each test and the driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Upsert and Get", func() {
		It("stores and retrieves a site", func() {
			stored, err := driver.Upsert(ctx, NewTestSite("https://www.dip.gov.bd", "DIP"))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).NotTo(BeEmpty())
			Expect(stored.CreatedAt).NotTo(BeZero())

			site, err := driver.Get(ctx, "https://www.dip.gov.bd")
			Expect(err).NotTo(HaveOccurred())
			Expect(site.ID).To(Equal(stored.ID))
			Expect(site.Name).To(Equal("DIP"))
			Expect(site.Status).To(Equal(storage.StatusPending))
			Expect(site.Services).To(Equal([]storage.Service{{Name: "Apply", URL: "https://www.dip.gov.bd/apply"}}))
			Expect(site.ContactInfo).To(HaveKeyWithValue("phone", "16000"))
			Expect(site.RelatedLinks).To(HaveLen(1))
			Expect(site.LastScrapedAt).To(BeNil())

			byID, err := driver.GetByID(ctx, stored.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.URL).To(Equal(site.URL))
		})

		It("replaces by URL and keeps the id and creation time", func() {
			first, err := driver.Upsert(ctx, NewTestSite("https://brta.gov.bd", "BRTA"))
			Expect(err).NotTo(HaveOccurred())

			scraped := time.Now().UTC()
			next := NewTestSite("https://brta.gov.bd", "Road Transport Authority")
			next.Status = storage.StatusSuccess
			next.Mission = "Safe roads"
			next.Services = nil
			next.LastScrapedAt = &scraped
			second, err := driver.Upsert(ctx, next)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID).To(Equal(first.ID))
			Expect(second.CreatedAt).To(BeTemporally("~", first.CreatedAt, time.Second))
			Expect(second.Name).To(Equal("Road Transport Authority"))
			Expect(second.Mission).To(Equal("Safe roads"))
			Expect(second.Services).To(BeEmpty())
			Expect(second.Status).To(Equal(storage.StatusSuccess))
			Expect(second.LastScrapedAt).NotTo(BeNil())
			Expect(*second.LastScrapedAt).To(BeTemporally("~", scraped, time.Second))

			sites, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sites).To(HaveLen(1))
		})

		It("does not share memory with the caller", func() {
			site := NewTestSite("https://nbr.gov.bd", "NBR")
			_, err := driver.Upsert(ctx, site)
			Expect(err).NotTo(HaveOccurred())

			site.ContactInfo["phone"] = "changed"
			got, err := driver.Get(ctx, site.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ContactInfo).To(HaveKeyWithValue("phone", "16000"))
		})

		It("returns NotFoundError for unknown sites", func() {
			_, err := driver.Get(ctx, "https://missing.gov.bd")
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))

			_, err = driver.GetByID(ctx, "missing")
			Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
		})

		It("rejects invalid sites", func() {
			_, err := driver.Upsert(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilSite))

			_, err = driver.Upsert(ctx, &storage.Site{Name: "no url"})
			Expect(err).To(MatchError(storage.ErrMissingURL))

			_, err = driver.Upsert(ctx, &storage.Site{URL: "https://x.gov.bd", Status: "weird"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i, name := range []string{"Charlie", "Alpha", "Bravo"} {
				site := NewTestSite(fmt.Sprintf("https://site%d.gov.bd", i), name)
				if name == "Bravo" {
					site.Status = storage.StatusFailed
					site.CategoryID = "transport"
				}
				_, err := driver.Upsert(ctx, site)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("orders by name", func() {
			sites, err := driver.List(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sites).To(HaveLen(3))
			Expect(sites[0].Name).To(Equal("Alpha"))
			Expect(sites[2].Name).To(Equal("Charlie"))
		})

		It("filters by status and category", func() {
			failed, err := driver.List(ctx, storage.ListOptions{Status: storage.StatusFailed})
			Expect(err).NotTo(HaveOccurred())
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Name).To(Equal("Bravo"))

			identity, err := driver.List(ctx, storage.ListOptions{CategoryID: "identity"})
			Expect(err).NotTo(HaveOccurred())
			Expect(identity).To(HaveLen(2))

			none, err := driver.List(ctx, storage.ListOptions{Status: storage.StatusSuccess, CategoryID: "identity"})
			Expect(err).NotTo(HaveOccurred())
			Expect(none).NotTo(BeNil())
			Expect(none).To(BeEmpty())
		})

		It("counts every status", func() {
			counts, err := driver.Counts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(Equal(map[storage.Status]int{
				storage.StatusPending:    2,
				storage.StatusInProgress: 0,
				storage.StatusSuccess:    0,
				storage.StatusFailed:     1,
			}))
		})
	})

	Describe("SetStatus", func() {
		It("updates status and message only", func() {
			_, err := driver.Upsert(ctx, NewTestSite("https://bdris.gov.bd", "BDRIS"))
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.SetStatus(ctx, "https://bdris.gov.bd", storage.StatusInProgress, "")).To(Succeed())
			site, err := driver.Get(ctx, "https://bdris.gov.bd")
			Expect(err).NotTo(HaveOccurred())
			Expect(site.Status).To(Equal(storage.StatusInProgress))
			Expect(site.LastScrapedAt).To(BeNil())
			Expect(site.Name).To(Equal("BDRIS"))

			Expect(driver.SetStatus(ctx, "https://bdris.gov.bd", storage.StatusFailed, "timeout")).To(Succeed())
			site, err = driver.Get(ctx, "https://bdris.gov.bd")
			Expect(err).NotTo(HaveOccurred())
			Expect(site.Status).To(Equal(storage.StatusFailed))
			Expect(site.ErrorMessage).To(Equal("timeout"))
			Expect(site.LastScrapedAt).NotTo(BeNil())
		})

		It("fails for unknown sites and statuses", func() {
			err := driver.SetStatus(ctx, "https://missing.gov.bd", storage.StatusFailed, "")
			var notFound storage.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.URL).To(Equal("https://missing.gov.bd"))

			_, err = driver.Upsert(ctx, NewTestSite("https://x.gov.bd", "X"))
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.SetStatus(ctx, "https://x.gov.bd", "weird", "")).NotTo(Succeed())
		})
	})

	It("is safe for concurrent upserts", func() {
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := driver.Upsert(ctx, NewTestSite(fmt.Sprintf("https://c%d.gov.bd", i%5), "C"))
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		sites, err := driver.List(ctx, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(sites).To(HaveLen(5))
	})
}
