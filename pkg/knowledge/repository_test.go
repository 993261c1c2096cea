package knowledge_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/knowledge"
)

func tinyDataset(version string) *knowledge.Dataset {
	return &knowledge.Dataset{
		Version: version,
		Guides: []knowledge.Guide{{
			ID:       "only",
			Title:    "Only guide " + version,
			Category: "misc",
			Claims:   []knowledge.Claim{{ID: "only-c1", Text: "a fact", Status: knowledge.StatusVerified}},
		}},
	}
}

var _ = Describe("Repository", func() {
	var repo *knowledge.Repository

	BeforeEach(func() {
		var err error
		repo, err = knowledge.NewBundledRepository()
		Expect(err).NotTo(HaveOccurred())
	})

	It("serves the bundled dataset", func() {
		Expect(repo.Origin()).To(Equal(knowledge.OriginBundled))

		stats := repo.GetStats()
		Expect(stats.Source).To(Equal(knowledge.OriginBundled))
		Expect(stats.Guides).To(Equal(6))
		Expect(stats.Claims).To(Equal(57))
		Expect(stats.VerifiedClaims).To(Equal(43))
		Expect(stats.Agencies).To(Equal(6))
		Expect(stats.Sources).To(Equal(10))
		Expect(stats.Portals).To(Equal(15))
		Expect(stats.ByStatus).To(HaveKeyWithValue(knowledge.StatusContradicted, 2))
		Expect(stats.ByStatus).To(HaveKeyWithValue(knowledge.StatusDeprecated, 1))
	})

	Describe("ListGuides", func() {
		It("lists every guide without a filter", func() {
			Expect(repo.ListGuides(knowledge.Filter{})).To(HaveLen(6))
		})

		It("summarizes claims and agency names", func() {
			guides := repo.ListGuides(knowledge.Filter{AgencyID: "dip"})
			Expect(guides).To(HaveLen(1))
			Expect(guides[0].ID).To(Equal("e-passport"))
			Expect(guides[0].AgencyName).To(Equal("Department of Immigration and Passports"))
			Expect(guides[0].ClaimCount).To(Equal(13))
			Expect(guides[0].VerifiedCount).To(Equal(10))
		})

		It("filters by category", func() {
			guides := repo.ListGuides(knowledge.Filter{Category: "identity"})
			ids := []string{}
			for _, g := range guides {
				ids = append(ids, g.ID)
			}
			Expect(ids).To(ConsistOf("e-passport", "nid-correction"))
		})

		It("filters by claim status", func() {
			guides := repo.ListGuides(knowledge.Filter{Status: knowledge.StatusContradicted})
			Expect(guides).To(HaveLen(2))
		})

		It("matches queries case-insensitively", func() {
			guides := repo.ListGuides(knowledge.Filter{Query: "DRIVING"})
			Expect(guides).To(HaveLen(1))
			Expect(guides[0].ID).To(Equal("driving-license"))
		})

		It("returns an empty list when nothing matches", func() {
			guides := repo.ListGuides(knowledge.Filter{Category: "space-travel"})
			Expect(guides).NotTo(BeNil())
			Expect(guides).To(BeEmpty())
		})
	})

	Describe("GetGuideByID", func() {
		It("returns a copy", func() {
			g, ok := repo.GetGuideByID("e-tin")
			Expect(ok).To(BeTrue())
			Expect(g.ClaimsOfKind(knowledge.KindFee)).To(HaveLen(1))

			g.Claims[0].Text = "changed"
			again, _ := repo.GetGuideByID("e-tin")
			Expect(again.Claims[0].Text).NotTo(Equal("changed"))
		})

		It("reports unknown ids", func() {
			_, ok := repo.GetGuideByID("nope")
			Expect(ok).To(BeFalse())
		})
	})

	It("looks up claims and sources", func() {
		c, ok := repo.GetClaim("e-passport-c06")
		Expect(ok).To(BeTrue())
		Expect(c.Kind).To(Equal(knowledge.KindFee))
		Expect(c.Citations).NotTo(BeEmpty())

		src, ok := repo.GetSource(c.Citations[0].SourceID)
		Expect(ok).To(BeTrue())
		Expect(src.AgencyID).To(Equal("dip"))
	})

	It("sorts agencies by name", func() {
		agencies := repo.ListAgencies()
		Expect(agencies).To(HaveLen(6))
		Expect(agencies[0].Name).To(Equal("Bangladesh Election Commission, NID Wing"))
	})

	It("lists portals by category", func() {
		Expect(repo.ListPortals("")).To(HaveLen(15))
		Expect(repo.ListPortals("health")).To(HaveLen(2))
		Expect(repo.ListCategories()).To(HaveLen(7))
	})

	Describe("Swap", func() {
		It("replaces the snapshot", func() {
			Expect(repo.Swap(tinyDataset("v2"), knowledge.OriginRemote)).To(Succeed())
			Expect(repo.Origin()).To(Equal(knowledge.OriginRemote))
			Expect(repo.Version()).To(Equal("v2"))
			Expect(repo.ListGuides(knowledge.Filter{})).To(HaveLen(1))
		})

		It("keeps the current snapshot on invalid data", func() {
			Expect(repo.Swap(&knowledge.Dataset{Version: "bad"}, knowledge.OriginRemote)).NotTo(Succeed())
			Expect(repo.Swap(nil, knowledge.OriginRemote)).NotTo(Succeed())
			Expect(repo.Origin()).To(Equal(knowledge.OriginBundled))
			Expect(repo.GetStats().Guides).To(Equal(6))
		})

		It("never exposes a half-built snapshot to readers", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})

			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					stats := repo.GetStats()
					if stats.Guides == 1 {
						Expect(stats.Claims).To(Equal(1))
					} else {
						Expect(stats.Guides).To(Equal(6))
						Expect(stats.Claims).To(Equal(57))
					}
				}
			}()

			for i := range 50 {
				if i%2 == 0 {
					Expect(repo.Swap(tinyDataset("t"), knowledge.OriginRemote)).To(Succeed())
				} else {
					ds, err := knowledge.Bundled()
					Expect(err).NotTo(HaveOccurred())
					Expect(repo.Swap(ds, knowledge.OriginBundled)).To(Succeed())
				}
			}
			close(stop)
			wg.Wait()
		})
	})

	Describe("Search", func() {
		It("ranks title matches first", func() {
			results := repo.Search("passport fee", 0)
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Guide.ID).To(Equal("e-passport"))
			Expect(results[0].Matches).NotTo(BeEmpty())
		})

		It("limits results", func() {
			Expect(repo.Search("nid", 1)).To(HaveLen(1))
		})

		It("matches Bangla titles", func() {
			results := repo.Search("জন্ম", 0)
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Guide.ID).To(Equal("birth-registration"))
		})

		It("returns nothing for blank or unmatched queries", func() {
			Expect(repo.Search("  ", 0)).To(BeEmpty())
			Expect(repo.Search("zzzzqqq", 0)).To(BeEmpty())
		})
	})
})
