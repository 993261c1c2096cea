package scrape_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/scrape"
)

var _ = Describe("PortalTargets", func() {
	It("turns every bundled portal into a valid target", func() {
		repo, err := knowledge.NewBundledRepository()
		Expect(err).NotTo(HaveOccurred())

		portals := repo.ListPortals("")
		targets := scrape.PortalTargets(portals)
		Expect(targets).To(HaveLen(len(portals)))
		for i, t := range targets {
			Expect(t.Validate()).To(Succeed())
			Expect(t.URL).To(Equal(portals[i].URL))
			Expect(t.CategoryID).To(Equal(portals[i].CategoryID))
		}
	})

	It("returns an empty slice for no portals", func() {
		Expect(scrape.PortalTargets(nil)).To(BeEmpty())
	})
})
