package knowledge_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/knowledge"
)

var _ = Describe("Watch", func() {
	var (
		path string
		repo *knowledge.Repository
	)

	write := func(ds *knowledge.Dataset) {
		data, err := json.Marshal(ds)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "knowledge.json")
		Expect(os.WriteFile(path, knowledge.BundledBytes(), 0o644)).To(Succeed())

		var err error
		repo, err = knowledge.NewFileRepository(path)
		Expect(err).NotTo(HaveOccurred())
	})

	It("loads a file repository", func() {
		Expect(repo.Origin()).To(Equal(knowledge.OriginFile))
		Expect(repo.GetStats().Guides).To(Equal(6))
	})

	It("fails for missing files", func() {
		_, err := knowledge.NewFileRepository(filepath.Join(filepath.Dir(path), "missing.json"))
		Expect(err).To(HaveOccurred())
	})

	It("reloads on write and ignores broken edits", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- knowledge.Watch(ctx, repo, path, nil)
		}()

		Eventually(func() string {
			write(tinyDataset("edited"))
			return repo.Version()
		}).Should(Equal("edited"))

		Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())
		Consistently(repo.Version, "200ms").Should(Equal("edited"))

		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})
