package servecmder_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	servecmder "github.com/nrashid7/infobase/cmd/infobase/serve"
	"github.com/nrashid7/infobase/pkg/start"
)

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name {
			return sub
		}
	}
	return nil
}

var _ = Describe("NewServeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))
	})

	It("has api and proxy subcommands", func() {
		cmd := servecmder.NewServeCmd()
		Expect(subcommand(cmd, "api")).NotTo(BeNil())
		Expect(subcommand(cmd, "proxy")).NotTo(BeNil())
	})

	It("registers flags with their configured defaults", func() {
		cmd := servecmder.NewServeCmd()

		Expect(cmd.Flags().Lookup("proxy-listen").DefValue).To(Equal(":8080"))
		Expect(cmd.Flags().Lookup("api-listen").DefValue).To(Equal(":8081"))
		Expect(cmd.Flags().Lookup("storage").DefValue).To(Equal("sqlite"))
		Expect(cmd.Flags().Lookup("rate-limit").DefValue).To(Equal("30"))
		Expect(cmd.Flags().Lookup("scrape-workers").DefValue).To(Equal("3"))
		Expect(cmd.Flags().Lookup("log-file").DefValue).To(BeEmpty())
		Expect(cmd.Flags().ShorthandLookup("u").Name).To(Equal("upstream"))
	})

	It("uses listen for the standalone servers", func() {
		cmd := servecmder.NewServeCmd()

		api := subcommand(cmd, "api")
		Expect(api.Flags().Lookup("listen").DefValue).To(Equal(":8081"))
		Expect(api.Flags().Lookup("upstream")).To(BeNil())

		proxy := subcommand(cmd, "proxy")
		Expect(proxy.Flags().Lookup("listen").DefValue).To(Equal(":8080"))
		Expect(proxy.Flags().Lookup("storage")).To(BeNil())
	})
})

var _ = Describe("Serve command execution", func() {
	It("refuses to start while another server holds the lock", func() {
		dir := GinkgoT().TempDir()
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())

		manager, err := start.NewManager(dir)
		Expect(err).NotTo(HaveOccurred())
		lock, err := manager.Acquire()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(lock.Release)

		root := &cobra.Command{Use: "infobase"}
		root.PersistentFlags().Bool("debug", false, "")
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(servecmder.NewServeCmd())
		root.SetArgs([]string{"serve", "--config-dir", dir, "--storage", "memory"})

		err = root.Execute()
		Expect(err).To(MatchError(start.ErrAlreadyRunning))
		Expect(filepath.Join(dir, "serve.json")).NotTo(BeAnExistingFile())
	})
})
