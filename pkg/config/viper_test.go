package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/config"
)

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("uses defaults without a config file", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(v.GetString("proxy.listen")).To(Equal(defaults.Proxy.Listen))
		Expect(v.GetInt("scrape.workers")).To(Equal(defaults.Scrape.Workers))
		Expect(v.GetDuration("knowledge.cache_ttl").Minutes()).To(BeNumerically("==", 15))
	})

	It("lets the environment override the file", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[api]\nlisten = \":5555\"\n"), 0o600)).To(Succeed())
		GinkgoT().Setenv("INFOBASE_API_LISTEN", ":6666")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("api.listen")).To(Equal(":6666"))
	})

	It("reads provider keys from their conventional variables", func() {
		GinkgoT().Setenv("LOVABLE_API_KEY", "lv-key")
		GinkgoT().Setenv("FIRECRAWL_API_KEY", "fc-key")
		GinkgoT().Setenv("PERPLEXITY_API_KEY", "px-key")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString(config.KeyGatewayAPIKey)).To(Equal("lv-key"))
		Expect(v.GetString(config.KeyFirecrawlAPIKey)).To(Equal("fc-key"))
		Expect(v.GetString(config.KeyResearchAPIKey)).To(Equal("px-key"))
	})

	It("prefers the prefixed variable for provider keys", func() {
		GinkgoT().Setenv("LOVABLE_API_KEY", "lv-key")
		GinkgoT().Setenv("INFOBASE_KEYS_GATEWAY", "prefixed")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString(config.KeyGatewayAPIKey)).To(Equal("prefixed"))
	})
})

var _ = Describe("Flag registry", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)

		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})

		Expect(v.GetString("api.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[api]\nlisten = \":5555\"\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &listen)
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPIListenStandalone})

		Expect(v.GetString("api.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.FlagSet{}, []string{"nonexistent"})

		Expect(v.GetString("proxy.listen")).To(Equal(config.NewDefaultConfig().Proxy.Listen))
	})

	It("AddStringFlag pulls name, shorthand, and default from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &target)

		f := cmd.Flags().Lookup("api-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Usage).To(Equal("API server URL"))
		Expect(f.DefValue).To(Equal(config.NewDefaultConfig().Client.APITarget))
	})

	It("AddIntFlag uses the typed default", func() {
		cmd := &cobra.Command{Use: "test"}
		var workers int
		config.AddIntFlag(cmd, config.Flags, config.FlagScrapeWorkers, &workers)

		f := cmd.Flags().Lookup("scrape-workers")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("3"))
	})

	It("every registry entry maps to a known config key", func() {
		for _, f := range config.Flags {
			Expect(config.IsValidConfigKey(f.ViperKey)).To(BeTrue(), f.ViperKey)
		}
	})
})
