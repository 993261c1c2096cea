package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/llm"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
			Expect(cfg.Proxy.Upstream).To(Equal(llm.DefaultGatewayURL))
			Expect(cfg.Storage.Driver).To(Equal(config.StorageSQLite))
			Expect(cfg.Events.Provider).To(Equal(config.EventsNone))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[storage]
driver = "postgres"
sqlite_path = "/tmp/infobase.sqlite"
postgres_dsn = "postgres://localhost/infobase"

[proxy]
upstream = "http://localhost:9999/v1"
model = "test-model"
listen = ":9090"
rate_limit = 5

[api]
listen = ":9091"

[client]
proxy_target = "http://myhost:9090"
api_target = "http://myhost:9091"

[knowledge]
data_path = "/srv/knowledge.json"
remote_url = "https://example.com/knowledge.json"
refresh_interval = "1h"
cache_ttl = "30m"
cache_dir = "/var/cache/infobase"

[scrape]
firecrawl_url = "http://localhost:3002"
extract_model = "extract-model"
workers = 8

[research]
upstream = "http://localhost:7000"
model = "sonar-pro"

[events]
provider = "kafka"
brokers = "localhost:9092"
topic = "gov.events"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage).To(Equal(config.StorageConfig{
				Driver:      "postgres",
				SQLitePath:  "/tmp/infobase.sqlite",
				PostgresDSN: "postgres://localhost/infobase",
			}))
			Expect(cfg.Proxy.RateLimit).To(Equal(5))
			Expect(cfg.API.Listen).To(Equal(":9091"))
			Expect(cfg.Client.APITarget).To(Equal("http://myhost:9091"))
			Expect(cfg.Knowledge.RefreshInterval).To(Equal("1h"))
			Expect(cfg.Knowledge.CacheDir).To(Equal("/var/cache/infobase"))
			Expect(cfg.Scrape.Workers).To(Equal(8))
			Expect(cfg.Research.Model).To(Equal("sonar-pro"))
			Expect(cfg.Events.Topic).To(Equal("gov.events"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig("[api]\nlisten = \":7000\"\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.API.Listen).To(Equal(":7000"))
			Expect(cfg.Proxy).To(Equal(defaults.Proxy))
			Expect(cfg.Scrape).To(Equal(defaults.Scrape))
			Expect(cfg.Knowledge.CacheTTL).To(Equal(defaults.Knowledge.CacheTTL))
		})

		DescribeTable("rejects bad files",
			func(data, msg string) {
				writeConfig(data)

				c, err := config.NewConfiger(tmpDir)
				Expect(err).NotTo(HaveOccurred())

				_, err = c.LoadConfig()
				Expect(err).To(MatchError(ContainSubstring(msg)))
			},
			Entry("malformed TOML", "[proxy\nlisten = ", "parsing config TOML"),
			Entry("unsupported version", "version = 99\n", "unsupported config version"),
			Entry("unknown storage driver", "[storage]\ndriver = \"mongo\"\n", "storage.driver"),
			Entry("unknown event provider", "[events]\nprovider = \"nats\"\n", "events.provider"),
			Entry("bad duration", "[knowledge]\nrefresh_interval = \"often\"\n", "knowledge.refresh_interval"),
		)
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Storage.Driver = config.StorageMemory
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("round-trips valid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(Succeed())

				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value))
			},
			Entry("string", "proxy.upstream", "http://gateway.local/v1"),
			Entry("int", "scrape.workers", "6"),
			Entry("duration", "knowledge.cache_ttl", "2h"),
			Entry("storage driver", "storage.driver", "postgres"),
			Entry("event provider", "events.provider", "kafka"),
			Entry("client target", "client.api_target", "http://remote:8081"),
		)

		DescribeTable("rejects invalid values",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(MatchError(ContainSubstring(key)))
			},
			Entry("negative int", "scrape.workers", "-1"),
			Entry("non-numeric int", "proxy.rate_limit", "lots"),
			Entry("bad duration", "knowledge.refresh_interval", "soon"),
			Entry("unknown driver", "storage.driver", "mysql"),
		)

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("nope.key", "x")).To(MatchError(ContainSubstring("unknown config key")))

			_, err := c.GetConfigValue("nope.key")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(23))
			Expect(keys[0]).To(Equal("storage.driver"))
			Expect(keys[len(keys)-1]).To(Equal("events.topic"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
			Expect(config.IsValidConfigKey("embedding.model")).To(BeFalse())
		})
	})
})
