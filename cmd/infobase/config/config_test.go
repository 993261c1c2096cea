package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/nrashid7/infobase/cmd/infobase/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .infobase dir so the manager picks it up
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".infobase"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "storage.driver", "memory")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".infobase", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`driver = "memory"`))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects values a key cannot hold", func() {
			Expect(run("set", "storage.driver", "mongo")).To(HaveOccurred())
			Expect(run("set", "knowledge.refresh_interval", "soon")).To(HaveOccurred())
			Expect(run("set", "scrape.workers", "-2")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "storage.driver")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("reads back a set value", func() {
			Expect(run("set", "proxy.model", "google/gemini-2.5-pro")).To(Succeed())

			out.Reset()
			Expect(run("get", "proxy.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("google/gemini-2.5-pro"))
		})

		It("shows defaults when nothing is set", func() {
			Expect(run("get", "api.listen")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(":8081"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "embedding.model")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("storage.driver"))
			Expect(out.String()).To(ContainSubstring("events.topic"))
			Expect(out.String()).To(ContainSubstring(`"sqlite"`))
		})

		It("rejects arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
