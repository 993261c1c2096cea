// Package scrapecmder provides the scrape command for scraping government
// portals into the site store.
package scrapecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/logger"
	"github.com/nrashid7/infobase/pkg/scrape"
	"github.com/nrashid7/infobase/pkg/storage"
)

type scrapeCommander struct {
	flags config.FlagSet

	name          string
	category      string
	all           bool
	storage       string
	sqlitePath    string
	postgresDSN   string
	scrapeWorkers int

	configDir string
	debug     bool
	viper     *viper.Viper
	logger    *slog.Logger
}

var scrapeFlags = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagScrapeWorkers,
}

const scrapeLongDesc string = `Scrape government portals into the site store.

Each page is fetched through Firecrawl and its services, contacts and
office hours are extracted by the AI gateway. FIRECRAWL_API_KEY and
LOVABLE_API_KEY must be set.

With --all every portal in the directory is scraped (optionally only one
category). A run stops early when the gateway reports its usage limit.

Examples:
  infobase scrape https://nbr.gov.bd --name "National Board of Revenue"
  infobase scrape --all --category health
  infobase scrape list --status failed`

const scrapeShortDesc string = "Scrape government portals"

func NewScrapeCmd() *cobra.Command {
	cmder := &scrapeCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: scrapeShortDesc,
		Long:  scrapeLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			switch {
			case all && len(args) > 0:
				return errors.New("--all takes no url")
			case !all && len(args) != 1:
				return errors.New("a url or --all is required")
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, scrapeFlags)
			cmder.viper = v

			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.logger = logger.Nop()
			if cmder.debug {
				cmder.logger = logger.New(logger.WithDebug(true), logger.WithWriter(cmd.ErrOrStderr()), logger.WithComponent("scrape"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if cmder.all {
				return cmder.runAll(ctx, cmd.OutOrStdout())
			}
			return cmder.runOne(ctx, cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().StringVar(&cmder.name, "name", "", "Site name (defaults to the URL host)")
	cmd.Flags().StringVarP(&cmder.category, "category", "c", "", "Category ID for the site, or the portals to scrape with --all")
	cmd.Flags().BoolVar(&cmder.all, "all", false, "Scrape every portal in the directory")
	config.AddStringFlag(cmd, cmder.flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddIntFlag(cmd, cmder.flags, config.FlagScrapeWorkers, &cmder.scrapeWorkers)

	cmd.AddCommand(newListCmd(cmder))

	return cmd
}

// open returns the orchestrator and a func that closes what it holds.
func (c *scrapeCommander) open(ctx context.Context) (*scrape.Orchestrator, func(), error) {
	store, err := app.NewStorage(ctx, c.viper, c.configDir, c.logger)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := app.NewPublisher(c.viper)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	closeAll := func() {
		_ = publisher.Close()
		_ = store.Close()
	}

	orchestrator, err := app.NewOrchestrator(c.viper, store, publisher, c.logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return orchestrator, closeAll, nil
}

func (c *scrapeCommander) runOne(ctx context.Context, w io.Writer, rawURL string) error {
	target := scrape.Target{
		URL:        rawURL,
		Name:       c.name,
		CategoryID: c.category,
	}
	if target.Name == "" {
		target.Name = hostOf(rawURL)
	}
	if err := target.Validate(); err != nil {
		return err
	}

	orchestrator, closeAll, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	var site *storage.Site
	err = cliui.Step(w, "Scraping "+target.Name, func() error {
		var err error
		site, err = orchestrator.Scrape(ctx, target)
		return err
	})
	if err != nil {
		return err
	}

	printSite(w, site)
	return nil
}

func (c *scrapeCommander) runAll(ctx context.Context, w io.Writer) error {
	repo, err := app.NewKnowledge(c.viper)
	if err != nil {
		return fmt.Errorf("loading knowledge: %w", err)
	}
	targets := scrape.PortalTargets(repo.ListPortals(c.category))
	if len(targets) == 0 {
		return fmt.Errorf("no portals in category %q", c.category)
	}

	orchestrator, closeAll, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	var summary scrape.Summary
	_ = cliui.Step(w, fmt.Sprintf("Scraping %d portals", len(targets)), func() error {
		summary = orchestrator.ScrapeAll(ctx, targets, c.viper.GetInt("scrape.workers"))
		if summary.Failed > 0 {
			return fmt.Errorf("%d failed", summary.Failed)
		}
		return nil
	})

	fmt.Fprintf(w, "\n  %s %d  %s %d  %s %d\n",
		cliui.KeyStyle.Render("succeeded"), summary.Succeeded,
		cliui.KeyStyle.Render("failed"), summary.Failed,
		cliui.KeyStyle.Render("skipped"), summary.Skipped,
	)

	urls := make([]string, 0, len(summary.Errors))
	for u := range summary.Errors {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	for _, u := range urls {
		fmt.Fprintf(w, "  %s %s %s\n", cliui.FailMark, u, cliui.DimStyle.Render(summary.Errors[u]))
	}
	fmt.Fprintln(w)

	if summary.Succeeded == 0 && summary.Failed > 0 {
		return errors.New("every scrape failed")
	}
	return nil
}

func printSite(w io.Writer, site *storage.Site) {
	fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render(site.Name), cliui.DimStyle.Render(site.URL))
	if site.Description != "" {
		fmt.Fprintf(w, "  %s\n", site.Description)
	}
	for _, s := range site.Services {
		fmt.Fprintf(w, "    • %s\n", s.Name)
	}
	if site.OfficeHours != "" {
		fmt.Fprintf(w, "  %s %s\n", cliui.NameStyle.Render("Office hours:"), site.OfficeHours)
	}
	fmt.Fprintln(w)
}

func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	host, _, _ := strings.Cut(s, "/")
	return host
}
