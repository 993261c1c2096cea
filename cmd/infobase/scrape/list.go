package scrapecmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/storage"
)

func newListCmd(parent *scrapeCommander) *cobra.Command {
	var (
		status      string
		driver      string
		sqlitePath  string
		postgresDSN string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scraped sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := storage.Status(status)
			if s != "" {
				if err := s.Validate(); err != nil {
					return err
				}
			}

			store, err := app.NewStorage(cmd.Context(), parent.viper, parent.configDir, parent.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			sites, err := store.List(cmd.Context(), storage.ListOptions{Status: s})
			if err != nil {
				return err
			}
			printSites(cmd.OutOrStdout(), sites)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only sites with this scrape status")
	config.AddStringFlag(cmd, parent.flags, config.FlagStorageDriver, &driver)
	config.AddStringFlag(cmd, parent.flags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, parent.flags, config.FlagPostgres, &postgresDSN)

	return cmd
}

func printSites(w io.Writer, sites []*storage.Site) {
	if len(sites) == 0 {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("No sites scraped yet."))
		return
	}

	for _, site := range sites {
		fmt.Fprintf(w, "  %-12s %s %s\n",
			site.Status,
			cliui.NameStyle.Render(site.Name),
			cliui.DimStyle.Render(site.URL),
		)
	}
}
