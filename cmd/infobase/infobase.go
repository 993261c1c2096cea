// Package infobasecmder
package infobasecmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/nrashid7/infobase/cmd/infobase/ask"
	configcmder "github.com/nrashid7/infobase/cmd/infobase/config"
	guidescmder "github.com/nrashid7/infobase/cmd/infobase/guides"
	researchcmder "github.com/nrashid7/infobase/cmd/infobase/research"
	scrapecmder "github.com/nrashid7/infobase/cmd/infobase/scrape"
	servecmder "github.com/nrashid7/infobase/cmd/infobase/serve"
	statuscmder "github.com/nrashid7/infobase/cmd/infobase/status"
	versioncmder "github.com/nrashid7/infobase/cmd/version"
)

const infobaseLongDesc string = `Infobase is a knowledge base of Bangladesh government services.

Run services using:
  infobase serve api      Run the API server
  infobase serve proxy    Run the assistant endpoint
  infobase serve          Run both servers together

Use the knowledge base from the terminal:
  infobase guides list    Browse service guides
  infobase ask            Ask the assistant a question
  infobase scrape         Scrape government portals
  infobase research       Research a question from live sources`

const infobaseShortDesc string = "Infobase - Bangladesh government services"

func NewInfobaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "infobase",
		Short:        infobaseShortDesc,
		Long:         infobaseLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("pretty", false, "Colored, human-friendly log output")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml and serve state (default: ./.infobase or ~/.infobase)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(guidescmder.NewGuidesCmd())
	cmd.AddCommand(scrapecmder.NewScrapeCmd())
	cmd.AddCommand(researchcmder.NewResearchCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
