// Package guidescmder provides the guides command for browsing the
// knowledge base from the terminal.
package guidescmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/knowledge"
)

const guidesLongDesc string = `Browse the government service guides in the knowledge base.

Guides are read from knowledge.data_path when it is set, otherwise from the
dataset bundled with infobase.

Examples:
  infobase guides list --category identity
  infobase guides show e-passport
  infobase guides search "trade license fee"`

const guidesShortDesc string = "Browse service guides"

func NewGuidesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guides",
		Short: guidesShortDesc,
		Long:  guidesLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

func loadRepository(cmd *cobra.Command) (*knowledge.Repository, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	repo, err := app.NewKnowledge(v)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge: %w", err)
	}
	return repo, nil
}
