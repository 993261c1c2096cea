// Package researchcmder provides the research command, which answers a
// question from live web sources.
package researchcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/research"
)

const researchLongDesc string = `Research a question about Bangladesh government services using live web
sources. The answer is rendered as markdown followed by its citations.
PERPLEXITY_API_KEY must be set.

Examples:
  infobase research "current e-passport fees"`

const researchShortDesc string = "Research a question from live sources"

func NewResearchCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "research <query>",
		Short: researchShortDesc,
		Long:  researchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return run(cmd.Context(), cmd.OutOrStdout(), app.NewResearch(v), strings.Join(args, " "), raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the answer without markdown rendering")

	return cmd
}

func run(ctx context.Context, w io.Writer, client *research.Client, query string, raw bool) error {
	var result *research.Result
	err := cliui.Step(w, "Researching", func() error {
		var err error
		result, err = client.Research(ctx, query)
		return err
	})
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return errors.New("research is not configured: set PERPLEXITY_API_KEY")
		}
		return err
	}

	content := result.Content
	if !raw {
		if rendered, err := cliui.RenderMarkdown(content); err == nil {
			content = rendered
		}
	}
	fmt.Fprintln(w, content)

	if len(result.Citations) > 0 {
		fmt.Fprintf(w, "  %s\n", cliui.KeyStyle.Render("Sources"))
		for i, c := range result.Citations {
			fmt.Fprintf(w, "  %s %s\n", cliui.DimStyle.Render(fmt.Sprintf("[%d]", i+1)), c)
		}
		fmt.Fprintln(w)
	}
	return nil
}
