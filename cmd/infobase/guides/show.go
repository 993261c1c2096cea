package guidescmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/formatter"
	"github.com/nrashid7/infobase/pkg/knowledge"
)

type showCommander struct {
	bangla bool
	claims bool
	asJSON bool
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a guide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := loadRepository(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd.OutOrStdout(), repo, args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.bangla, "bn", false, "Show Bangla text where available")
	cmd.Flags().BoolVar(&cmder.claims, "claims", false, "List every claim with its verification status")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print JSON")

	return cmd
}

func (c *showCommander) run(w io.Writer, repo *knowledge.Repository, id string) error {
	guide, ok := repo.GetGuideByID(id)
	if !ok {
		return fmt.Errorf("guide %q not found", id)
	}

	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(guide)
	}

	title := guide.Title
	if c.bangla && guide.TitleBn != "" {
		title = guide.TitleBn
	}
	fmt.Fprintf(w, "\n  %s\n", cliui.KeyStyle.Render(title))
	fmt.Fprintf(w, "  %s\n", guide.Summary)
	if guide.OfficialURL != "" {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(guide.OfficialURL))
	}

	if c.claims {
		fmt.Fprintln(w)
		for _, claim := range guide.Claims {
			text := claim.Text
			if c.bangla && claim.TextBn != "" {
				text = claim.TextBn
			}
			fmt.Fprintf(w, "  %s %s %s\n",
				cliui.Badge(string(claim.Status)),
				cliui.DimStyle.Render(string(claim.Kind)),
				text,
			)
		}
		fmt.Fprintln(w)
		return nil
	}

	f := formatter.FormatGuide(guide)
	section := func(name string, lines []string, numbered bool) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "\n  %s\n", cliui.NameStyle.Render(name))
		for i, l := range lines {
			bullet := "•"
			if numbered {
				bullet = fmt.Sprintf("%d.", i+1)
			}
			fmt.Fprintf(w, "    %s %s\n", bullet, l)
		}
	}
	section("Steps", f.Steps, true)
	section("Fees", f.Fees, false)
	section("Documents", f.Documents, false)
	section("Notes", f.Notes, false)
	fmt.Fprintln(w)

	return nil
}
