package guidescmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/utils"
)

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search guides",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := loadRepository(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd.OutOrStdout(), repo, strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")

	return cmd
}

func runSearch(w io.Writer, repo *knowledge.Repository, query string, limit int) error {
	results := repo.Search(query, limit)
	if len(results) == 0 {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("No guides match %q", query)))
		return nil
	}

	for _, r := range results {
		fmt.Fprintf(w, "  %s  %s %s\n",
			cliui.NameStyle.Render(r.Guide.ID),
			r.Guide.Title,
			cliui.DimStyle.Render(fmt.Sprintf("(score %d)", r.Score)),
		)
		for _, m := range r.Matches {
			fmt.Fprintf(w, "      %s %s\n", cliui.Badge(string(m.Status)), utils.Truncate(m.Text, 72))
		}
	}
	return nil
}
