package guidescmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/utils"
)

type listCommander struct {
	category string
	agency   string
	status   string
	query    string
	asJSON   bool
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List guides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := loadRepository(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd.OutOrStdout(), repo)
		},
	}

	cmd.Flags().StringVarP(&cmder.category, "category", "c", "", "Only guides in this category")
	cmd.Flags().StringVar(&cmder.agency, "agency", "", "Only guides from this agency")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Only guides with a claim in this status")
	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Only guides whose title or summary contains this text")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print JSON")

	return cmd
}

func (c *listCommander) run(w io.Writer, repo *knowledge.Repository) error {
	status := knowledge.ClaimStatus(c.status)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", c.status)
	}

	guides := repo.ListGuides(knowledge.Filter{
		Category: c.category,
		AgencyID: c.agency,
		Query:    c.query,
		Status:   status,
	})

	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(guides)
	}

	if len(guides) == 0 {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("No guides match."))
		return nil
	}

	width := 0
	for _, g := range guides {
		width = max(width, len(g.ID))
	}

	for _, g := range guides {
		fmt.Fprintf(w, "  %s  %s %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("%-*s", width, g.ID)),
			utils.Truncate(g.Title, 60),
			cliui.DimStyle.Render(fmt.Sprintf("(%d/%d verified)", g.VerifiedCount, g.ClaimCount)),
		)
	}
	return nil
}
