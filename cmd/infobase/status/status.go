// Package statuscmder provides the status command for showing the running
// infobase server and the local knowledge dataset.
package statuscmder

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/start"
)

const statusLongDesc string = `Show whether "infobase serve" is running and where, plus the
knowledge dataset commands will read locally.

Examples:
  infobase status`

const statusShortDesc string = "Show server and dataset status"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runStatus(w io.Writer, configDir string) error {
	manager, err := start.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("resolving state dir: %w", err)
	}

	state, err := manager.Running()
	if err != nil {
		return fmt.Errorf("loading serve state: %w", err)
	}

	fmt.Fprintln(w)
	if state == nil {
		fmt.Fprintf(w, "  %s %s\n", cliui.DimStyle.Render("●"), "infobase serve is not running")
	} else {
		fmt.Fprintf(w, "  %s infobase serve is running %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(pid %d, up %s)", state.PID, time.Since(state.StartedAt).Round(time.Second))),
		)
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Assistant:"), cliui.ValueStyle.Render(state.ProxyURL))
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("API:      "), cliui.ValueStyle.Render(state.APIURL))
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Storage:  "), cliui.ValueStyle.Render(state.Storage))
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Knowledge:"), cliui.ValueStyle.Render(state.Knowledge))
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	repo, err := app.NewKnowledge(v)
	if err != nil {
		return fmt.Errorf("loading knowledge: %w", err)
	}
	stats := repo.GetStats()

	fmt.Fprintf(w, "\n  %s %s %s\n",
		cliui.KeyStyle.Render("Dataset:"),
		cliui.NameStyle.Render(stats.Version),
		cliui.DimStyle.Render("("+repo.Origin()+")"),
	)
	fmt.Fprintf(w, "  %d guides, %d claims (%d verified), %d portals\n\n",
		stats.Guides, stats.Claims, stats.VerifiedClaims, stats.Portals)

	return nil
}
