// Package askcmder provides the ask command, which streams an answer from
// the assistant endpoint.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/assistant"
	"github.com/nrashid7/infobase/pkg/cliui"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/formatter"
	"github.com/nrashid7/infobase/pkg/knowledge"
	"github.com/nrashid7/infobase/pkg/sse"
	"github.com/nrashid7/infobase/pkg/start"
	"github.com/nrashid7/infobase/pkg/utils"
)

type askCommander struct {
	flags config.FlagSet

	proxyTarget string
	guideID     string
	contextText string
	language    string
	markdown    bool
	timeout     time.Duration

	configDir string
	viper     *viper.Viper
}

const askLongDesc string = `Ask the assistant a question about a government service.

The answer streams to the terminal as it is generated. With --markdown the
full answer is rendered once it completes instead.

--guide grounds the answer in a guide from the knowledge base. The
assistant endpoint is taken from --proxy-target, then a running
"infobase serve", then client.proxy_target.

Examples:
  infobase ask "How do I renew my passport?"
  infobase ask --guide e-passport "What documents do I need?"
  infobase ask --language bn "জন্ম নিবন্ধন কিভাবে করব?"`

const askShortDesc string = "Ask the assistant a question"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, []string{config.FlagProxyTarget})
			cmder.viper = v

			if !cmd.Flags().Changed(config.FlagProxyTarget) {
				cmder.proxyTarget = cmder.resolveTarget()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagProxyTarget, &cmder.proxyTarget)
	cmd.Flags().StringVarP(&cmder.guideID, "guide", "g", "", "Guide ID to ground the answer in")
	cmd.Flags().StringVar(&cmder.contextText, "context", "", "Extra context sent with the question")
	cmd.Flags().StringVarP(&cmder.language, "language", "L", assistant.LanguageEnglish, "Answer language: en or bn")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the complete answer as markdown")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 2*time.Minute, "Give up on an answer after this long")

	return cmd
}

// resolveTarget prefers a running serve process over the configured target.
func (c *askCommander) resolveTarget() string {
	if manager, err := start.NewManager(c.configDir); err == nil {
		if state, err := manager.Running(); err == nil && state != nil && state.ProxyURL != "" {
			return state.ProxyURL
		}
	}
	return c.viper.GetString("client.proxy_target")
}

func (c *askCommander) run(ctx context.Context, w io.Writer, question string) error {
	req := assistant.AskRequest{
		Question: question,
		Context:  c.contextText,
		Language: c.language,
	}

	if c.guideID != "" {
		repo, err := app.NewKnowledge(c.viper)
		if err != nil {
			return fmt.Errorf("loading knowledge: %w", err)
		}
		guide, ok := repo.GetGuideByID(c.guideID)
		if !ok {
			return fmt.Errorf("guide %q not found", c.guideID)
		}
		req.Context = CombineContext(guide, req.Context)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	client := assistant.NewClient(c.proxyTarget, &http.Client{Timeout: c.timeout})

	if c.markdown {
		var answer string
		err := cliui.Step(w, "Asking the assistant", func() error {
			stream, err := client.Ask(ctx, req, nil)
			if err != nil {
				return err
			}
			answer, err = stream.Wait()
			return err
		})
		if err != nil {
			return describe(err)
		}

		rendered, err := cliui.RenderMarkdown(answer)
		if err != nil {
			rendered = answer
		}
		fmt.Fprintln(w, rendered)
		return nil
	}

	stream, err := client.Ask(ctx, req, func(delta, _ string) {
		fmt.Fprint(w, delta)
	})
	if err != nil {
		return describe(err)
	}

	_, err = stream.Wait()
	fmt.Fprintln(w)
	if err != nil {
		return describe(err)
	}
	return nil
}

// GuideContext renders a guide as the plain-text context sent with a
// question.
func GuideContext(g *knowledge.Guide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Guide: %s\n%s\n", g.Title, g.Summary)

	f := formatter.FormatGuide(g)
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, l := range lines {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	section("Steps", f.Steps)
	section("Fees", f.Fees)
	section("Required documents", f.Documents)
	section("Notes", f.Notes)

	if g.OfficialURL != "" {
		fmt.Fprintf(&b, "\nOfficial site: %s\n", g.OfficialURL)
	}
	return b.String()
}

// CombineContext puts the guide ahead of extra, cutting the guide so the
// result fits assistant.MaxContextLength. extra is kept whole.
func CombineContext(g *knowledge.Guide, extra string) string {
	const sep = "\n\n"
	const ellipsis = len("...")

	extra = strings.TrimSpace(extra)
	budget := assistant.MaxContextLength
	if extra != "" {
		budget -= utf8.RuneCountInString(extra) + len(sep)
	}
	if budget <= ellipsis {
		return extra
	}

	guide := strings.TrimSpace(GuideContext(g))
	if utf8.RuneCountInString(guide) > budget {
		guide = utils.Truncate(guide, budget-ellipsis)
	}
	if extra == "" {
		return guide
	}
	return guide + sep + extra
}

// describe turns stream errors into the message shown to users.
func describe(err error) error {
	var se *sse.StreamError
	if !errors.As(err, &se) || se.Message != "" {
		return err
	}
	return fmt.Errorf("%s: %w", sse.DefaultMessage(se.Kind), err)
}
