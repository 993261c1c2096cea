// Package proxycmder provides the assistant endpoint cobra command.
package proxycmder

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/logger"
)

type proxyCommander struct {
	flags config.FlagSet

	listen       string
	upstream     string
	model        string
	rateLimit    int
	events       string
	kafkaBrokers string

	debug  bool
	pretty bool
	viper  *viper.Viper
	logger *slog.Logger
}

var proxyFlags = []string{
	config.FlagProxyListenStandalone,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagRateLimit,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
}

const proxyLongDesc string = `Run the assistant endpoint.

Questions posted to /assistant are answered by the AI gateway and streamed
back as server-sent events. LOVABLE_API_KEY must be set.`

const proxyShortDesc string = "Run the assistant endpoint"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, proxyFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.pretty, _ = cmd.Flags().GetBool("pretty")

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagProxyListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, cmder.flags, config.FlagRateLimit, &cmder.rateLimit)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)

	return cmd
}

func (c *proxyCommander) run() error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(c.pretty), logger.WithComponent("proxy"))

	publisher, err := app.NewPublisher(c.viper)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	p, err := app.NewProxy(c.viper, publisher, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create assistant endpoint: %w", err)
	}
	defer p.Close()

	return p.Run()
}
