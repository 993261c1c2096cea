// Package apicmder provides the infobase API server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/logger"
)

type apiCommander struct {
	flags config.FlagSet

	listen        string
	storage       string
	sqlitePath    string
	postgresDSN   string
	knowledgeFile string
	knowledgeURL  string
	scrapeWorkers int
	events        string
	kafkaBrokers  string

	configDir string
	debug     bool
	pretty    bool
	viper     *viper.Viper
	logger    *slog.Logger
}

var apiFlags = []string{
	config.FlagAPIListenStandalone,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKnowledgeFile,
	config.FlagKnowledgeURL,
	config.FlagScrapeWorkers,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
}

const apiLongDesc string = `Run the infobase API server for browsing guides, searching the knowledge
base, scraping government portals and running research queries. The MCP
tools are served on /mcp.`

const apiShortDesc string = "Run the infobase API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, apiFlags)
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

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKnowledgeFile, &cmder.knowledgeFile)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKnowledgeURL, &cmder.knowledgeURL)
	config.AddIntFlag(cmd, cmder.flags, config.FlagScrapeWorkers, &cmder.scrapeWorkers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(c.pretty), logger.WithComponent("api"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher, err := app.NewPublisher(c.viper)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	server, err := app.NewAPIServer(ctx, c.viper, c.configDir, publisher, c.logger)
	if err != nil {
		return err
	}
	defer server.Close()

	errChan := make(chan error, 2)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := app.RunKnowledgeUpdates(ctx, c.viper, c.configDir, server.Knowledge, c.logger); err != nil {
			errChan <- fmt.Errorf("knowledge updates: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}
