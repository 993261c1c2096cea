// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apicmder "github.com/nrashid7/infobase/cmd/infobase/serve/api"
	proxycmder "github.com/nrashid7/infobase/cmd/infobase/serve/proxy"
	"github.com/nrashid7/infobase/pkg/app"
	"github.com/nrashid7/infobase/pkg/config"
	"github.com/nrashid7/infobase/pkg/logger"
	"github.com/nrashid7/infobase/pkg/start"
	"github.com/nrashid7/infobase/pkg/utils"
)

type ServeCommander struct {
	flags config.FlagSet

	proxyListen   string
	apiListen     string
	upstream      string
	model         string
	rateLimit     int
	storage       string
	sqlitePath    string
	postgresDSN   string
	knowledgeFile string
	knowledgeURL  string
	scrapeWorkers int
	events        string
	kafkaBrokers  string
	logFile       string

	configDir string
	debug     bool
	pretty    bool
	viper     *viper.Viper
	logger    *slog.Logger
}

var serveFlags = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagRateLimit,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKnowledgeFile,
	config.FlagKnowledgeURL,
	config.FlagScrapeWorkers,
	config.FlagEventsProvider,
	config.FlagKafkaBrokers,
}

const serveLongDesc string = `Run infobase services.

Use subcommands to run individual services or all services together:
  infobase serve          Run both the assistant endpoint and API server together
  infobase serve api      Run just the API server
  infobase serve proxy    Run just the assistant endpoint

The combined server records its endpoints in the .infobase/ directory so
"infobase ask" and "infobase status" can find it. Only one combined server
may run per directory.

API keys are read from the environment:
  LOVABLE_API_KEY      AI gateway (answers and extraction)
  FIRECRAWL_API_KEY    Page scraping
  PERPLEXITY_API_KEY   Research queries`

const serveShortDesc string = "Run infobase services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{
		flags: config.Flags,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)
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

	config.AddStringFlag(cmd, cmder.flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &cmder.model)
	config.AddIntFlag(cmd, cmder.flags, config.FlagRateLimit, &cmder.rateLimit)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKnowledgeFile, &cmder.knowledgeFile)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKnowledgeURL, &cmder.knowledgeURL)
	config.AddIntFlag(cmd, cmder.flags, config.FlagScrapeWorkers, &cmder.scrapeWorkers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventsProvider, &cmder.events)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(c.pretty))
	if c.logFile != "" {
		f, err := logger.OpenFile(c.logFile)
		if err != nil {
			return err
		}
		defer f.Close()
		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}
	v := c.viper

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := start.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving state dir: %w", err)
	}
	lock, err := manager.Acquire()
	if err != nil {
		if errors.Is(err, start.ErrAlreadyRunning) {
			return fmt.Errorf("%w in %s", err, manager.Dir)
		}
		return err
	}
	defer func() { _ = lock.Release() }()

	publisher, err := app.NewPublisher(v)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	apiServer, err := app.NewAPIServer(ctx, v, c.configDir, publisher, c.logger.With(logger.ComponentKey, "api"))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer apiServer.Close()

	p, err := app.NewProxy(v, publisher, c.logger.With(logger.ComponentKey, "proxy"))
	if err != nil {
		return fmt.Errorf("creating assistant endpoint: %w", err)
	}
	defer p.Close()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 3)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("assistant endpoint error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	go func() {
		if err := app.RunKnowledgeUpdates(ctx, v, c.configDir, apiServer.Knowledge, c.logger.With(logger.ComponentKey, "knowledge")); err != nil {
			errChan <- fmt.Errorf("knowledge updates: %w", err)
		}
	}()

	state := &start.State{
		PID:       os.Getpid(),
		ProxyURL:  app.ListenURL(v.GetString("proxy.listen")),
		APIURL:    app.ListenURL(v.GetString("api.listen")),
		Storage:   v.GetString("storage.driver"),
		Knowledge: apiServer.Knowledge.Origin(),
		StartedAt: time.Now(),
	}
	if err := manager.SaveState(state); err != nil {
		return err
	}
	defer func() { _ = manager.ClearState() }()

	c.logger.Info("infobase serving",
		"version", utils.Version,
		"proxy", state.ProxyURL,
		"api", state.APIURL,
		"storage", state.Storage,
		"knowledge", apiServer.Knowledge.Version(),
	)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return nil
	}
}
