// Package configcmder provides the config command for managing persistent
// infobase configuration stored in the .infobase/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent infobase configuration.

Configuration is stored as config.toml in the .infobase/ directory and
provides default values for command flags. CLI flags and INFOBASE_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  proxy.upstream, proxy.model, proxy.listen, proxy.rate_limit,
  api.listen, client.proxy_target, client.api_target,
  knowledge.data_path, knowledge.remote_url, knowledge.refresh_interval,
  knowledge.cache_ttl, knowledge.cache_dir,
  scrape.firecrawl_url, scrape.extract_model, scrape.workers,
  research.upstream, research.model,
  events.provider, events.brokers, events.topic

API keys are never stored here. Set LOVABLE_API_KEY, FIRECRAWL_API_KEY
and PERPLEXITY_API_KEY in the environment instead.

Use subcommands to get, set, or list configuration values:
  infobase config set <key> <value>    Set a configuration value
  infobase config get <key>            Get a configuration value
  infobase config list                 List all configuration values

Examples:
  infobase config set storage.driver postgres
  infobase config set knowledge.refresh_interval 30m
  infobase config get proxy.model
  infobase config list`

const configShortDesc string = "Manage persistent infobase configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
