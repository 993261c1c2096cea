package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "infobase serve" and "infobase serve proxy").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagProxyListen    = "proxy-listen"
	FlagAPIListen      = "api-listen"
	FlagUpstream       = "upstream"
	FlagModel          = "model"
	FlagRateLimit      = "rate-limit"
	FlagStorageDriver  = "storage"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagKnowledgeFile  = "knowledge-file"
	FlagKnowledgeURL   = "knowledge-url"
	FlagScrapeWorkers  = "scrape-workers"
	FlagEventsProvider = "events"
	FlagKafkaBrokers   = "kafka-brokers"
	FlagAPITarget      = "api-target"
	FlagProxyTarget    = "proxy-target"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagProxyListen:           {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for the assistant endpoint to listen on"},
	FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the assistant endpoint to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagUpstream:              {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "AI gateway base URL"},
	FlagModel:                 {Name: "model", Shorthand: "m", ViperKey: "proxy.model", Description: "Model used for answers"},
	FlagRateLimit:             {Name: "rate-limit", ViperKey: "proxy.rate_limit", Description: "Questions per minute per client IP (0 disables)"},
	FlagStorageDriver:         {Name: "storage", Shorthand: "s", ViperKey: "storage.driver", Description: "Site store: memory, sqlite or postgres"},
	FlagSQLite:                {Name: "sqlite", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgres:              {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagKnowledgeFile:         {Name: "knowledge-file", ViperKey: "knowledge.data_path", Description: "Knowledge dataset file to serve and watch"},
	FlagKnowledgeURL:          {Name: "knowledge-url", ViperKey: "knowledge.remote_url", Description: "Remote knowledge dataset URL to poll"},
	FlagScrapeWorkers:         {Name: "scrape-workers", ViperKey: "scrape.workers", Description: "Concurrent scrapes for bulk runs"},
	FlagEventsProvider:        {Name: "events", ViperKey: "events.provider", Description: "Event publisher: none or kafka"},
	FlagKafkaBrokers:          {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagAPITarget:             {Name: "api-target", ViperKey: "client.api_target", Description: "API server URL"},
	FlagProxyTarget:           {Name: "proxy-target", ViperKey: "client.proxy_target", Description: "Assistant endpoint URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
