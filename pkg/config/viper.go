package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nrashid7/infobase/pkg/dotdir"
)

// Secret keys. They are read from the environment only and never written
// to config.toml.
const (
	KeyGatewayAPIKey   = "keys.gateway"
	KeyFirecrawlAPIKey = "keys.firecrawl"
	KeyResearchAPIKey  = "keys.research"
)

// secretEnv maps each secret key to the environment variables that can
// supply it, in order of preference.
var secretEnv = map[string][]string{
	KeyGatewayAPIKey:   {"INFOBASE_KEYS_GATEWAY", "LOVABLE_API_KEY"},
	KeyFirecrawlAPIKey: {"INFOBASE_KEYS_FIRECRAWL", "FIRECRAWL_API_KEY"},
	KeyResearchAPIKey:  {"INFOBASE_KEYS_RESEARCH", "PERPLEXITY_API_KEY"},
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the INFOBASE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (INFOBASE_PROXY_LISTEN, INFOBASE_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: INFOBASE_PROXY_LISTEN, INFOBASE_STORAGE_DRIVER, etc.
	v.SetEnvPrefix("INFOBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range secretEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for key, info := range configKeys {
		v.SetDefault(key, info.get(d))
	}

	// Typed defaults for keys read with GetInt.
	v.SetDefault("proxy.rate_limit", d.Proxy.RateLimit)
	v.SetDefault("scrape.workers", d.Scrape.Workers)
}
