// Package config loads quotadash configuration: the TOML config file,
// operator-supplied manual overrides, and the handful of environment
// variables the providers need.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

type FetchConfig struct {
	// TimeoutSeconds bounds each provider's usage/identity requests.
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
	// PollIntervalSeconds is the dashboard refresh interval.
	PollIntervalSeconds int `toml:"poll_interval_seconds" json:"poll_interval_seconds"`
	MaxConcurrent       int `toml:"max_concurrent" json:"max_concurrent"`
}

type KeychainConfig struct {
	// CacheTTLMinutes controls how long keychain lookups (including
	// confirmed-absent results) are cached before the store is re-queried.
	CacheTTLMinutes int `toml:"cache_ttl_minutes" json:"cache_ttl_minutes"`
}

// Override holds static fallback strings shown when live data for a provider
// is unavailable.
type Override struct {
	UsageText string `toml:"usage_text" yaml:"usage_text" json:"usage_text,omitempty"`
	ResetTime string `toml:"reset_time" yaml:"reset_time" json:"reset_time,omitempty"`
	LimitNote string `toml:"limit_note" yaml:"limit_note" json:"limit_note,omitempty"`
}

type Config struct {
	EnabledProviders []string            `toml:"enabled_providers" json:"enabled_providers"`
	Fetch            FetchConfig         `toml:"fetch" json:"fetch"`
	Keychain         KeychainConfig      `toml:"keychain" json:"keychain"`
	Overrides        map[string]Override `toml:"overrides" json:"overrides"`
}

func DefaultConfig() Config {
	return Config{
		EnabledProviders: nil,
		Fetch: FetchConfig{
			TimeoutSeconds:      10.0,
			PollIntervalSeconds: 60,
			MaxConcurrent:       4,
		},
		Keychain: KeychainConfig{
			CacheTTLMinutes: 30,
		},
		Overrides: make(map[string]Override),
	}
}

func (c Config) clone() Config {
	out := c
	if c.EnabledProviders != nil {
		out.EnabledProviders = make([]string, len(c.EnabledProviders))
		copy(out.EnabledProviders, c.EnabledProviders)
	}
	out.Overrides = make(map[string]Override, len(c.Overrides))
	for k, v := range c.Overrides {
		out.Overrides[k] = v
	}
	return out
}

func (c Config) IsProviderEnabled(providerID string) bool {
	if len(c.EnabledProviders) == 0 {
		return true
	}
	for _, id := range c.EnabledProviders {
		if id == providerID {
			return true
		}
	}
	return false
}

// OverrideFor returns the manual override for a provider, if configured.
func (c Config) OverrideFor(providerID string) (Override, bool) {
	o, ok := c.Overrides[providerID]
	return o, ok
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

func Get() Config {
	configMu.RLock()
	if c := globalConfig; c != nil {
		configMu.RUnlock()
		return c.clone()
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()
	if globalConfig != nil {
		return globalConfig.clone()
	}
	c, _ := Load("")
	globalConfig = &c
	return c.clone()
}

// Init loads the config from disk and installs it as the process-wide config.
// A parse error falls back to defaults but is still reported so the CLI can
// warn about a malformed file.
func Init() (Config, error) {
	configMu.Lock()
	defer configMu.Unlock()
	c, err := Load("")
	globalConfig = &c
	return c.clone(), err
}

func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigFile()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return applyEnvOverrides(mergeOverridesFile(cfg)), nil
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return applyEnvOverrides(mergeOverridesFile(DefaultConfig())), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Overrides == nil {
		cfg.Overrides = make(map[string]Override)
	}

	return applyEnvOverrides(mergeOverridesFile(cfg)), nil
}

func Save(cfg Config, path string) error {
	if path == "" {
		path = ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("QUOTADASH_ENABLED_PROVIDERS"); v != "" {
		parts := strings.Split(v, ",")
		var providers []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				providers = append(providers, p)
			}
		}
		cfg.EnabledProviders = providers
	}
	return cfg
}

// GeminiOAuthClient returns the OAuth client id/secret used to refresh Gemini
// CLI tokens. These are not shipped with quotadash; operators source them
// from the environment.
func GeminiOAuthClient() (id, secret string) {
	return os.Getenv("GEMINI_OAUTH_CLIENT_ID"), os.Getenv("GEMINI_OAUTH_CLIENT_SECRET")
}
