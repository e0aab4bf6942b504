package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "quotadash"

func ConfigDir() string {
	if v := os.Getenv("QUOTADASH_CONFIG_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.ConfigHome, appName)
}

func CacheDir() string {
	if v := os.Getenv("QUOTADASH_CACHE_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.CacheHome, appName)
}

func CredentialsDir() string { return filepath.Join(ConfigDir(), "credentials") }
func ConfigFile() string     { return filepath.Join(ConfigDir(), "config.toml") }
func OverridesFile() string  { return filepath.Join(ConfigDir(), "overrides.yaml") }

// CredentialPath returns the migrated (XDG-side) credential file path for a
// provider. The provider's own CLI keeps writing to its legacy dot-directory;
// that path stays the live source of truth and is declared per provider.
func CredentialPath(providerID string) string {
	return filepath.Join(CredentialsDir(), providerID+".json")
}
