package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// mergeOverridesFile layers the optional overrides.yaml file on top of the
// overrides from config.toml. The YAML file wins per provider; a missing or
// malformed file changes nothing.
func mergeOverridesFile(cfg Config) Config {
	return mergeOverridesFrom(cfg, OverridesFile())
}

func mergeOverridesFrom(cfg Config, path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var fileOverrides map[string]Override
	if err := yaml.Unmarshal(data, &fileOverrides); err != nil {
		return cfg
	}

	if cfg.Overrides == nil {
		cfg.Overrides = make(map[string]Override, len(fileOverrides))
	}
	for id, o := range fileOverrides {
		cfg.Overrides[id] = o
	}
	return cfg
}
