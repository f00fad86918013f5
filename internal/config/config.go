// Package config loads Agentty's on-disk configuration file. The loaded
// values are used directly by their callers; they are not copied into the
// database settings table. The file lives at
// ~/.agentty/config.toml and is optional: every field has a usable
// default.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the shape of ~/.agentty/config.toml.
type Config struct {
	DefaultModel      string `toml:"default_model"`
	DefaultAgent      string `toml:"default_agent"`
	AssistMaxAttempts int    `toml:"assist_max_attempts"`
	AssistMaxStreak   int    `toml:"assist_max_identical_failure_streak"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DefaultModel:      "claude-sonnet-4-6",
		DefaultAgent:      "claude",
		AssistMaxAttempts: 3,
		AssistMaxStreak:   2,
	}
}

// Load reads path and merges it over Default. A missing file is not an
// error; it just means every field keeps its default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
