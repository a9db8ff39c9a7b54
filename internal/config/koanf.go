package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CURATOR_CONFIG"

// envPrefix marks structured overrides: CURATOR_ENGINE_MAX_ARTISTS -> engine.max_artists.
const envPrefix = "CURATOR_"

// DefaultConfigPaths are searched in order when CURATOR_CONFIG is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// sections are the top-level keys a CURATOR_ variable may address.
var sections = []string{
	"server", "logging", "spotify", "advisory", "storage",
	"engine", "orchestrator", "ordering", "worker",
}

// legacyEnv maps the variable names the service has always honored.
var legacyEnv = map[string]string{
	"spotify_client_id":     "spotify.client_id",
	"spotify_client_secret": "spotify.client_secret",
	"spotify_max_retries":   "spotify.max_retries",
	"spotify_retry_backoff": "spotify.retry_backoff",
	"spotify_market":        "spotify.market",
	"ollama_host":           "advisory.base_url",
	"ollama_model":          "advisory.model",
	"storage_path":          "storage.path",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"http_addr":             "server.addr",
}

// Load builds the configuration: struct defaults, then the YAML file if one
// exists, then environment variables.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file; an empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// OLLAMA_HOST alone is enough to turn the advisory layer on
	if _, ok := os.LookupEnv("OLLAMA_HOST"); ok {
		if _, explicit := os.LookupEnv(envPrefix + "ADVISORY_ENABLED"); !explicit {
			if err := k.Set("advisory.enabled", true); err != nil {
				return nil, fmt.Errorf("failed to enable advisory: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment names to koanf paths. Unknown variables
// map to "" and are skipped.
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)

	if mapped, ok := legacyEnv[lower]; ok {
		return mapped
	}

	if !strings.HasPrefix(lower, strings.ToLower(envPrefix)) {
		return ""
	}
	rest := strings.TrimPrefix(lower, strings.ToLower(envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(rest, section+"_") {
			return section + "." + strings.TrimPrefix(rest, section+"_")
		}
	}
	return ""
}
