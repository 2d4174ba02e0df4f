// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trailmap/config.yaml",
	"/etc/trailmap/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 28080,
			PortFallback:         true,
			PortFallbackAttempts: 20,
			Timeout:              30 * time.Second,
			ShutdownTimeout:      10 * time.Second,
			LogRequests:          true,
		},
		Recording: RecordingConfig{
			SampleInterval:    time.Second,
			FlushInterval:     5 * time.Second,
			MapScale:          0.5,
			MapMargin:         500,
			MaxSamplesToServe: 6000,
		},
		Storage: StorageConfig{
			DataDir:          "data",
			SessionStorePath: "", // derived from DataDir in Normalize
			SyncWrites:       false,
		},
		API: APIConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Live: LiveConfig{
			Enabled:    true,
			SampleRate: 10,
			SendBuffer: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, then normalizes and validates it.
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// The names mirror the original plugin's config keys so an operator can move
// an existing deployment over without renaming anything.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"http_host":              "server.host",
		"http_port":              "server.port",
		"auto_port_fallback":     "server.port_fallback",
		"port_fallback_attempts": "server.port_fallback_attempts",
		"http_timeout":           "server.timeout",
		"shutdown_timeout":       "server.shutdown_timeout",
		"log_http_requests":      "server.log_requests",

		"sample_interval":      "recording.sample_interval",
		"flush_interval":       "recording.flush_interval",
		"map_scale":            "recording.map_scale",
		"map_margin":           "recording.map_margin",
		"max_samples_to_serve": "recording.max_samples_to_serve",

		"data_dir":           "storage.data_dir",
		"session_store_path": "storage.session_store_path",
		"storage_sync":       "storage.sync_writes",

		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_requests",
		"rate_limit_window":   "api.rate_limit_window",
		"rate_limit_disabled": "api.rate_limit_disabled",

		"live_enabled":     "live.enabled",
		"live_sample_rate": "live.sample_rate",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped variables are ignored rather than guessed at.
	return ""
}
