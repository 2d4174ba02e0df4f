// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package config loads and validates service configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//   - Environment variables (legacy plugin names, see envTransformFunc)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Trailmap service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Recording RecordingConfig `koanf:"recording"`
	Storage   StorageConfig   `koanf:"storage"`
	API       APIConfig       `koanf:"api"`
	Live      LiveConfig      `koanf:"live"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
//
// Environment variables (kept compatible with the game plugin's config keys):
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_PORT: base port (default: 28080)
//   - AUTO_PORT_FALLBACK: retry successive ports when the base port is busy
//   - PORT_FALLBACK_ATTEMPTS: number of successive ports to try (default: 20)
//   - LOG_HTTP_REQUESTS: per-request logging toggle
type ServerConfig struct {
	Host                 string        `koanf:"host" validate:"required"`
	Port                 int           `koanf:"port" validate:"min=1,max=65535"`
	PortFallback         bool          `koanf:"port_fallback"`
	PortFallbackAttempts int           `koanf:"port_fallback_attempts" validate:"min=0,max=100"`
	Timeout              time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout      time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	LogRequests          bool          `koanf:"log_requests"`
}

// RecordingConfig holds sampling and map transform settings. Scale and
// margin are captured into each session at start and fixed for its lifetime.
type RecordingConfig struct {
	// SampleInterval is the position sampling cadence. Floor: 100ms.
	SampleInterval time.Duration `koanf:"sample_interval"`

	// FlushInterval is the buffer-to-disk flush cadence. Floor: 1s.
	FlushInterval time.Duration `koanf:"flush_interval"`

	MapScale  float64 `koanf:"map_scale" validate:"gt=0"`
	MapMargin float64 `koanf:"map_margin" validate:"gte=0"`

	// MaxSamplesToServe caps samples returned per match response; larger
	// sessions are stride-downsampled.
	MaxSamplesToServe int `koanf:"max_samples_to_serve" validate:"min=1"`
}

// StorageConfig holds durable storage locations.
type StorageConfig struct {
	// DataDir is the root directory for sample record files ("sessions/")
	// and rendered map images ("maps/").
	DataDir string `koanf:"data_dir" validate:"required"`

	// SessionStorePath is the BadgerDB directory for session metadata.
	// Defaults to <data_dir>/store.
	SessionStorePath string `koanf:"session_store_path"`

	// SyncWrites forces fsync on every session metadata write.
	SyncWrites bool `koanf:"sync_writes"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	// CORSOrigins defaults to ["*"]: the API is read-only and meant for
	// open consumption by a separate dashboard origin.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LiveConfig holds live websocket feed settings.
type LiveConfig struct {
	Enabled bool `koanf:"enabled"`

	// SampleRate caps sample broadcasts per second per hub.
	SampleRate float64 `koanf:"sample_rate" validate:"gt=0"`

	// SendBuffer is the per-client outbound queue length.
	SendBuffer int `koanf:"send_buffer" validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

const (
	minSampleInterval = 100 * time.Millisecond
	minFlushInterval  = time.Second
)

// Normalize applies documented floors and derived defaults. Intervals below
// their floor are raised silently, matching the plugin's behavior.
func (c *Config) Normalize() {
	if c.Recording.SampleInterval < minSampleInterval {
		c.Recording.SampleInterval = minSampleInterval
	}
	if c.Recording.FlushInterval < minFlushInterval {
		c.Recording.FlushInterval = minFlushInterval
	}
	if c.Storage.SessionStorePath == "" && c.Storage.DataDir != "" {
		c.Storage.SessionStorePath = c.Storage.DataDir + "/store"
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("config validation: %w", err)
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
